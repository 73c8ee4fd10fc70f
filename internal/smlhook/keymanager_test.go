package smlhook

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeClientCertificate(t *testing.T, dir, commonName string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: commonName},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "client.crt"),
		pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "client.key"),
		pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600))
}

func presentedCommonName(t *testing.T, cfg *tls.Config) string {
	t.Helper()
	require.NotNil(t, cfg.GetClientCertificate)
	cert, err := cfg.GetClientCertificate(&tls.CertificateRequestInfo{})
	require.NoError(t, err)
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	require.NoError(t, err)
	return leaf.Subject.CommonName
}

func TestFileKeyManagerPicksUpRotatedCertificate(t *testing.T) {
	dir := t.TempDir()
	writeClientCertificate(t, dir, "SMP-OLD")
	keys := FileKeyManager{
		CertFile: filepath.Join(dir, "client.crt"),
		KeyFile:  filepath.Join(dir, "client.key"),
	}

	cfg, err := keys.ClientTLSConfig()
	require.NoError(t, err)
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
	assert.Equal(t, "SMP-OLD", presentedCommonName(t, cfg))

	writeClientCertificate(t, dir, "SMP-NEW")
	assert.Equal(t, "SMP-NEW", presentedCommonName(t, cfg))
}

func TestFileKeyManagerErrors(t *testing.T) {
	t.Run("files not configured", func(t *testing.T) {
		_, err := FileKeyManager{}.ClientTLSConfig()
		assert.Error(t, err)
	})
	t.Run("unreadable pair", func(t *testing.T) {
		dir := t.TempDir()
		_, err := FileKeyManager{
			CertFile: filepath.Join(dir, "missing.crt"),
			KeyFile:  filepath.Join(dir, "missing.key"),
		}.ClientTLSConfig()
		assert.Error(t, err)
	})
	t.Run("trust store without certificates", func(t *testing.T) {
		dir := t.TempDir()
		writeClientCertificate(t, dir, "SMP")
		ca := filepath.Join(dir, "ca.pem")
		require.NoError(t, os.WriteFile(ca, []byte("not pem"), 0o600))
		_, err := FileKeyManager{
			CertFile: filepath.Join(dir, "client.crt"),
			KeyFile:  filepath.Join(dir, "client.key"),
			CAFile:   ca,
		}.ClientTLSConfig()
		assert.Error(t, err)
	})
}
