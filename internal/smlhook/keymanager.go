package smlhook

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
)

// KeyManager supplies the client certificate presented to the SML.
type KeyManager interface {
	ClientTLSConfig() (*tls.Config, error)
}

// FileKeyManager loads a PEM certificate and key from disk. The returned
// config re-reads the pair on every TLS handshake, so a rotated certificate
// is presented on the next new connection without rebuilding the client.
// CAFile is optional, replaces the system roots when set and is read once.
type FileKeyManager struct {
	CertFile string
	KeyFile  string
	CAFile   string
}

func (k FileKeyManager) ClientTLSConfig() (*tls.Config, error) {
	if k.CertFile == "" || k.KeyFile == "" {
		return nil, errors.New("sml client certificate and key files are not configured")
	}
	if _, err := k.loadCertificate(); err != nil {
		return nil, err
	}
	cfg := &tls.Config{
		MinVersion: tls.VersionTLS12,
		GetClientCertificate: func(*tls.CertificateRequestInfo) (*tls.Certificate, error) {
			return k.loadCertificate()
		},
	}
	if k.CAFile != "" {
		pem, err := os.ReadFile(k.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read sml trust store: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", k.CAFile)
		}
		cfg.RootCAs = pool
	}
	return cfg, nil
}

func (k FileKeyManager) loadCertificate() (*tls.Certificate, error) {
	cert, err := tls.LoadX509KeyPair(k.CertFile, k.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load sml client certificate: %w", err)
	}
	return &cert, nil
}
