package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"smpd/internal/storage"
	"smpd/internal/storage/storagetest"
)

func TestFileBackend(t *testing.T) {
	suite.Run(t, &storagetest.BackendSuite{Open: func() *storage.Backend {
		b, err := Open(t.TempDir())
		require.NoError(t, err)
		return b
	}})
}

func TestReopenRestoresSnapshot(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	b, err := Open(dir)
	require.NoError(t, err)
	sg := storagetest.ServiceGroup("persist", "alice")
	_, err = b.ServiceGroups.Create(ctx, sg)
	require.NoError(t, err)
	si := storagetest.ServiceInformation(sg, "doc1",
		storagetest.Process("proc1", storagetest.Endpoint("peppol-transport-as4-v2_0", "https://ap.example.org")))
	_, err = b.ServiceInformation.Create(ctx, si)
	require.NoError(t, err)

	reopened, err := Open(dir)
	require.NoError(t, err)
	got, err := reopened.ServiceGroups.Get(ctx, sg.Key)
	require.NoError(t, err)
	assert.Equal(t, sg, got)

	gotSI, err := reopened.ServiceInformation.Get(ctx, si.StorageKey())
	require.NoError(t, err)
	assert.True(t, si.Equal(gotSI))

	leftovers, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestOpenRejectsUnknownVersion(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, serviceGroupsFile), []byte("version: 9\nitems: []\n"), 0o600))

	_, err := Open(dir)
	require.Error(t, err)
}
