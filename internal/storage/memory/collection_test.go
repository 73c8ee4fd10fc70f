package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"smpd/internal/domain"
	"smpd/internal/storage"
	"smpd/internal/storage/storagetest"
)

func TestMemoryBackend(t *testing.T) {
	suite.Run(t, &storagetest.BackendSuite{Open: NewBackend})
}

func TestCommitFailureRevertsMutation(t *testing.T) {
	ctx := context.Background()
	failing := false
	c := NewCollection[domain.ServiceGroup](WithCommit[domain.ServiceGroup](func([]domain.ServiceGroup) error {
		if failing {
			return errors.New("disk full")
		}
		return nil
	}))

	sg := storagetest.ServiceGroup("commit", "alice")
	_, err := c.Create(ctx, sg)
	require.NoError(t, err)

	failing = true
	next := sg
	next.OwnerID = "bob"
	change, err := c.Update(ctx, next)
	require.Error(t, err)
	require.Equal(t, storage.Unchanged, change)

	_, err = c.Delete(ctx, sg.Key)
	require.Error(t, err)

	got, err := c.Get(ctx, sg.Key)
	require.NoError(t, err)
	require.Equal(t, "alice", got.OwnerID)
}
