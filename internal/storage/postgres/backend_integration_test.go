//go:build integration

package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"smpd/internal/storage"
	"smpd/internal/storage/postgres"
	"smpd/internal/storage/storagetest"
	"smpd/pkg/testutil/containers"
)

func TestPostgresBackendSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	pg := containers.GetManager().GetPostgres(t)

	suite.Run(t, &storagetest.BackendSuite{Open: func() *storage.Backend {
		ctx := context.Background()
		db := pg.Open(t)
		b, err := postgres.NewBackend(ctx, db, true)
		require.NoError(t, err)
		require.NoError(t, postgres.Truncate(ctx, db))
		return b
	}})
}
