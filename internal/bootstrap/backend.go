package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"smpd/internal/domain"
	"smpd/internal/platform/config"
	platformpostgres "smpd/internal/platform/postgres"
	platformredis "smpd/internal/platform/redis"
	"smpd/internal/storage"
	"smpd/internal/storage/cache"
	"smpd/internal/storage/file"
	"smpd/internal/storage/memory"
	"smpd/internal/storage/postgres"
	redisstore "smpd/internal/storage/redis"
)

// Opener constructs the backend of one storage kind.
type Opener func(ctx context.Context, cfg config.Storage) (*storage.Backend, error)

// Openers maps every supported kind to its constructor.
func Openers() map[storage.Kind]Opener {
	return map[storage.Kind]Opener{
		storage.KindMemory: func(context.Context, config.Storage) (*storage.Backend, error) {
			return memory.NewBackend(), nil
		},
		storage.KindFile: func(_ context.Context, cfg config.Storage) (*storage.Backend, error) {
			return file.Open(cfg.File.Dir)
		},
		storage.KindSQL: func(ctx context.Context, cfg config.Storage) (*storage.Backend, error) {
			db, err := platformpostgres.Open(ctx, cfg.Postgres)
			if err != nil {
				return nil, err
			}
			b, err := postgres.NewBackend(ctx, db, cfg.Postgres.Migrate)
			if err != nil {
				_ = db.Close()
				return nil, err
			}
			return b, nil
		},
		storage.KindRedis: func(ctx context.Context, cfg config.Storage) (*storage.Backend, error) {
			client, err := platformredis.New(ctx, cfg.Redis)
			if err != nil {
				return nil, err
			}
			return redisstore.NewBackend(client, cfg.Redis.KeyPrefix, true), nil
		},
	}
}

// OpenBackend opens the configured backend, wraps service groups in the read
// cache when enabled and seeds the reference data of an empty store.
func OpenBackend(ctx context.Context, cfg config.Storage, logger *slog.Logger) (*storage.Backend, error) {
	kind, err := storage.ParseKind(cfg.Kind)
	if err != nil {
		return nil, err
	}
	open, ok := Openers()[kind]
	if !ok {
		return nil, fmt.Errorf("no opener registered for storage kind %q", kind)
	}
	b, err := open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", kind, err)
	}
	if cfg.Cache.Enabled {
		b.ServiceGroups = cache.New[domain.ServiceGroup](b.ServiceGroups, cfg.Cache.TTL)
	}
	if err := storage.SeedDefaults(ctx, b); err != nil {
		_ = b.Close()
		return nil, err
	}
	logger.InfoContext(ctx, "storage backend ready", "kind", kind, "service_group_cache", cfg.Cache.Enabled)
	return b, nil
}
