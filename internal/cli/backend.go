package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/warden/internal/config"
	"github.com/aretw0/warden/pkg/adapters/loam"
	"github.com/aretw0/warden/pkg/adapters/memory"
	"github.com/aretw0/warden/pkg/adapters/redis"
	"github.com/aretw0/warden/pkg/adapters/sqlite"
	"github.com/aretw0/warden/pkg/ports"
)

// Backend bundles the persistence collaborators selected by configuration.
type Backend struct {
	Name    string
	Configs ports.GuildConfigStore
	Warns   ports.WarnStore
	Locker  ports.DistributedLocker // nil unless the backend is shared between processes

	closers []func() error
}

// OpenBackend opens the store named by cfg.Backend.
func OpenBackend(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (*Backend, error) {
	b := &Backend{Name: cfg.Backend}

	switch cfg.Backend {
	case config.BackendMemory, "":
		b.Name = config.BackendMemory
		b.Configs = memory.NewConfigStore()
		b.Warns = memory.NewWarnStore()

	case config.BackendRedis:
		client, err := redis.NewClient(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to reach redis: %w", err)
		}
		b.Configs = redis.NewConfigStore(client, redis.WithPrefix(cfg.RedisPrefix))
		b.Warns = redis.NewWarnStore(client, redis.WithPrefix(cfg.RedisPrefix))
		b.Locker = redis.NewLocker(client, cfg.RedisPrefix)
		b.closers = append(b.closers, client.Close)

	case config.BackendSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		b.Configs = store
		b.Warns = store
		b.closers = append(b.closers, store.Close)

	case config.BackendLoam:
		store, err := loam.Open(cfg.LoamDir)
		if err != nil {
			return nil, err
		}
		// Loam keeps guild settings as documents; counters stay in process.
		b.Configs = store
		b.Warns = memory.NewWarnStore()

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}

	logger.Debug("Store Opened", "backend", b.Name)
	return b, nil
}

// Close releases connections held by the backend.
func (b *Backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i]())
	}
	b.closers = nil
	return errors.Join(errs...)
}
