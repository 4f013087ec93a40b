// Package guildconfig caches per-guild moderation settings in front of a durable store.
//
// The cache is loaded once at startup and written through: Set persists first and only
// then updates the in-memory value, so a failed write never leaves the cache ahead of
// the store. Reads never touch the store and never wait on a write in progress.
package guildconfig

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/warden/internal/logging"
	"github.com/aretw0/warden/pkg/domain"
	"github.com/aretw0/warden/pkg/keylock"
	"github.com/aretw0/warden/pkg/ports"
)

// Cache is the in-memory guild config view.
type Cache struct {
	store  ports.GuildConfigStore
	locks  *keylock.Manager
	logger *slog.Logger
	now    func() time.Time

	mu      sync.RWMutex
	configs map[string]domain.GuildConfig
}

// Option configures the Cache.
type Option func(*Cache)

// WithLogger configures a logger for the Cache.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// WithLocks shares a lock manager, e.g. one backed by a distributed locker.
func WithLocks(locks *keylock.Manager) Option {
	return func(c *Cache) {
		c.locks = locks
	}
}

// New creates a cache in front of store.
func New(store ports.GuildConfigStore, opts ...Option) *Cache {
	c := &Cache{
		store:   store,
		logger:  logging.NewNop(),
		now:     time.Now,
		configs: make(map[string]domain.GuildConfig),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.locks == nil {
		c.locks = keylock.New(keylock.WithLogger(c.logger))
	}
	return c
}

// Load reads every stored config into the cache.
func (c *Cache) Load(ctx context.Context) error {
	configs, err := c.store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load guild configs: %w", err)
	}

	c.mu.Lock()
	for _, cfg := range configs {
		c.configs[cfg.GuildID] = cfg
	}
	c.mu.Unlock()

	c.logger.Info("Guild configs loaded", "count", len(configs))
	return nil
}

// Get returns the cached config, or the defaults for unknown guilds.
func (c *Cache) Get(guildID string) domain.GuildConfig {
	c.mu.RLock()
	cfg, ok := c.configs[guildID]
	c.mu.RUnlock()
	if !ok {
		return domain.DefaultGuildConfig(guildID)
	}
	return cfg
}

// Set validates and persists a new max warn count, then caches it.
// On any failure the previously cached config is left untouched.
func (c *Cache) Set(ctx context.Context, guildID string, maxWarns int) (domain.GuildConfig, error) {
	if err := domain.ValidateMaxWarns(maxWarns); err != nil {
		return domain.GuildConfig{}, err
	}
	if guildID == "" {
		return domain.GuildConfig{}, fmt.Errorf("%w: guild id is required", domain.ErrInvalidConfig)
	}

	cfg := domain.GuildConfig{GuildID: guildID, MaxWarns: maxWarns}
	err := c.locks.Do(ctx, "guildconfig:"+guildID, func(ctx context.Context) error {
		cfg.UpdatedAt = c.now().UTC()
		if err := c.store.Save(ctx, cfg); err != nil {
			return fmt.Errorf("failed to save guild config: %w", err)
		}
		c.mu.Lock()
		c.configs[guildID] = cfg
		c.mu.Unlock()
		return nil
	})
	if err != nil {
		c.logger.Warn("Guild config write failed", "guild_id", guildID, "err", err)
		return domain.GuildConfig{}, err
	}

	c.logger.Info("Guild config updated", "guild_id", guildID, "max_warns", maxWarns)
	return cfg, nil
}

// All returns a snapshot of every cached config.
func (c *Cache) All() []domain.GuildConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.GuildConfig, 0, len(c.configs))
	for _, cfg := range c.configs {
		out = append(out, cfg)
	}
	return out
}
