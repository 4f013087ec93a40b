package ports

import (
	"context"

	"github.com/aretw0/warden/pkg/domain"
)

// GuildConfigStore persists guild settings.
type GuildConfigStore interface {
	// Load returns domain.ErrConfigNotFound if the guild never saved a config.
	Load(ctx context.Context, guildID string) (domain.GuildConfig, error)

	// Save upserts the config for cfg.GuildID.
	Save(ctx context.Context, cfg domain.GuildConfig) error

	// List returns every stored config. Used to warm the cache at startup.
	List(ctx context.Context) ([]domain.GuildConfig, error)
}

// WarnStore persists warning counters.
type WarnStore interface {
	// Get returns 0 for users that were never warned.
	Get(ctx context.Context, guildID, userID string) (int, error)

	// Increment adds one warning and returns the new count.
	Increment(ctx context.Context, guildID, userID string) (int, error)

	// Reset sets the count back to zero.
	Reset(ctx context.Context, guildID, userID string) error
}
