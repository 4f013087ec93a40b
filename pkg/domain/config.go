package domain

import (
	"fmt"
	"time"
)

// DefaultMaxWarns is the warn threshold used for guilds without an explicit setting.
const DefaultMaxWarns = 3

// GuildConfig holds the moderation settings of a single guild.
type GuildConfig struct {
	GuildID   string    `json:"guild_id" yaml:"guild_id" mapstructure:"guild_id"`
	MaxWarns  int       `json:"max_warns" yaml:"max_warns" mapstructure:"max_warns"`
	UpdatedAt time.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty" mapstructure:"updated_at"`
}

// DefaultGuildConfig returns the settings applied to guilds that never configured anything.
func DefaultGuildConfig(guildID string) GuildConfig {
	return GuildConfig{GuildID: guildID, MaxWarns: DefaultMaxWarns}
}

// ValidateMaxWarns rejects thresholds below one.
func ValidateMaxWarns(n int) error {
	if n < 1 {
		return fmt.Errorf("%w: max warns must be at least 1, got %d", ErrInvalidConfig, n)
	}
	return nil
}

// Validate checks the config before it is persisted.
func (c GuildConfig) Validate() error {
	if c.GuildID == "" {
		return fmt.Errorf("%w: guild id is required", ErrInvalidConfig)
	}
	return ValidateMaxWarns(c.MaxWarns)
}
