package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/aretw0/warden/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by the adapter.
const DefaultPrefix = "warden:"

// Option configures the Redis stores.
type Option func(*options)

type options struct {
	prefix string
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

func buildOptions(opts []Option) options {
	o := options{prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewClient creates a client from a redis:// URL.
func NewClient(url string) (*backend.Client, error) {
	opts, err := backend.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return backend.NewClient(opts), nil
}

// ConfigStore implements ports.GuildConfigStore using Redis.
// Each config is a JSON string; a set indexes the known guilds.
type ConfigStore struct {
	client *backend.Client
	prefix string
}

// NewConfigStore creates a config store from an existing client.
func NewConfigStore(client *backend.Client, opts ...Option) *ConfigStore {
	o := buildOptions(opts)
	return &ConfigStore{client: client, prefix: o.prefix}
}

func (s *ConfigStore) key(guildID string) string {
	return s.prefix + "guild:" + guildID
}

func (s *ConfigStore) indexKey() string {
	return s.prefix + "guild:index"
}

// Load retrieves a guild config.
func (s *ConfigStore) Load(ctx context.Context, guildID string) (domain.GuildConfig, error) {
	val, err := s.client.Get(ctx, s.key(guildID)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return domain.GuildConfig{}, domain.ErrConfigNotFound
		}
		return domain.GuildConfig{}, fmt.Errorf("failed to get from redis: %w", err)
	}

	var cfg domain.GuildConfig
	if err := json.Unmarshal([]byte(val), &cfg); err != nil {
		return domain.GuildConfig{}, fmt.Errorf("failed to unmarshal guild config: %w", err)
	}
	return cfg, nil
}

// Save persists a guild config and indexes it.
func (s *ConfigStore) Save(ctx context.Context, cfg domain.GuildConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal guild config: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(cfg.GuildID), data, 0)
	pipe.SAdd(ctx, s.indexKey(), cfg.GuildID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// List returns every indexed config. Index entries whose value vanished are skipped.
func (s *ConfigStore) List(ctx context.Context) ([]domain.GuildConfig, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read guild index: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read guild configs: %w", err)
	}

	out := make([]domain.GuildConfig, 0, len(vals))
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var cfg domain.GuildConfig
		if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal guild config %s: %w", ids[i], err)
		}
		out = append(out, cfg)
	}
	return out, nil
}

// WarnStore implements ports.WarnStore using one Redis hash per guild.
// HINCRBY keeps increments atomic across replicas.
type WarnStore struct {
	client *backend.Client
	prefix string
}

// NewWarnStore creates a warn store from an existing client.
func NewWarnStore(client *backend.Client, opts ...Option) *WarnStore {
	o := buildOptions(opts)
	return &WarnStore{client: client, prefix: o.prefix}
}

func (s *WarnStore) key(guildID string) string {
	return s.prefix + "warns:" + guildID
}

// Get returns the current count.
func (s *WarnStore) Get(ctx context.Context, guildID, userID string) (int, error) {
	val, err := s.client.HGet(ctx, s.key(guildID), userID).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get warns from redis: %w", err)
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("corrupt warn count %q: %w", val, err)
	}
	return n, nil
}

// Increment adds one warning.
func (s *WarnStore) Increment(ctx context.Context, guildID, userID string) (int, error) {
	n, err := s.client.HIncrBy(ctx, s.key(guildID), userID, 1).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment warns in redis: %w", err)
	}
	return int(n), nil
}

// Reset clears the count.
func (s *WarnStore) Reset(ctx context.Context, guildID, userID string) error {
	if err := s.client.HDel(ctx, s.key(guildID), userID).Err(); err != nil {
		return fmt.Errorf("failed to reset warns in redis: %w", err)
	}
	return nil
}
