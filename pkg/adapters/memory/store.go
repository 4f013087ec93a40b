package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/warden/pkg/domain"
)

// ConfigStore implements ports.GuildConfigStore in memory.
// Safe for concurrent use.
type ConfigStore struct {
	data map[string]domain.GuildConfig
	mu   sync.RWMutex
}

// NewConfigStore creates a new in-memory config store, optionally seeded.
func NewConfigStore(seed ...domain.GuildConfig) *ConfigStore {
	s := &ConfigStore{data: make(map[string]domain.GuildConfig)}
	for _, cfg := range seed {
		s.data[cfg.GuildID] = cfg
	}
	return s
}

// Load returns the stored config.
func (s *ConfigStore) Load(ctx context.Context, guildID string) (domain.GuildConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.data[guildID]
	if !ok {
		return domain.GuildConfig{}, domain.ErrConfigNotFound
	}
	return cfg, nil
}

// Save upserts the config.
func (s *ConfigStore) Save(ctx context.Context, cfg domain.GuildConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[cfg.GuildID] = cfg
	return nil
}

// List returns every config ordered by guild id.
func (s *ConfigStore) List(ctx context.Context) ([]domain.GuildConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.GuildConfig, 0, len(s.data))
	for _, cfg := range s.data {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GuildID < out[j].GuildID })
	return out, nil
}

type warnKey struct {
	guildID string
	userID  string
}

// WarnStore implements ports.WarnStore in memory.
// Safe for concurrent use.
type WarnStore struct {
	counts map[warnKey]int
	mu     sync.Mutex
}

// NewWarnStore creates a new in-memory warn store.
func NewWarnStore() *WarnStore {
	return &WarnStore{counts: make(map[warnKey]int)}
}

// Get returns the current count.
func (s *WarnStore) Get(ctx context.Context, guildID, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[warnKey{guildID, userID}], nil
}

// Increment adds one warning.
func (s *WarnStore) Increment(ctx context.Context, guildID, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := warnKey{guildID, userID}
	s.counts[k]++
	return s.counts[k], nil
}

// Reset clears the count.
func (s *WarnStore) Reset(ctx context.Context, guildID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counts, warnKey{guildID, userID})
	return nil
}
