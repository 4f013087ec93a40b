// Package loam stores guild configs as markdown documents with YAML
// frontmatter, so moderators can review and edit them in a plain directory.
package loam

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/loam"
	"github.com/aretw0/loam/pkg/core"
	"github.com/aretw0/warden/pkg/domain"
)

// GuildMetadata is the frontmatter of a guild config document.
// It uses "mapstructure" tags to match the YAML keys.
type GuildMetadata struct {
	GuildID  string `json:"guild_id" mapstructure:"guild_id"`
	MaxWarns int    `json:"max_warns" mapstructure:"max_warns"`
	// UpdatedAt is either an RFC 3339 string or a time already decoded by the YAML parser.
	UpdatedAt any `json:"updated_at,omitempty" mapstructure:"updated_at"`
}

// ConfigStore implements ports.GuildConfigStore on top of a Loam repository.
type ConfigStore struct {
	dir   string
	repo  core.Repository
	typed *loam.TypedRepository[GuildMetadata]
	mu    sync.Mutex
}

// Open initialises (or reuses) a Loam repository rooted at dir.
func Open(dir string) (*ConfigStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve loam dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create loam dir: %w", err)
	}
	repo, err := loam.Init(abs, loam.WithVersioning(false))
	if err != nil {
		return nil, fmt.Errorf("failed to init loam: %w", err)
	}
	return New(abs, repo), nil
}

// New wraps an existing repository. dir must be the repository root.
func New(dir string, repo core.Repository) *ConfigStore {
	return &ConfigStore{
		dir:   dir,
		repo:  repo,
		typed: loam.NewTypedRepository[GuildMetadata](repo),
	}
}

func docID(guildID string) string {
	return guildID + ".md"
}

func validID(guildID string) error {
	if guildID == "" || strings.ContainsAny(guildID, `/\`) || strings.HasPrefix(guildID, ".") {
		return fmt.Errorf("%w: guild id %q cannot be used as a document name", domain.ErrInvalidConfig, guildID)
	}
	return nil
}

// Load reads a guild config document.
func (s *ConfigStore) Load(ctx context.Context, guildID string) (domain.GuildConfig, error) {
	if err := validID(guildID); err != nil {
		return domain.GuildConfig{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(filepath.Join(s.dir, docID(guildID))); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.GuildConfig{}, domain.ErrConfigNotFound
		}
		return domain.GuildConfig{}, fmt.Errorf("failed to stat guild document: %w", err)
	}

	doc, err := s.typed.Get(ctx, docID(guildID))
	if err != nil {
		return domain.GuildConfig{}, fmt.Errorf("loam get failed for %s: %w", guildID, err)
	}
	return toConfig(guildID, doc.Data), nil
}

// Save writes the config as frontmatter plus a short human-readable body.
func (s *ConfigStore) Save(ctx context.Context, cfg domain.GuildConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := validID(cfg.GuildID); err != nil {
		return err
	}

	meta := core.Metadata{
		"guild_id":  cfg.GuildID,
		"max_warns": cfg.MaxWarns,
	}
	if !cfg.UpdatedAt.IsZero() {
		meta["updated_at"] = cfg.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.repo.Save(ctx, core.Document{
		ID:       docID(cfg.GuildID),
		Content:  renderBody(cfg),
		Metadata: meta,
	})
	if err != nil {
		return fmt.Errorf("loam save failed for %s: %w", cfg.GuildID, err)
	}
	return nil
}

// List returns every guild document in the repository.
func (s *ConfigStore) List(ctx context.Context) ([]domain.GuildConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.typed.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	out := make([]domain.GuildConfig, 0, len(docs))
	for _, doc := range docs {
		if doc.Data.GuildID == "" {
			continue
		}
		out = append(out, toConfig(doc.Data.GuildID, doc.Data))
	}
	return out, nil
}

func toConfig(guildID string, meta GuildMetadata) domain.GuildConfig {
	cfg := domain.GuildConfig{GuildID: meta.GuildID, MaxWarns: meta.MaxWarns}
	if cfg.GuildID == "" {
		cfg.GuildID = guildID
	}
	switch v := meta.UpdatedAt.(type) {
	case time.Time:
		cfg.UpdatedAt = v
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			cfg.UpdatedAt = t
		}
	}
	return cfg
}

func renderBody(cfg domain.GuildConfig) string {
	return fmt.Sprintf("# Guild %s\n\nMembers are muted after **%d** warnings.\n", cfg.GuildID, cfg.MaxWarns)
}
