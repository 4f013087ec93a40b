// Package sqlite persists guild configs and warn counts in a single SQLite
// file. The schema is managed by embedded goose migrations.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/warden/pkg/domain"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store implements ports.GuildConfigStore and ports.WarnStore.
type Store struct {
	db *sql.DB
}

// Open opens the database at path and applies pending migrations.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := path
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// A single connection serialises writers and keeps ":memory:" coherent.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return err
	}
	_, err = provider.Up(ctx)
	return err
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Load reads a guild config.
func (s *Store) Load(ctx context.Context, guildID string) (domain.GuildConfig, error) {
	var (
		cfg     domain.GuildConfig
		updated int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT guild_id, max_warns, updated_at FROM guild_configs WHERE guild_id = ?`, guildID,
	).Scan(&cfg.GuildID, &cfg.MaxWarns, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.GuildConfig{}, domain.ErrConfigNotFound
		}
		return domain.GuildConfig{}, fmt.Errorf("load guild config: %w", err)
	}
	cfg.UpdatedAt = fromMillis(updated)
	return cfg, nil
}

// Save upserts a guild config.
func (s *Store) Save(ctx context.Context, cfg domain.GuildConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO guild_configs (guild_id, max_warns, updated_at) VALUES (?, ?, ?)
ON CONFLICT (guild_id) DO UPDATE SET
	max_warns = excluded.max_warns,
	updated_at = excluded.updated_at
`, cfg.GuildID, cfg.MaxWarns, toMillis(cfg.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save guild config: %w", err)
	}
	return nil
}

// List returns all guild configs ordered by id.
func (s *Store) List(ctx context.Context) ([]domain.GuildConfig, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT guild_id, max_warns, updated_at FROM guild_configs ORDER BY guild_id`)
	if err != nil {
		return nil, fmt.Errorf("list guild configs: %w", err)
	}
	defer rows.Close()

	var out []domain.GuildConfig
	for rows.Next() {
		var (
			cfg     domain.GuildConfig
			updated int64
		)
		if err := rows.Scan(&cfg.GuildID, &cfg.MaxWarns, &updated); err != nil {
			return nil, fmt.Errorf("scan guild config: %w", err)
		}
		cfg.UpdatedAt = fromMillis(updated)
		out = append(out, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate guild configs: %w", err)
	}
	return out, nil
}

// Get returns the warn count of a member, zero when absent.
func (s *Store) Get(ctx context.Context, guildID, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT count FROM warn_records WHERE guild_id = ? AND user_id = ?`, guildID, userID,
	).Scan(&n)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get warn count: %w", err)
	}
	return n, nil
}

// Increment adds one warning and returns the new count.
func (s *Store) Increment(ctx context.Context, guildID, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
INSERT INTO warn_records (guild_id, user_id, count) VALUES (?, ?, 1)
ON CONFLICT (guild_id, user_id) DO UPDATE SET count = count + 1
RETURNING count
`, guildID, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("increment warn count: %w", err)
	}
	return n, nil
}

// Reset deletes the warn record.
func (s *Store) Reset(ctx context.Context, guildID, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM warn_records WHERE guild_id = ? AND user_id = ?`, guildID, userID)
	if err != nil {
		return fmt.Errorf("reset warn count: %w", err)
	}
	return nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
