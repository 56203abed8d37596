// Package store persists the roster and filter settings in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bnema/maa-copilot-filter/internal/models"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Setting keys
const (
	KeyRoster          = "myOperators"
	KeyEnabled         = "filterEnabled"
	KeyAllowOneMissing = "allowOneMissing"
	KeyRequireEliteTwo = "requireEliteTwoForTopRarity"
)

// Store is a small key-value settings store. Values are JSON encoded.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// one connection so :memory: databases are shared across calls
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Get decodes the value stored under key into dst. It reports false when
// the key is not set.
func (s *Store) Get(ctx context.Context, key string, dst any) (bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// Set stores v under key
func (s *Store) Set(ctx context.Context, key string, v any) error {
	return s.setAll(ctx, map[string]any{key: v})
}

func (s *Store) setAll(ctx context.Context, values map[string]any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339)
	for key, v := range values {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, string(raw), now,
		); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
	}
	return tx.Commit()
}

// Settings is everything the store persists
type Settings struct {
	Roster []models.Operator
	Filter models.FilterConfig
}

// Load reads persisted settings, using defaults for missing keys.
// TopRarity is not persisted and keeps its default.
func (s *Store) Load(ctx context.Context) (Settings, error) {
	out := Settings{Filter: models.DefaultFilterConfig()}

	if _, err := s.Get(ctx, KeyRoster, &out.Roster); err != nil {
		return out, err
	}
	if _, err := s.Get(ctx, KeyEnabled, &out.Filter.Enabled); err != nil {
		return out, err
	}
	if _, err := s.Get(ctx, KeyAllowOneMissing, &out.Filter.AllowOneMissing); err != nil {
		return out, err
	}
	if _, err := s.Get(ctx, KeyRequireEliteTwo, &out.Filter.RequireEliteTwoForTopRarity); err != nil {
		return out, err
	}
	return out, nil
}

// SaveRoster stores the imported roster
func (s *Store) SaveRoster(ctx context.Context, ops []models.Operator) error {
	if ops == nil {
		ops = []models.Operator{}
	}
	return s.Set(ctx, KeyRoster, ops)
}

// SaveFilterConfig stores the user toggles
func (s *Store) SaveFilterConfig(ctx context.Context, cfg models.FilterConfig) error {
	return s.setAll(ctx, map[string]any{
		KeyEnabled:         cfg.Enabled,
		KeyAllowOneMissing: cfg.AllowOneMissing,
		KeyRequireEliteTwo: cfg.RequireEliteTwoForTopRarity,
	})
}
