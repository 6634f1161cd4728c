package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	logx "desirebot/pkg/logx"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	view
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("storage.path is required for sqlite driver")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One bot process, one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()))
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	ctx := context.Background()
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	values, err := loadAll(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Debug("settings loaded", logx.String("path", path), logx.Int("keys", len(values)))
	return &sqliteStore{view: newView(values), db: db, log: log}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, string(b))
	return err
}

func loadAll(ctx context.Context, db *sql.DB) (map[string]json.RawMessage, error) {
	rows, err := db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]json.RawMessage{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		if !json.Valid([]byte(v)) {
			return nil, fmt.Errorf("settings %s: stored value is not JSON", k)
		}
		out[k] = json.RawMessage(v)
	}
	return out, rows.Err()
}

// Flush upserts every dirty key in one transaction.
func (s *sqliteStore) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if len(s.dirty) == 0 {
		return nil
	}
	vals, keys := s.snapshotLocked()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	now := time.Now().Unix()
	for _, k := range keys {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO settings(key, value, updated_at) VALUES(?,?,?)
			 ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
			k, string(vals[k]), now,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("settings %s: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.dirty = map[string]struct{}{}
	s.log.Debug("settings flushed", logx.Strings("keys", keys))
	return nil
}

func (s *sqliteStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
