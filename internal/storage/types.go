package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var ErrClosed = errors.New("settings store closed")

// Store is the settings store used by the bot.
//
// Get returns ok=false for missing keys (including keys set to JSON null).
// Set only changes the in-memory view; Flush persists it.
type Store interface {
	Get(ctx context.Context, key string) (value json.RawMessage, ok bool, err error)
	Set(ctx context.Context, key string, value any) error
	Flush(ctx context.Context) error
	Close() error
}

// Config configures storage.
//
// Driver values:
//   - "file": JSON settings file (default)
//   - "sqlite": SQLite database file
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}
