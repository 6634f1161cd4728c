package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	logx "desirebot/pkg/logx"
)

// fileStore keeps all settings in one JSON object on disk.
type fileStore struct {
	view
	path string
	log  logx.Logger
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	values := map[string]json.RawMessage{}
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Info("settings file not found; starting empty", logx.String("path", path))
	case err != nil:
		return nil, err
	case len(bytes.TrimSpace(b)) > 0:
		if err := json.Unmarshal(b, &values); err != nil {
			return nil, fmt.Errorf("settings file %s: %w", path, err)
		}
	}

	return &fileStore{view: newView(values), path: path, log: log}, nil
}

// Flush rewrites the whole file atomically. A crash leaves either the old
// or the new file, never a partial one.
func (s *fileStore) Flush(ctx context.Context) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if len(s.dirty) == 0 {
		return nil
	}
	vals, keys := s.snapshotLocked()

	b, err := json.MarshalIndent(vals, "", "   ")
	if err != nil {
		return err
	}
	b = append(b, '\n')

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return err
	}
	s.dirty = map[string]struct{}{}
	s.log.Debug("settings flushed", logx.String("path", s.path), logx.Strings("keys", keys))
	return nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
