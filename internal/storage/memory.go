package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// view is the in-memory settings map shared by the drivers.
type view struct {
	mu     sync.Mutex
	values map[string]json.RawMessage
	dirty  map[string]struct{}
	closed bool
}

func newView(values map[string]json.RawMessage) view {
	if values == nil {
		values = map[string]json.RawMessage{}
	}
	return view{values: values, dirty: map[string]struct{}{}}
}

func (v *view) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	_ = ctx
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil, false, ErrClosed
	}
	raw, ok := v.values[strings.TrimSpace(key)]
	if !ok || isNull(raw) {
		return nil, false, nil
	}
	return append(json.RawMessage(nil), raw...), true, nil
}

func (v *view) Set(ctx context.Context, key string, value any) error {
	_ = ctx
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("settings: empty key")
	}
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("settings %s: %w", key, err)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ErrClosed
	}
	if old, ok := v.values[key]; ok && bytes.Equal(old, b) {
		return nil
	}
	v.values[key] = b
	v.dirty[key] = struct{}{}
	return nil
}

// snapshotLocked returns a copy of the values and the dirty keys.
func (v *view) snapshotLocked() (map[string]json.RawMessage, []string) {
	vals := make(map[string]json.RawMessage, len(v.values))
	for k, raw := range v.values {
		vals[k] = raw
	}
	keys := make([]string, 0, len(v.dirty))
	for k := range v.dirty {
		keys = append(keys, k)
	}
	return vals, keys
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(bytes.TrimSpace(raw)) == "null"
}
