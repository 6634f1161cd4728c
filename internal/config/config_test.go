package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func TestLoadJSONAppliesDefaults(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	p := writeFile(t, dir, "desirebot.json", `{"bluesky":{"identifier":"bot.bsky.social","app_password":"x"}}`)

	cfg, err := NewManager(p).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BotPath != dir {
		t.Fatalf("BotPath = %q, want %q", cfg.BotPath, dir)
	}
	if cfg.Storage.Driver != "file" || cfg.Storage.Path != DefaultFileStorePath {
		t.Fatalf("storage defaults = %+v", cfg.Storage)
	}
	if cfg.Audit.Path != DefaultAuditPath {
		t.Fatalf("audit path = %q", cfg.Audit.Path)
	}
	if cfg.Bluesky.PDSHost != DefaultPDSHost {
		t.Fatalf("pds host = %q", cfg.Bluesky.PDSHost)
	}
	if len(cfg.Search.Words) != 3 || len(cfg.Search.Queries) != 2 || cfg.Search.BlockedTerms[0] != "magick" {
		t.Fatalf("search defaults = %+v", cfg.Search)
	}
	if err := cfg.RequireCredentials(); err != nil {
		t.Fatalf("RequireCredentials: %v", err)
	}
	if got := cfg.ResolvePath("x.json"); got != filepath.Join(dir, "x.json") {
		t.Fatalf("ResolvePath = %q", got)
	}
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	p := writeFile(t, dir, "desirebot.yaml", `
storage:
  driver: sqlite
search:
  words: [crave]
  blocked_terms: []
daemon:
  schedule: "*/5 * * * *"
`)
	cfg, err := NewManager(p).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.Path != DefaultSQLitePath {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if len(cfg.Search.Words) != 1 || cfg.Search.Words[0] != "crave" {
		t.Fatalf("words = %v", cfg.Search.Words)
	}
	if len(cfg.Search.BlockedTerms) != 0 {
		t.Fatalf("explicit empty blocked_terms should stay empty, got %v", cfg.Search.BlockedTerms)
	}
	if cfg.Daemon.Schedule != "*/5 * * * *" {
		t.Fatalf("schedule = %q", cfg.Daemon.Schedule)
	}
	if err := cfg.RequireCredentials(); err == nil {
		t.Fatal("expected missing credentials error")
	}
}

func TestParseRejectsBadInput(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "unknown field", body: `{"appKey":"x"}`, want: "unknown field"},
		{name: "trailing data", body: `{} {}`, want: "trailing data"},
		{name: "bad driver", body: `{"storage":{"driver":"redis"}}`, want: "storage.driver"},
		{name: "bad duration", body: `{"bluesky":{"timeout":"soon"}}`, want: "bluesky.timeout"},
		{name: "bad timezone", body: `{"daemon":{"timezone":"Mars/Olympus"}}`, want: "daemon.timezone"},
		{name: "reply without text", body: `{"mentions":{"reply_to_questions":true}}`, want: "mentions.reply_text"},
		{name: "alerts without token", body: `{"alerts":{"telegram":{"enabled":true,"chat_id":1}}}`, want: "alerts.telegram.token"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := writeFile(t, t.TempDir(), "c.json", tt.body)
			_, err := NewManager(p).Parse()
			if err == nil {
				t.Fatalf("expected error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error = %v, want substring %q", err, tt.want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()
	_, err := NewManager(filepath.Join(t.TempDir(), "nope.json")).Load()
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSummarizeChange(t *testing.T) {
	t.Parallel()
	a := &Config{Bluesky: BlueskyConfig{AppPassword: "old"}}
	b := &Config{Bluesky: BlueskyConfig{AppPassword: "new"}, Daemon: DaemonConfig{Schedule: "1m"}}
	sections, fields := SummarizeChange(a, b)
	if strings.Join(sections, ",") != "bluesky,daemon" {
		t.Fatalf("sections = %v", sections)
	}
	if len(fields) == 0 {
		t.Fatal("expected fields")
	}
}

func TestWatchReloadsValidChanges(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "c.json", `{"daemon":{"schedule":"1m"}}`)
	m := NewManager(p)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	changed := make(chan *Config, 4)
	m.OnChange(func(_, newCfg *Config) { changed <- newCfg })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- m.Watch(ctx) }()

	// Give the watcher a moment to register the directory.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, dir, "c.json", `{"daemon":{"schedule":"2m"}}`)

	select {
	case cfg := <-changed:
		if cfg.Daemon.Schedule != "2m" {
			t.Fatalf("schedule = %q", cfg.Daemon.Schedule)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
	if got := m.Get().Daemon.Schedule; got != "2m" {
		t.Fatalf("Get().Daemon.Schedule = %q", got)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Watch: %v", err)
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw     string
		want    time.Duration
		wantErr string
	}{
		{raw: "", want: 5 * time.Second},
		{raw: "0s", want: 5 * time.Second},
		{raw: " 250ms ", want: 250 * time.Millisecond},
		{raw: "-1s", wantErr: "storage.busy_timeout: duration must be >= 0"},
		{raw: "soon", wantErr: `storage.busy_timeout: invalid duration "soon"`},
	}
	for _, tt := range tests {
		got, err := ParseDurationOrDefault("storage.busy_timeout", tt.raw, 5*time.Second)
		if tt.wantErr != "" {
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("%q: err = %v, want %q", tt.raw, err, tt.wantErr)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("%q: got %v, %v; want %v", tt.raw, got, err, tt.want)
		}
	}
}

func TestYAMLConfigUsesStrictDecoder(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	p := writeFile(t, dir, "desirebot.yaml", "search:\n  words: [crave]\n  typo_field: 1\n")
	_, err := NewManager(p).Parse()
	if err == nil || !strings.Contains(err.Error(), "yaml config") {
		t.Fatalf("err = %v, want unknown-field rejection from the yaml path", err)
	}
}
