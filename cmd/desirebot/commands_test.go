package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"desirebot/internal/app"
	"desirebot/internal/mentions"
	"desirebot/internal/posting"
	"desirebot/pkg/systemd"
)

func TestPrintState(t *testing.T) {
	t.Parallel()
	now := time.Unix(1_800_000_000, 0)
	var buf bytes.Buffer
	printState(&buf, app.StateView{
		Driver:   "file",
		Path:     "/srv/desireBot.json",
		State:    posting.State{LastUpdate: now.Unix() - 7200, MinimumSpacing: 3600, MaximumSpacing: 14400, TriggerProbability: 0.5},
		Defaults: posting.Defaults{MaximumSpacing: true},
		Cursor:   mentions.Cursor{LastSeenID: "105"},
	}, now)
	out := buf.String()
	for _, want := range []string{
		"store:             /srv/desireBot.json (file)",
		"(2 hours ago)",
		"minimum spacing:   1h0m0s\n",
		"maximum spacing:   4h0m0s (default)",
		"probability:       0.5\n",
		"last mention:      105",
		"last executed:     never",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintUnit(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	printUnit(&buf, systemd.UnitStatus{Name: "x.service", LoadState: "not-found"}, time.Now())
	if !strings.Contains(buf.String(), "not found") {
		t.Fatalf("output = %q", buf.String())
	}
}

func TestDebugRunFromCLI(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfg := filepath.Join(dir, "desirebot.yaml")
	if err := os.WriteFile(cfg, []byte("logging:\n  level: error\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", cfg, "--debug", "--force"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out.String(), "post=true reason=forced") {
		t.Fatalf("output = %q", out.String())
	}
	if _, err := os.Stat(filepath.Join(dir, "desireBot.json")); !os.IsNotExist(err) {
		t.Fatal("debug run wrote settings")
	}
}

func TestMissingConfigFails(t *testing.T) {
	t.Parallel()
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "none.json"), "state"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error")
	}
}
