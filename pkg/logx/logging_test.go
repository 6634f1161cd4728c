package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"
)

type recordingSender struct {
	mu   sync.Mutex
	msgs []string
}

func (r *recordingSender) SendText(_ context.Context, text string) error {
	r.mu.Lock()
	r.msgs = append(r.msgs, text)
	r.mu.Unlock()
	return nil
}

func (r *recordingSender) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.msgs...)
}

func TestFormatAlert(t *testing.T) {
	t.Parallel()
	line := []byte(`{"level":"error","time":"x","message":"run failed","run_id":"abc","comp":"bot"}`)
	got := formatAlert(line)
	want := "[ERROR] run failed\n- comp=bot\n- run_id=abc"
	if got != want {
		t.Fatalf("formatAlert = %q, want %q", got, want)
	}

	if got := formatAlert([]byte("  not json \n")); got != "not json" {
		t.Fatalf("formatAlert(raw) = %q", got)
	}
}

func TestAlertSinkRespectsMinLevel(t *testing.T) {
	sender := &recordingSender{}
	svc, log := New(Config{
		Level:  "debug",
		Alerts: AlertsConfig{Enabled: true, MinLevel: "error", RatePerSec: 100},
	}, sender)

	log.Warn("just a warning")
	log.Error("boom", String("comp", "bot"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	deadline := time.Now().Add(2 * time.Second)
	for len(sender.snapshot()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if err := svc.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	msgs := sender.snapshot()
	if len(msgs) != 1 {
		t.Fatalf("alerts = %v, want exactly one", msgs)
	}
	if !strings.HasPrefix(msgs[0], "[ERROR] boom") {
		t.Fatalf("alert = %q", msgs[0])
	}
}

func TestLoggerWithFields(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := NewWriter(&buf, "debug").With(String("comp", "test"))
	log.Info("hello", Int64("n", 3))

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("unmarshal %q: %v", buf.String(), err)
	}
	if m["comp"] != "test" || m["message"] != "hello" || m["n"] != float64(3) {
		t.Fatalf("unexpected entry: %v", m)
	}
	if _, ok := m["caller"]; !ok {
		t.Fatalf("expected caller field in %v", m)
	}
}

func TestZeroLoggerIsNop(t *testing.T) {
	t.Parallel()
	var l Logger
	if !l.IsZero() {
		t.Fatal("zero Logger should report IsZero")
	}
	l.Error("ignored")
}
