package audit

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFormatLine(t *testing.T) {
	t.Parallel()
	at := time.Unix(1700000000, 0)
	tests := []struct {
		name   string
		event  string
		fields []string
		want   string
	}{
		{"no fields", "ERROR", nil, "1700000000\tERROR\n"},
		{"fields", "Retweet", []string{"1", "2"}, "1700000000\tRetweet\t1\t2\n"},
		{"sanitized", "Mention", []string{"a\tb\nc"}, "1700000000\tMention\ta b c\n"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := FormatLine(at, tt.event, tt.fields...); got != tt.want {
				t.Fatalf("FormatLine = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFileRecorderExpandsLayout(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	r := NewFileRecorder("logs/%Y-%m.txt", dir)
	r.now = func() time.Time { return time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC) }

	want := filepath.Join(dir, "logs", "2026-03.txt")
	if got := r.Path(); got != want {
		t.Fatalf("Path = %s, want %s", got, want)
	}
	if err := r.Record(EventMention, "alice"); err != nil {
		t.Fatal(err)
	}
	if err := r.Record(EventRetweet, "1", "2"); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(want)
	if err != nil {
		t.Fatal(err)
	}
	unix := "1773057600"
	if string(b) != unix+"\tMention\talice\n"+unix+"\tRetweet\t1\t2\n" {
		t.Fatalf("file = %q", b)
	}
}

func TestFileRecorderAbsoluteLayout(t *testing.T) {
	t.Parallel()
	abs := filepath.Join(t.TempDir(), "%Y.log")
	r := NewFileRecorder(abs, "/elsewhere")
	r.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	if got := r.Path(); got != filepath.Join(filepath.Dir(abs), "2026.log") {
		t.Fatalf("Path = %s", got)
	}
}

func TestEmptyLayout(t *testing.T) {
	t.Parallel()
	if err := NewFileRecorder(" ", "").Record(EventError); err == nil {
		t.Fatal("expected error")
	}
}
