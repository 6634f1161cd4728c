// Package audit writes the bot's action log: one tab-separated line per
// event, appended to a file whose name is a strftime layout ("%Y-%m.txt"
// rotates monthly).
package audit

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	strftime "github.com/ncruces/go-strftime"
)

// Event types written by the bot.
const (
	EventRetweet = "Retweet"
	EventMention = "Mention"
	EventReply   = "Reply"
	EventPost    = "Post"
	EventError   = "ERROR"
)

// Recorder is the sink the bot records actions to.
type Recorder interface {
	Record(eventType string, fields ...string) error
}

// FileRecorder appends to a strftime-expanded path. Relative layouts resolve
// against Dir.
type FileRecorder struct {
	layout string
	dir    string
	now    func() time.Time

	mu sync.Mutex
}

func NewFileRecorder(layout, dir string) *FileRecorder {
	return &FileRecorder{layout: layout, dir: dir, now: time.Now}
}

// Path is the file the next Record call writes to.
func (r *FileRecorder) Path() string {
	return r.pathAt(r.now())
}

func (r *FileRecorder) pathAt(t time.Time) string {
	p := strftime.Format(r.layout, t)
	if !filepath.IsAbs(p) && r.dir != "" {
		p = filepath.Join(r.dir, p)
	}
	return p
}

func (r *FileRecorder) Record(eventType string, fields ...string) error {
	if strings.TrimSpace(r.layout) == "" {
		return errors.New("audit: empty path layout")
	}
	t := r.now()
	line := FormatLine(t, eventType, fields...)

	r.mu.Lock()
	defer r.mu.Unlock()
	path := r.pathAt(t)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(line); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// FormatLine renders "unix\tevent\tf1\tf2...\n". Tabs and newlines inside
// fields are replaced by spaces so every event stays on one line.
func FormatLine(t time.Time, eventType string, fields ...string) string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(t.Unix(), 10))
	b.WriteByte('\t')
	b.WriteString(clean(eventType))
	for _, f := range fields {
		b.WriteByte('\t')
		b.WriteString(clean(f))
	}
	b.WriteByte('\n')
	return b.String()
}

var cleaner = strings.NewReplacer("\t", " ", "\r", " ", "\n", " ")

func clean(s string) string { return cleaner.Replace(s) }

// Discard drops every event. Used by dry runs.
type Discard struct{}

func (Discard) Record(string, ...string) error { return nil }
