package social

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	logx "desirebot/pkg/logx"
)

// DryRun wraps a Provider for --debug runs: reads go to the real provider
// (or return nothing when it is nil), writes are printed to out instead of
// being performed.
type DryRun struct {
	next Provider
	out  io.Writer
	log  logx.Logger
	seq  atomic.Uint64

	mu    sync.Mutex
	texts map[string]string // search results by id, for printing reposts
}

func NewDryRun(next Provider, out io.Writer, log logx.Logger) *DryRun {
	if out == nil {
		out = io.Discard
	}
	return &DryRun{next: next, out: out, log: log, texts: map[string]string{}}
}

func (d *DryRun) Search(ctx context.Context, query string) ([]Post, error) {
	if d.next == nil {
		d.log.Debug("dry-run search skipped (no provider)", logx.String("query", query))
		return nil, nil
	}
	posts, err := d.next.Search(ctx, query)
	d.mu.Lock()
	for _, p := range posts {
		d.texts[p.ID] = p.Text
	}
	d.mu.Unlock()
	return posts, err
}

func (d *DryRun) ListMentionsSince(ctx context.Context, sinceID string) ([]Mention, error) {
	if d.next == nil {
		return nil, nil
	}
	return d.next.ListMentionsSince(ctx, sinceID)
}

func (d *DryRun) Post(_ context.Context, p Draft) (Ref, error) {
	if p.ReplyTo != nil {
		fmt.Fprintf(d.out, "reply to %s: %s\n", p.ReplyTo.ID, p.Text)
	} else {
		fmt.Fprintf(d.out, "post: %s\n", p.Text)
	}
	return Ref{ID: fmt.Sprintf("dry-run:%d", d.seq.Add(1))}, nil
}

// Repost prints the id and, when known, the first 60 characters of the post.
func (d *DryRun) Repost(_ context.Context, r Ref) error {
	d.mu.Lock()
	text, ok := d.texts[r.ID]
	d.mu.Unlock()
	if ok {
		fmt.Fprintf(d.out, "repost %s: %s\n", r.ID, preview(text, 60))
	} else {
		fmt.Fprintf(d.out, "repost %s\n", r.ID)
	}
	return nil
}

func (d *DryRun) Favorite(_ context.Context, r Ref) error {
	fmt.Fprintf(d.out, "favorite %s\n", r.ID)
	return nil
}

func preview(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
