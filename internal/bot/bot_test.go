package bot

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"desirebot/internal/errs"
	"desirebot/internal/mentions"
	"desirebot/internal/posting"
	"desirebot/internal/social"
	"desirebot/internal/storage"
	logx "desirebot/pkg/logx"
)

var now = time.Unix(1_700_000_000, 0)

type fakeRandom struct {
	floats []float64
	ints   []int
	err    error
}

func (f *fakeRandom) Float64() (float64, error) {
	if f.err != nil {
		return 0, f.err
	}
	if len(f.floats) == 0 {
		return 0.99, nil
	}
	v := f.floats[0]
	f.floats = f.floats[1:]
	return v, nil
}

func (f *fakeRandom) IntN(n int) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	if len(f.ints) == 0 {
		return 0, nil
	}
	v := f.ints[0] % n
	f.ints = f.ints[1:]
	return v, nil
}

type fakeProvider struct {
	results  map[string][]social.Post
	mentions []social.Mention

	searchErr   error
	repostErr   error
	favoriteErr error
	postErr     error

	queries   []string
	sinceIDs  []string
	reposted  []string
	favorited []string
	posted    []social.Draft
}

func (f *fakeProvider) Search(_ context.Context, q string) ([]social.Post, error) {
	f.queries = append(f.queries, q)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.results[q], nil
}

func (f *fakeProvider) Post(_ context.Context, d social.Draft) (social.Ref, error) {
	if f.postErr != nil {
		return social.Ref{}, f.postErr
	}
	f.posted = append(f.posted, d)
	return social.Ref{ID: "new"}, nil
}

func (f *fakeProvider) Repost(_ context.Context, r social.Ref) error {
	if f.repostErr != nil {
		return f.repostErr
	}
	f.reposted = append(f.reposted, r.ID)
	return nil
}

func (f *fakeProvider) Favorite(_ context.Context, r social.Ref) error {
	if f.favoriteErr != nil {
		return f.favoriteErr
	}
	f.favorited = append(f.favorited, r.ID)
	return nil
}

func (f *fakeProvider) ListMentionsSince(_ context.Context, since string) ([]social.Mention, error) {
	f.sinceIDs = append(f.sinceIDs, since)
	return f.mentions, nil
}

type memAudit struct{ lines [][]string }

func (m *memAudit) Record(event string, fields ...string) error {
	m.lines = append(m.lines, append([]string{event}, fields...))
	return nil
}

func defaultResults() map[string][]social.Post {
	return map[string][]social.Post{
		`"All you need"`: {
			{Ref: social.Ref{ID: "y1"}, Text: "RT all you need"},
			{Ref: social.Ref{ID: "y2"}, Text: "All you need is love"},
		},
		`"All I need"`: {
			{Ref: social.Ref{ID: "i1"}, Text: "All I need is magick"},
			{Ref: social.Ref{ID: "i2"}, Text: "All I need is sleep"},
		},
	}
}

func defaultOptions() Options {
	return Options{
		Words:        []string{"need", "want", "desire"},
		Queries:      []string{`"All you {word}"`, `"All I {word}"`},
		BlockedTerms: []string{"magick"},
	}
}

type fixture struct {
	store storage.Store
	path  string
	prov  *fakeProvider
	audit *memAudit
	rnd   *fakeRandom
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "desireBot.json")
	s, err := storage.Open(storage.Config{Path: path}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return &fixture{
		store: s,
		path:  path,
		prov:  &fakeProvider{results: defaultResults()},
		audit: &memAudit{},
		rnd:   &fakeRandom{},
	}
}

func (f *fixture) bot(opts Options) *Bot {
	return New(opts, Deps{
		Store:    f.store,
		Provider: f.prov,
		Audit:    f.audit,
		Random:   f.rnd,
		Log:      logx.Nop(),
		Now:      func() time.Time { return now },
	})
}

// reopen reads what was flushed to disk.
func (f *fixture) reopen(t *testing.T) storage.Store {
	t.Helper()
	s, err := storage.Open(storage.Config{Path: f.path}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestFirstRunPostsAndCommits(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.prov.mentions = []social.Mention{
		{Ref: social.Ref{ID: "105"}, Author: "carol", Text: "hi?"},
		{Ref: social.Ref{ID: "104"}, Author: "bob"},
	}

	rep, err := f.bot(defaultOptions()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, posting.ReasonMaxSpacing, rep.Decision.Reason)
	assert.Equal(t, []string{`"All you need"`, `"All I need"`}, f.prov.queries)
	assert.Equal(t, []string{"y2", "i2"}, f.prov.reposted, "filtered results only")
	assert.Equal(t, []string{"105", "104"}, f.prov.favorited)
	assert.Empty(t, f.prov.posted, "replies are disabled by default")
	assert.True(t, rep.PostCommitted)
	assert.Equal(t, "105", rep.Cursor)
	assert.Equal(t, [][]string{
		{"Retweet", "y2", "i2"},
		{"Mention", "carol"},
		{"Mention", "bob"},
	}, f.audit.lines)

	disk := f.reopen(t)
	st, _, err := storage.LoadSchedulerState(context.Background(), disk)
	require.NoError(t, err)
	assert.Equal(t, now.Unix(), st.LastUpdate)
	assert.Equal(t, posting.DefaultMaximumSpacing, st.MaximumSpacing)
	cur, err := storage.LoadCursor(context.Background(), disk)
	require.NoError(t, err)
	assert.Equal(t, "105", cur.LastSeenID)
	at, _, err := storage.LastExecuted(context.Background(), disk)
	require.NoError(t, err)
	assert.True(t, at.Equal(now))
}

func TestNoPostKeepsLastUpdate(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, storage.SaveLastUpdate(ctx, f.store, now.Unix()-60))
	f.rnd.floats = []float64{0.5}

	rep, err := f.bot(defaultOptions()).Run(ctx)
	require.NoError(t, err)
	assert.False(t, rep.Decision.Post)
	assert.Equal(t, posting.ReasonNotTriggered, rep.Decision.Reason)
	assert.Empty(t, f.prov.queries)

	st, _, err := storage.LoadSchedulerState(ctx, f.reopen(t))
	require.NoError(t, err)
	assert.Equal(t, now.Unix()-60, st.LastUpdate)
}

func TestForceIgnoresSpacing(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, storage.SaveLastUpdate(ctx, f.store, now.Unix()-1))

	opts := defaultOptions()
	opts.Force = true
	rep, err := f.bot(opts).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, posting.ReasonForced, rep.Decision.Reason)
	assert.Len(t, f.prov.reposted, 2)
}

func TestMissingResultsQueueNothing(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	delete(f.prov.results, `"All I need"`)

	rep, err := f.bot(defaultOptions()).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, rep.Decision.Post)
	assert.Empty(t, f.prov.reposted)
	assert.False(t, rep.PostCommitted)
	assert.Empty(t, f.audit.lines)
}

func TestRepostFailureSkipsLastUpdate(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.prov.repostErr = errs.Transient(errors.New("503"), "repost")
	f.prov.mentions = []social.Mention{{Ref: social.Ref{ID: "7"}, Author: "a"}}

	rep, err := f.bot(defaultOptions()).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrTransientProvider))
	assert.False(t, rep.PostCommitted)

	disk := f.reopen(t)
	st, _, err := storage.LoadSchedulerState(context.Background(), disk)
	require.NoError(t, err)
	assert.Zero(t, st.LastUpdate)
	cur, err := storage.LoadCursor(context.Background(), disk)
	require.NoError(t, err)
	assert.Equal(t, "7", cur.LastSeenID, "mentions are independent of reposts")
}

func TestFavoriteFailureKeepsCursor(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, storage.SaveCursor(ctx, f.store, mentionsCursor("102")))
	f.prov.mentions = []social.Mention{{Ref: social.Ref{ID: "105"}}, {Ref: social.Ref{ID: "104"}}}
	f.prov.favoriteErr = errs.Transient(errors.New("timeout"), "like")

	rep, err := f.bot(defaultOptions()).Run(ctx)
	require.Error(t, err)
	assert.Equal(t, []string{"102"}, f.prov.sinceIDs)
	assert.Equal(t, "102", rep.Cursor)
	assert.True(t, rep.PostCommitted, "reposts still went out")

	cur, err := storage.LoadCursor(ctx, f.reopen(t))
	require.NoError(t, err)
	assert.Equal(t, "102", cur.LastSeenID)
}

func TestRepliesToQuestions(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.prov.mentions = []social.Mention{
		{Ref: social.Ref{ID: "2", CID: "c2"}, Author: "carol", Text: "do you?"},
		{Ref: social.Ref{ID: "1"}, Author: "bob", Text: "hello"},
	}
	opts := defaultOptions()
	opts.ReplyToQuestions = true
	opts.ReplyText = "always."

	rep, err := f.bot(opts).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, f.prov.posted, 1)
	assert.Equal(t, "@carol always.", f.prov.posted[0].Text)
	assert.Equal(t, social.Ref{ID: "2", CID: "c2"}, *f.prov.posted[0].ReplyTo)
	assert.Equal(t, 1, rep.Replies)
	assert.Contains(t, f.audit.lines, []string{"Reply", "carol"})
	assert.Contains(t, f.audit.lines, []string{"Mention", "bob"})
}

func TestReplyFailureKeepsCursor(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.prov.mentions = []social.Mention{{Ref: social.Ref{ID: "9"}, Author: "a", Text: "?"}}
	f.prov.postErr = errs.Transient(errors.New("boom"), "post")
	opts := defaultOptions()
	opts.ReplyToQuestions = true
	opts.ReplyText = "yes"

	_, err := f.bot(opts).Run(context.Background())
	require.Error(t, err)
	cur, err := storage.LoadCursor(context.Background(), f.reopen(t))
	require.NoError(t, err)
	assert.Empty(t, cur.LastSeenID)
}

func TestRandomFailureIsFatalBeforeSideEffects(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, storage.SaveLastUpdate(ctx, f.store, now.Unix()-60))
	f.rnd.err = posting.ErrRandomSource
	f.prov.mentions = []social.Mention{{Ref: social.Ref{ID: "1"}}}

	_, err := f.bot(defaultOptions()).Run(ctx)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrRandomSource), "err = %v", err)
	assert.Empty(t, f.prov.favorited)
	assert.Empty(t, f.prov.sinceIDs)
}

func TestBadProbabilityIsConfigurationError(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Set(ctx, storage.KeyTweetProbability, 2.0))

	_, err := f.bot(defaultOptions()).Run(ctx)
	assert.True(t, errs.Is(err, errs.ErrConfiguration), "err = %v", err)
	assert.Empty(t, f.prov.sinceIDs)
}

func TestDryRunDoesNotFlush(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	var out bytes.Buffer
	dry := social.NewDryRun(f.prov, &out, logx.Nop())
	opts := defaultOptions()
	opts.DryRun = true
	f.prov.mentions = []social.Mention{{Ref: social.Ref{ID: "5"}, Author: "a"}}

	b := New(opts, Deps{Store: f.store, Provider: dry, Random: f.rnd, Log: logx.Nop(), Now: func() time.Time { return now }})
	rep, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, rep.PostCommitted)
	assert.Empty(t, f.prov.reposted)
	assert.Empty(t, f.prov.favorited)
	assert.Contains(t, out.String(), "repost y2: All you need is love")
	assert.Contains(t, out.String(), "favorite 5")
	assert.NoFileExists(t, f.path)
}

func TestRunIDsDiffer(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.rnd.floats = []float64{0.9, 0.9}
	b := f.bot(defaultOptions())
	require.NoError(t, storage.SaveLastUpdate(context.Background(), f.store, now.Unix()))
	r1, err := b.Run(context.Background())
	require.NoError(t, err)
	r2, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, r1.RunID, r2.RunID)
}

func mentionsCursor(id string) mentions.Cursor { return mentions.Cursor{LastSeenID: id} }
