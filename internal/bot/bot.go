// Package bot runs one pass of the posting bot: decide whether to repost,
// answer mentions, send what was queued, then commit state.
//
// State commits follow the actions they describe. lastUpdate is only
// written after the reposts went out, and the mention cursor only after
// every mention of the batch was handled, so a provider failure makes the
// next run try again instead of silently skipping work.
package bot

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"desirebot/internal/audit"
	"desirebot/internal/errs"
	"desirebot/internal/mentions"
	"desirebot/internal/posting"
	"desirebot/internal/social"
	"desirebot/internal/storage"
	logx "desirebot/pkg/logx"
)

type Options struct {
	Words        []string
	Queries      []string
	BlockedTerms []string

	ReplyToQuestions bool
	ReplyText        string

	// Force posts regardless of spacing and probability.
	Force bool
	// DryRun skips the final flush. The caller is expected to wrap the
	// provider in social.DryRun and pass audit.Discard.
	DryRun bool
}

type Deps struct {
	Store    storage.Store
	Provider social.Provider
	Audit    audit.Recorder
	Random   posting.RandomSource
	Log      logx.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

type Bot struct {
	opts   Options
	store  storage.Store
	prov   social.Provider
	audit  audit.Recorder
	rnd    posting.RandomSource
	sched  *posting.Scheduler
	filter social.Filter
	log    logx.Logger
	now    func() time.Time
}

// Report summarizes a run for the CLI and the daemon.
type Report struct {
	RunID    string
	Decision posting.Decision
	Reposted []string
	Mentions int
	Replies  int
	Cursor   string
	// PostCommitted is set when lastUpdate moved forward.
	PostCommitted bool
}

func New(opts Options, d Deps) *Bot {
	if d.Random == nil {
		d.Random = posting.NewCryptoSource()
	}
	if d.Audit == nil {
		d.Audit = audit.Discard{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	return &Bot{
		opts:   opts,
		store:  d.Store,
		prov:   d.Provider,
		audit:  d.Audit,
		rnd:    d.Random,
		sched:  posting.NewScheduler(d.Random),
		filter: social.NewFilter(opts.BlockedTerms),
		log:    d.Log.With(logx.String("comp", "bot")),
		now:    d.Now,
	}
}

// Run executes one pass. Configuration and random source failures abort
// before any side effect. Provider failures stop the affected step, skip
// its commit and are returned after the rest of the run completed.
func (b *Bot) Run(ctx context.Context) (Report, error) {
	rep := Report{RunID: uuid.NewString()}
	log := b.log.With(logx.String("run", rep.RunID))
	if b.store == nil || b.prov == nil {
		return rep, errs.Configuration(errors.New("store and provider are required"), "bot")
	}
	now := b.now()

	st, defs, err := storage.LoadSchedulerState(ctx, b.store)
	if err != nil {
		return rep, err
	}
	if defs.Clamped {
		log.Warn("minimum spacing exceeded maximum spacing; clamped",
			logx.Int64("minimum_spacing", st.MinimumSpacing))
	}
	cur, err := storage.LoadCursor(ctx, b.store)
	if err != nil {
		return rep, err
	}
	rep.Cursor = cur.LastSeenID

	var failed error
	keep := func(err error) {
		if err == nil {
			return
		}
		log.Error("step failed", logx.String("kind", errs.Kind(err)), logx.Err(err))
		if failed == nil {
			failed = err
		}
	}

	// CreateUpdate
	next, reposts, err := b.createUpdate(ctx, log, now, st)
	if errs.Is(err, errs.ErrRandomSource) || errs.Is(err, errs.ErrConfiguration) {
		return rep, err
	}
	rep.Decision = next.decision
	keep(err)

	// HandleMentions
	newCur, replies, n, mentionsErr := b.handleMentions(ctx, log, cur)
	rep.Mentions = n
	keep(mentionsErr)

	// Send
	if len(reposts) > 0 {
		if err := b.sendReposts(ctx, reposts); err != nil {
			keep(err)
		} else {
			for _, p := range reposts {
				rep.Reposted = append(rep.Reposted, p.ID)
			}
			if err := storage.SaveLastUpdate(ctx, b.store, next.state.LastUpdate); err != nil {
				return rep, err
			}
			rep.PostCommitted = true
		}
	}
	sent, repliesErr := b.sendReplies(ctx, replies)
	rep.Replies = sent
	keep(repliesErr)

	// Commit
	if mentionsErr == nil && repliesErr == nil && newCur != cur {
		if err := storage.SaveCursor(ctx, b.store, newCur); err != nil {
			return rep, err
		}
		rep.Cursor = newCur.LastSeenID
	}
	if err := storage.MarkExecuted(ctx, b.store, now); err != nil {
		return rep, err
	}
	if b.opts.DryRun {
		log.Debug("dry run; settings not flushed")
	} else if err := b.store.Flush(ctx); err != nil {
		return rep, err
	}

	log.Info("run finished",
		logx.Bool("post", rep.Decision.Post),
		logx.String("reason", string(rep.Decision.Reason)),
		logx.Int("reposts", len(rep.Reposted)),
		logx.Int("mentions", rep.Mentions),
		logx.Int("replies", rep.Replies),
	)
	return rep, failed
}

type update struct {
	decision posting.Decision
	state    posting.State
}

// createUpdate decides and, when posting, picks one result per query.
// Nothing is queued unless every query produced at least one usable result.
func (b *Bot) createUpdate(ctx context.Context, log logx.Logger, now time.Time, st posting.State) (update, []social.Post, error) {
	d, next, err := b.sched.Decide(now, st, b.opts.Force)
	if err != nil {
		if errors.Is(err, posting.ErrRandomSource) {
			return update{}, nil, errs.RandomSource(err, "posting decision")
		}
		return update{}, nil, errs.Configuration(err, "posting decision")
	}
	u := update{decision: d, state: next}

	fields := []logx.Field{
		logx.Bool("post", d.Post),
		logx.String("reason", string(d.Reason)),
		logx.Duration("age", d.Age),
	}
	if st.LastUpdate > 0 {
		fields = append(fields, logx.String("last_post", humanize.Time(time.Unix(st.LastUpdate, 0))))
	}
	if d.Draw >= 0 {
		fields = append(fields, logx.Float64("draw", d.Draw))
	}
	log.Debug("posting decision", fields...)
	if !d.Post {
		return u, nil, nil
	}

	if len(b.opts.Words) == 0 || len(b.opts.Queries) == 0 {
		return u, nil, errs.Configuration(errors.New("no search words or queries"), "create update")
	}
	i, err := b.rnd.IntN(len(b.opts.Words))
	if err != nil {
		return u, nil, errs.RandomSource(err, "choose word")
	}
	word := b.opts.Words[i]

	picked := make([]social.Post, 0, len(b.opts.Queries))
	for _, tmpl := range b.opts.Queries {
		q := social.ExpandQuery(tmpl, word)
		results, err := b.prov.Search(ctx, q)
		if err != nil {
			return u, nil, err
		}
		results = b.filter.Apply(results)
		if len(results) == 0 {
			log.Info("no usable results; nothing to repost", logx.String("query", q))
			return u, nil, nil
		}
		j, err := b.rnd.IntN(len(results))
		if err != nil {
			return u, nil, errs.RandomSource(err, "choose result")
		}
		picked = append(picked, results[j])
	}

	ids := make([]string, 0, len(picked))
	for _, p := range picked {
		ids = append(ids, p.ID)
	}
	b.record(log, audit.EventRetweet, ids...)
	return u, picked, nil
}

type reply struct {
	to   social.Ref
	text string
}

// handleMentions favorites every new mention and queues replies. It stops at
// the first failure; the returned cursor must then not be committed.
func (b *Bot) handleMentions(ctx context.Context, log logx.Logger, cur mentions.Cursor) (mentions.Cursor, []reply, int, error) {
	batch, err := b.prov.ListMentionsSince(ctx, cur.LastSeenID)
	if err != nil {
		return cur, nil, 0, err
	}
	batch, next := mentions.Advance(batch, cur)
	if len(batch) == 0 {
		return cur, nil, 0, nil
	}
	log.Debug("new mentions", logx.Int("count", len(batch)), logx.String("cursor", next.LastSeenID))

	var replies []reply
	for i, m := range batch {
		if err := b.prov.Favorite(ctx, m.Ref); err != nil {
			return cur, nil, i, err
		}
		event := audit.EventMention
		if b.shouldReply(m) {
			replies = append(replies, reply{
				to:   m.Ref,
				text: "@" + m.Author + " " + strings.TrimSpace(b.opts.ReplyText),
			})
			event = audit.EventReply
		}
		b.record(log, event, m.Author)
	}
	return next, replies, len(batch), nil
}

func (b *Bot) shouldReply(m social.Mention) bool {
	return b.opts.ReplyToQuestions &&
		strings.TrimSpace(b.opts.ReplyText) != "" &&
		m.Author != "" &&
		strings.Contains(m.Text, "?")
}

func (b *Bot) sendReposts(ctx context.Context, posts []social.Post) error {
	for _, p := range posts {
		if err := b.prov.Repost(ctx, p.Ref); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bot) sendReplies(ctx context.Context, replies []reply) (int, error) {
	for i, r := range replies {
		to := r.to
		if _, err := b.prov.Post(ctx, social.Draft{Text: r.text, ReplyTo: &to}); err != nil {
			return i, err
		}
	}
	return len(replies), nil
}

func (b *Bot) record(log logx.Logger, event string, fields ...string) {
	if err := b.audit.Record(event, fields...); err != nil {
		log.Warn("audit record failed", logx.String("event", event), logx.Err(err))
	}
}
