package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"time"

	"desirebot/internal/errs"
	"desirebot/internal/mentions"
	"desirebot/internal/posting"
	"desirebot/internal/social/bluesky"
)

// Settings keys. They match the desireBot.json layout so an existing file
// keeps working.
const (
	KeyLastUpdate       = "lastUpdate"
	KeyMinimumSpacing   = "minimumSpacing"
	KeyMaximumSpacing   = "maximumSpacing"
	KeyTweetProbability = "tweetProbability"
	KeyLastMentionID    = "lastMentionId"
	KeyLastExecuted     = "lastExecuted"
	KeyBlueskySession   = "blueskySession"
)

// LoadSchedulerState reads the scheduler state, substitutes defaults and
// writes the substituted fields back into the (unflushed) store. The trigger
// probability is defaulted only when the key is missing; a stored 0 is kept.
func LoadSchedulerState(ctx context.Context, s Store) (posting.State, posting.Defaults, error) {
	var st posting.State
	var err error
	if st.LastUpdate, err = getInt(ctx, s, KeyLastUpdate); err != nil {
		return st, posting.Defaults{}, err
	}
	if st.MinimumSpacing, err = getInt(ctx, s, KeyMinimumSpacing); err != nil {
		return st, posting.Defaults{}, err
	}
	if st.MaximumSpacing, err = getInt(ctx, s, KeyMaximumSpacing); err != nil {
		return st, posting.Defaults{}, err
	}
	prob, hasProb, err := getFloat(ctx, s, KeyTweetProbability)
	if err != nil {
		return st, posting.Defaults{}, err
	}
	st.TriggerProbability = prob
	if !hasProb {
		st.TriggerProbability = posting.DefaultTriggerProbability
	}
	if err := st.Validate(); err != nil {
		return st, posting.Defaults{}, errs.Configuration(err, "setting %s", KeyTweetProbability)
	}

	st, d := st.WithDefaults()
	d.TriggerProbability = !hasProb
	if d.MinimumSpacing || d.Clamped {
		if err := s.Set(ctx, KeyMinimumSpacing, st.MinimumSpacing); err != nil {
			return st, d, err
		}
	}
	if d.MaximumSpacing {
		if err := s.Set(ctx, KeyMaximumSpacing, st.MaximumSpacing); err != nil {
			return st, d, err
		}
	}
	if d.TriggerProbability {
		if err := s.Set(ctx, KeyTweetProbability, st.TriggerProbability); err != nil {
			return st, d, err
		}
	}
	return st, d, nil
}

// SaveLastUpdate commits the time of the last post.
func SaveLastUpdate(ctx context.Context, s Store, unix int64) error {
	return s.Set(ctx, KeyLastUpdate, unix)
}

func LoadCursor(ctx context.Context, s Store) (mentions.Cursor, error) {
	id, err := getString(ctx, s, KeyLastMentionID)
	return mentions.Cursor{LastSeenID: id}, err
}

// SaveCursor persists cur. An empty cursor is never written so a stored
// watermark cannot be cleared.
func SaveCursor(ctx context.Context, s Store, cur mentions.Cursor) error {
	if cur.LastSeenID == "" {
		return nil
	}
	return s.Set(ctx, KeyLastMentionID, cur.LastSeenID)
}

func MarkExecuted(ctx context.Context, s Store, at time.Time) error {
	return s.Set(ctx, KeyLastExecuted, at.Format(time.RFC3339))
}

// LastExecuted returns the zero time when the bot never ran. Values that are
// not RFC3339 (older settings files) are returned unparsed in raw.
func LastExecuted(ctx context.Context, s Store) (t time.Time, raw string, err error) {
	raw, err = getString(ctx, s, KeyLastExecuted)
	if err != nil || raw == "" {
		return time.Time{}, raw, err
	}
	t, perr := time.Parse(time.RFC3339, raw)
	if perr != nil {
		return time.Time{}, raw, nil
	}
	return t, raw, nil
}

// Sessions adapts a Store to bluesky.SessionStore. Session tokens are
// flushed as soon as they change, so a run that fails later still reuses
// them. NoFlush keeps them in memory only (dry runs).
type Sessions struct {
	Store   Store
	NoFlush bool
}

var _ bluesky.SessionStore = Sessions{}

func (ss Sessions) LoadSession(ctx context.Context) (bluesky.Session, bool, error) {
	var out bluesky.Session
	raw, ok, err := ss.Store.Get(ctx, KeyBlueskySession)
	if err != nil || !ok {
		return out, false, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, false, errs.Configuration(err, "setting %s", KeyBlueskySession)
	}
	return out, true, nil
}

func (ss Sessions) SaveSession(ctx context.Context, sess bluesky.Session) error {
	if err := ss.Store.Set(ctx, KeyBlueskySession, sess); err != nil {
		return err
	}
	if ss.NoFlush {
		return nil
	}
	return ss.Store.Flush(ctx)
}

func getInt(ctx context.Context, s Store, key string) (int64, error) {
	n, ok, err := getNumber(ctx, s, key)
	if err != nil || !ok {
		return 0, err
	}
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	f, err := n.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errs.Configuration(errs.Newf("not an integer: %s", n), "setting %s", key)
	}
	return int64(f), nil
}

// getFloat reports ok=false when key is absent or null, so callers can tell
// a missing value from an explicit 0.
func getFloat(ctx context.Context, s Store, key string) (float64, bool, error) {
	n, ok, err := getNumber(ctx, s, key)
	if err != nil || !ok {
		return 0, false, err
	}
	f, err := n.Float64()
	if err != nil {
		return 0, false, errs.Configuration(err, "setting %s", key)
	}
	return f, true, nil
}

func getNumber(ctx context.Context, s Store, key string) (json.Number, bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return "", false, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var n json.Number
	if err := dec.Decode(&n); err != nil {
		return "", false, errs.Configuration(err, "setting %s", key)
	}
	return n, true, nil
}

func getString(ctx context.Context, s Store, key string) (string, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return "", err
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", errs.Configuration(err, "setting %s", key)
	}
	return v, nil
}
