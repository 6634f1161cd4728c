// Package posting decides when the bot should post.
//
// A post is mandatory once the silence exceeds the maximum spacing. Below
// that ceiling a random draw against the trigger probability may post, but
// only outside the minimum-spacing cooldown. The cooldown does not apply to
// the mandatory branch, so the ceiling on silence always wins over the
// minimum gap.
package posting

import (
	"fmt"
	"time"
)

// Reason explains a decision. It is logged and recorded, never parsed.
type Reason string

const (
	ReasonForced       Reason = "forced"
	ReasonMaxSpacing   Reason = "max-spacing"
	ReasonTriggered    Reason = "triggered"
	ReasonCooldown     Reason = "cooldown"
	ReasonNotTriggered Reason = "not-triggered"
)

type Decision struct {
	Post   bool
	Reason Reason
	Age    time.Duration
	// Draw is the random value used, or -1 when no draw was needed.
	Draw float64
}

type Scheduler struct {
	rnd RandomSource
}

func NewScheduler(rnd RandomSource) *Scheduler {
	if rnd == nil {
		rnd = NewCryptoSource()
	}
	return &Scheduler{rnd: rnd}
}

// Decide computes whether to post at now. The returned state has defaults
// applied and, when posting, LastUpdate set to now; otherwise LastUpdate is
// untouched. Decide has no side effects besides consuming one random draw.
func (s *Scheduler) Decide(now time.Time, st State, forced bool) (Decision, State, error) {
	st, _ = st.WithDefaults()
	if err := st.Validate(); err != nil {
		return Decision{}, st, err
	}

	age := now.Unix() - st.LastUpdate
	d := Decision{Age: time.Duration(age) * time.Second, Draw: -1}

	switch {
	case forced:
		d.Post, d.Reason = true, ReasonForced
	case age > st.MaximumSpacing:
		d.Post, d.Reason = true, ReasonMaxSpacing
	default:
		r, err := s.rnd.Float64()
		if err != nil {
			return Decision{}, st, fmt.Errorf("posting decision: %w", err)
		}
		d.Draw = r
		switch {
		case r >= st.TriggerProbability:
			d.Reason = ReasonNotTriggered
		case age > st.MinimumSpacing:
			d.Post, d.Reason = true, ReasonTriggered
		default:
			d.Reason = ReasonCooldown
		}
	}

	if d.Post {
		st.LastUpdate = now.Unix()
	}
	return d, st, nil
}
