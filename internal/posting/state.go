package posting

import (
	"fmt"
	"time"
)

const (
	DefaultMaximumSpacing = int64(4 * time.Hour / time.Second)
	DefaultMinimumSpacing = int64(time.Hour / time.Second)
	// DefaultTriggerProbability averages 24 posts a day when the bot is
	// invoked once a minute.
	DefaultTriggerProbability = 24.0 / 1440
)

// State is the persisted scheduler state. All spacing values are seconds.
//
// LastUpdate is a unix timestamp; 0 means the bot never posted, which makes
// the first run post because the age exceeds any sane maximum spacing.
type State struct {
	LastUpdate         int64
	MinimumSpacing     int64
	MaximumSpacing     int64
	TriggerProbability float64
}

// Defaults records which fields were filled at load time.
type Defaults struct {
	MinimumSpacing     bool
	MaximumSpacing     bool
	// TriggerProbability is set by the loader when the probability was
	// absent. An explicit 0 is kept: it disables the random trigger.
	TriggerProbability bool
	// Clamped is set when MinimumSpacing exceeded MaximumSpacing.
	Clamped bool
}

// Any reports whether the state changed and should be written back.
func (d Defaults) Any() bool {
	return d.MinimumSpacing || d.MaximumSpacing || d.TriggerProbability || d.Clamped
}

// WithDefaults substitutes defaults for zero or negative spacing and clamps
// MinimumSpacing to MaximumSpacing. TriggerProbability is left alone; 0 means
// posts only happen when the maximum spacing forces them.
func (s State) WithDefaults() (State, Defaults) {
	var d Defaults
	if s.MaximumSpacing <= 0 {
		s.MaximumSpacing = DefaultMaximumSpacing
		d.MaximumSpacing = true
	}
	if s.MinimumSpacing <= 0 {
		s.MinimumSpacing = DefaultMinimumSpacing
		d.MinimumSpacing = true
	}
	if s.MinimumSpacing > s.MaximumSpacing {
		s.MinimumSpacing = s.MaximumSpacing
		d.Clamped = true
	}
	return s, d
}

// Validate rejects states no amount of defaulting can fix.
func (s State) Validate() error {
	if s.TriggerProbability < 0 || s.TriggerProbability > 1 {
		return fmt.Errorf("trigger probability %v out of range [0,1]", s.TriggerProbability)
	}
	return nil
}

// Age is the time since the last post.
func (s State) Age(now time.Time) time.Duration {
	return time.Duration(now.Unix()-s.LastUpdate) * time.Second
}
