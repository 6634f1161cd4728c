package scheduler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// SpecKind is the normalized kind of a schedule string.
type SpecKind int

const (
	SpecCron SpecKind = iota
	SpecInterval
)

// ParsedSpec is a parsed schedule string.
//
// Accepted forms:
//   - cron: "*/1 * * * *", "0 */2 * * *", "@hourly", "@every 90s"
//   - Go duration: "1m", "2h30m"
//   - HH:MM interval: "00:05" is every five minutes
//
// A "cron:" prefix forces cron parsing; "every:" or "interval:" force an
// interval.
type ParsedSpec struct {
	Kind   SpecKind
	Cron   string
	Every  time.Duration
	Source string // "cron" | "duration" | "hhmm"
}

var reHHMM = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)

func ParseSchedule(raw string) (ParsedSpec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ParsedSpec{}, fmt.Errorf("schedule required")
	}

	low := strings.ToLower(s)
	switch {
	case strings.HasPrefix(low, "cron:"):
		expr := strings.TrimSpace(s[len("cron:"):])
		if expr == "" {
			return ParsedSpec{}, fmt.Errorf("cron expression required after 'cron:'")
		}
		return ParsedSpec{Kind: SpecCron, Cron: expr, Source: "cron"}, nil
	case strings.HasPrefix(low, "every:"):
		return parseInterval(s[len("every:"):])
	case strings.HasPrefix(low, "interval:"):
		return parseInterval(s[len("interval:"):])
	case strings.HasPrefix(s, "@") || strings.ContainsAny(s, " \t"):
		return ParsedSpec{Kind: SpecCron, Cron: s, Source: "cron"}, nil
	}

	p, err := parseInterval(s)
	if err != nil {
		return ParsedSpec{}, fmt.Errorf(
			"invalid schedule %q (use cron like '*/1 * * * *', HH:MM like '00:05', or a duration like '1m')", raw)
	}
	return p, nil
}

func parseInterval(v string) (ParsedSpec, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return ParsedSpec{}, fmt.Errorf("interval required")
	}
	if m := reHHMM.FindStringSubmatch(v); m != nil {
		d, err := hhmmDuration(m[1], m[2])
		if err != nil {
			return ParsedSpec{}, fmt.Errorf("invalid interval %q: %w", v, err)
		}
		return ParsedSpec{Kind: SpecInterval, Every: d, Source: "hhmm"}, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return ParsedSpec{}, fmt.Errorf("invalid interval %q", v)
	}
	if d <= 0 {
		return ParsedSpec{}, fmt.Errorf("interval must be > 0")
	}
	return ParsedSpec{Kind: SpecInterval, Every: d, Source: "duration"}, nil
}

func hhmmDuration(hh, mm string) (time.Duration, error) {
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, err
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return 0, err
	}
	if m > 59 {
		return 0, fmt.Errorf("minutes out of range")
	}
	d := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute
	if d <= 0 {
		return 0, fmt.Errorf("interval must be > 0")
	}
	return d, nil
}

// Schedule resolves p to a cron schedule using parser for cron expressions.
func (p ParsedSpec) Schedule(parser cron.Parser) (cron.Schedule, error) {
	if p.Kind == SpecInterval {
		return cron.Every(p.Every), nil
	}
	return parser.Parse(p.Cron)
}

// Describe renders p for logs.
func (p ParsedSpec) Describe() string {
	if p.Kind == SpecInterval {
		return "every " + p.Every.String()
	}
	return p.Cron
}
