package config

import (
	"fmt"
	"strings"
	"time"
)

// ParseDurationField parses an optional Go duration setting such as
// bluesky.timeout or daemon.run_timeout. Empty means "use the default" and
// yields 0. field names the setting in errors.
func ParseDurationField(field, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", field, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0, got %s", field, d)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with def substituted for an
// empty or zero value, e.g. 5s for storage.busy_timeout.
func ParseDurationOrDefault(field, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(field, raw)
	if err != nil || d > 0 {
		return d, err
	}
	return def, nil
}
