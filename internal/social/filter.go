package social

import (
	"regexp"
	"strings"
)

// manual reposts ("RT @someone ...") are plain text on most networks.
var reManualRepost = regexp.MustCompile(`\bRT\s`)

// Filter drops manual reposts and posts containing a blocked term
// (case-insensitive). Order is preserved.
type Filter struct {
	blocked []string
}

func NewFilter(blockedTerms []string) Filter {
	f := Filter{blocked: make([]string, 0, len(blockedTerms))}
	for _, t := range blockedTerms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			f.blocked = append(f.blocked, t)
		}
	}
	return f
}

// Keep reports whether p survives the filter.
func (f Filter) Keep(p Post) bool {
	if reManualRepost.MatchString(p.Text) {
		return false
	}
	lower := strings.ToLower(p.Text)
	for _, t := range f.blocked {
		if strings.Contains(lower, t) {
			return false
		}
	}
	return true
}

func (f Filter) Apply(posts []Post) []Post {
	out := posts[:0:0]
	for _, p := range posts {
		if f.Keep(p) {
			out = append(out, p)
		}
	}
	return out
}

// ExpandQuery replaces every "{word}" in tmpl.
func ExpandQuery(tmpl, word string) string {
	return strings.ReplaceAll(tmpl, "{word}", word)
}
