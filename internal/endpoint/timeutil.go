package endpoint

import (
	"strings"
	"time"
)

// Layouts seen across backends: RFC 3339 (GitHub, GitLab, Azure DevOps with
// fractional seconds) and Jira's numeric-offset form.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// ParseTime parses a backend timestamp and normalizes it to UTC.
// It returns nil for empty or unrecognized input.
func ParseTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			u := t.UTC()
			return &u
		}
	}
	return nil
}

// TimeOrZero dereferences t, returning the zero time for nil.
func TimeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
