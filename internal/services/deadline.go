package services

import (
	"strings"
	"time"
)

const dateOnlyLayout = "2006-01-02"

// ParseDeadline accepts either a calendar date (YYYY-MM-DD, interpreted in
// loc) or an RFC 3339 timestamp. The boolean reports a date-only value.
// An empty string means no deadline.
func ParseDeadline(value string, loc *time.Location) (*time.Time, bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, false, nil
	}
	if loc == nil {
		loc = time.Local
	}

	if t, err := time.ParseInLocation(dateOnlyLayout, value, loc); err == nil {
		return &t, true, nil
	}

	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, false, validationErrorf("deadline must be YYYY-MM-DD or RFC 3339, got %q", value)
	}
	return &t, false, nil
}

// deadlineExpired reports whether a deadline is no longer in the future.
// A date-only deadline stays valid until the end of its day.
func deadlineExpired(deadline time.Time, dateOnly bool, now time.Time) bool {
	if dateOnly {
		y, m, d := deadline.Date()
		endOfDay := time.Date(y, m, d, 0, 0, 0, 0, deadline.Location()).AddDate(0, 0, 1)
		return !now.Before(endOfDay)
	}
	return !deadline.After(now)
}
