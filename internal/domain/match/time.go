package match

import (
	"fmt"
	"strings"
	"time"
)

var startTimeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseStartTime converts a local ISO-8601-like timestamp into epoch seconds.
// Fractional seconds are dropped. An empty string yields zero. Timestamps
// carrying a zone offset (RFC 3339) are taken as absolute and ignore loc.
func ParseStartTime(s string, loc *time.Location) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.Unix(), nil
	}
	if loc == nil {
		loc = time.Local
	}
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	for _, layout := range startTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.Unix(), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidStartTime, s)
}
