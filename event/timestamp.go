package event

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Earliest plausible device timestamp: 2000-01-01T00:00:00Z. Numeric values
// at or above 1000x this are interpreted as Unix milliseconds.
const minUnixSeconds = 946684800

var timestampLayouts = []string{
	"2006-01-02T15:04:05.000Z07:00",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTimestamp accepts ISO-8601, Unix seconds, or Unix milliseconds and
// returns the instant in UTC. Numeric values before 2000-01-01 are rejected.
func ParseTimestamp(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}

	if v, err := strconv.ParseFloat(s, 64); err == nil {
		switch {
		case v >= minUnixSeconds*1000:
			return time.UnixMilli(int64(v)).UTC(), nil
		case v >= minUnixSeconds:
			sec := int64(v)
			nsec := int64((v - float64(sec)) * 1e9)
			return time.Unix(sec, nsec).UTC(), nil
		default:
			return time.Time{}, fmt.Errorf("numeric timestamp %s predates 2000-01-01", s)
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized timestamp format %q", s)
}
