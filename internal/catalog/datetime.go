package catalog

import (
	"fmt"
	"strings"
	"time"
)

// ASF time formats observed in their API responses.
// ASF uses formats like "2023-06-15T14:00:00.000000" or "2023-06-15T14:00:00Z".
var asfTimeFormats = []string{
	"2006-01-02T15:04:05.000000",    // ASF format with microseconds
	"2006-01-02T15:04:05.999999999", // With nanoseconds
	time.RFC3339Nano,                // "2006-01-02T15:04:05.999999999Z07:00"
	time.RFC3339,                    // "2006-01-02T15:04:05Z07:00"
	"2006-01-02T15:04:05Z",          // UTC without offset
	"2006-01-02T15:04:05",           // Without timezone
}

// ParseASFTime parses an ASF timestamp string into a time.Time.
// Timestamps without a zone are taken as UTC. Returns time in UTC.
func ParseASFTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time string")
	}

	var lastErr error
	for _, format := range asfTimeFormats {
		t, err := time.Parse(format, s)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}

	return time.Time{}, fmt.Errorf("failed to parse ASF time %q: %w", s, lastErr)
}
