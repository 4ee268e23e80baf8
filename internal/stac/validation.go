package stac

import (
	"fmt"
	"strings"
	"time"
)

// ParseDatetimeInterval parses a datetime filter into start and end times.
// Supports formats:
// - "2023-01-01T00:00:00Z/2023-12-31T23:59:59Z" (closed interval)
// - "2023-01-01T00:00:00Z/.." (start time only)
// - "../2023-12-31T23:59:59Z" (end time only)
// - "2023-06-02T00:00:00Z" (instant, start == end)
// - ".." or "../.." (open interval, both nil)
//
// Bare dates ("2023-06-02") are accepted as well; as an end bound they
// cover the whole day.
func ParseDatetimeInterval(dt string) (start, end *time.Time, err error) {
	dt = strings.TrimSpace(dt)
	if dt == "" {
		return nil, nil, fmt.Errorf("datetime interval cannot be empty")
	}

	// Handle fully open interval
	if dt == ".." || dt == "../.." {
		return nil, nil, nil
	}

	startStr, endStr, isInterval := strings.Cut(dt, "/")
	if !isInterval {
		t, err := parseDatetime(dt, false)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid datetime: %w", err)
		}
		e, _ := parseDatetime(dt, true)
		return &t, &e, nil
	}
	if strings.Contains(endStr, "/") {
		return nil, nil, fmt.Errorf("invalid datetime interval format, expected 'start/end', got: %s", dt)
	}

	startStr = strings.TrimSpace(startStr)
	endStr = strings.TrimSpace(endStr)

	// Parse start time
	if startStr != "" && startStr != ".." {
		t, err := parseDatetime(startStr, false)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid start datetime: %w", err)
		}
		start = &t
	}

	// Parse end time
	if endStr != "" && endStr != ".." {
		t, err := parseDatetime(endStr, true)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid end datetime: %w", err)
		}
		end = &t
	}

	// Validate that start is before end if both are provided
	if start != nil && end != nil && start.After(*end) {
		return nil, nil, fmt.Errorf("start datetime (%s) must be before or equal to end datetime (%s)", start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	return start, end, nil
}

// Overlaps reports whether the span [from, to] intersects the interval
// [start, end]. nil bounds are open.
func Overlaps(from, to time.Time, start, end *time.Time) bool {
	if start != nil && to.Before(*start) {
		return false
	}
	if end != nil && from.After(*end) {
		return false
	}
	return true
}

func parseDatetime(s string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected RFC 3339 or YYYY-MM-DD, got %q", s)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}
