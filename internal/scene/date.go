package scene

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the compact acquisition date format used in file stems and
// in the environment record.
const DateLayout = "20060102"

// Date is a calendar day in UTC. The zero value means "unset".
type Date struct {
	t time.Time
}

// ParseDate parses a YYYYMMDD token.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if len(s) != len(DateLayout) {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{t: t}, nil
}

// DateOf truncates a timestamp to its UTC calendar day.
func DateOf(t time.Time) Date {
	u := t.UTC()
	return Date{t: time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)}
}

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool {
	return d.t.IsZero()
}

// Time returns midnight UTC of the day.
func (d Date) Time() time.Time {
	return d.t
}

// EndOfDay returns the last representable instant of the day.
func (d Date) EndOfDay() time.Time {
	return d.t.Add(24*time.Hour - time.Nanosecond)
}

// Before reports whether d is strictly earlier than o.
func (d Date) Before(o Date) bool {
	return d.t.Before(o.t)
}

// After reports whether d is strictly later than o.
func (d Date) After(o Date) bool {
	return d.t.After(o.t)
}

// Format formats the day with a time layout.
func (d Date) Format(layout string) string {
	return d.t.Format(layout)
}

// String returns the YYYYMMDD form, or "" when unset.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(DateLayout)
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Empty input yields the
// zero date.
func (d *Date) UnmarshalText(b []byte) error {
	if len(strings.TrimSpace(string(b))) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
