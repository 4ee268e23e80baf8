package scene

import (
	"fmt"
	"strings"
)

// Pair identifies an interferometric pair by the acquisition dates of its
// primary and secondary scenes.
type Pair struct {
	Primary   Date
	Secondary Date
}

// NewPair builds a pair and rejects identical or unset dates.
func NewPair(primary, secondary Date) (Pair, error) {
	if primary.IsZero() || secondary.IsZero() {
		return Pair{}, fmt.Errorf("%w: pair dates must be set", ErrInvalidDate)
	}
	if !primary.Before(secondary) && !secondary.Before(primary) {
		return Pair{}, fmt.Errorf("%w: primary and secondary are the same day %s", ErrInvalidDate, primary)
	}
	return Pair{Primary: primary, Secondary: secondary}, nil
}

// ParsePair parses "PRIMARY:SECONDARY" with both dates in YYYYMMDD form.
func ParsePair(s string) (Pair, error) {
	primary, secondary, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return Pair{}, fmt.Errorf("%w: pair %q must be PRIMARY:SECONDARY", ErrInvalidDate, s)
	}
	p, err := ParseDate(primary)
	if err != nil {
		return Pair{}, err
	}
	q, err := ParseDate(secondary)
	if err != nil {
		return Pair{}, err
	}
	return NewPair(p, q)
}

// Key returns the artifact stem prefix "<primary>_<secondary>".
func (p Pair) Key() string {
	return p.Primary.String() + "_" + p.Secondary.String()
}

// IsZero reports whether the pair is unset.
func (p Pair) IsZero() bool {
	return p.Primary.IsZero() && p.Secondary.IsZero()
}

// String returns "PRIMARY:SECONDARY".
func (p Pair) String() string {
	return p.Primary.String() + ":" + p.Secondary.String()
}
