// Package scene parses Sentinel-1 product names into scene identities and
// provides the date and pair keys used to name pipeline artifacts.
package scene

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Sentinel-1 product names are fixed width:
//
//	MMM_BB_TTTR_LFPP_YYYYMMDDTHHMMSS_YYYYMMDDTHHMMSS_OOOOOO_DDDDDD_CCCC
//
// See https://sentinels.copernicus.eu/web/sentinel/user-guides/sentinel-1-sar/naming-conventions
const (
	nameLength      = 67
	timestampLayout = "20060102T150405"
)

// field offsets within the product name
type span struct{ from, to int }

var (
	fieldMission   = span{0, 3}
	fieldBeamMode  = span{4, 6}
	fieldType      = span{7, 10}
	fieldRes       = span{10, 11}
	fieldLevel     = span{12, 13}
	fieldClass     = span{13, 14}
	fieldPol       = span{14, 16}
	fieldStart     = span{17, 32}
	fieldStop      = span{33, 48}
	fieldOrbit     = span{49, 55}
	fieldDataTake  = span{56, 62}
	fieldProductID = span{63, 67}

	separators = []int{3, 6, 11, 16, 32, 48, 55, 62}
)

// productExtensions are stripped before parsing.
var productExtensions = []string{".zip", ".safe"}

// Identity is a parsed Sentinel-1 product name.
type Identity struct {
	Name            string
	Mission         string // S1A, S1B, ...
	BeamMode        string // IW, EW, SM (S1..S6), WV
	ProductType     string // SLC, GRD, RAW, OCN
	Resolution      string // F, H, M or "" when not applicable
	ProcessingLevel string // 0, 1, 2
	ProductClass    string // S (standard), A (annotation)
	Polarisation    string // SH, SV, DH, DV, HH, HV, VV, VH
	Start           time.Time
	Stop            time.Time
	AbsoluteOrbit   int
	DataTake        string
	ProductID       string
}

// Parse parses a product name, optionally carrying a .zip or .SAFE
// extension or a directory prefix.
func Parse(name string) (Identity, error) {
	base := filepath.Base(name)
	for _, ext := range productExtensions {
		if strings.HasSuffix(strings.ToLower(base), ext) {
			base = base[:len(base)-len(ext)]
			break
		}
	}

	if len(base) != nameLength {
		return Identity{}, malformed(name, fmt.Sprintf("expected %d characters, got %d", nameLength, len(base)))
	}
	for _, pos := range separators {
		if base[pos] != '_' {
			return Identity{}, malformed(name, fmt.Sprintf("expected '_' at offset %d", pos))
		}
	}

	id := Identity{
		Name:            base,
		Mission:         field(base, fieldMission),
		BeamMode:        field(base, fieldBeamMode),
		ProductType:     strings.TrimRight(field(base, fieldType), "_"),
		Resolution:      strings.Trim(field(base, fieldRes), "_"),
		ProcessingLevel: field(base, fieldLevel),
		ProductClass:    field(base, fieldClass),
		Polarisation:    field(base, fieldPol),
		DataTake:        field(base, fieldDataTake),
		ProductID:       field(base, fieldProductID),
	}

	if !strings.HasPrefix(id.Mission, "S1") {
		return Identity{}, malformed(name, fmt.Sprintf("unknown mission %q", id.Mission))
	}
	if id.ProductType == "" {
		return Identity{}, malformed(name, "empty product type")
	}

	var err error
	if id.Start, err = time.Parse(timestampLayout, field(base, fieldStart)); err != nil {
		return Identity{}, malformed(name, "invalid start time")
	}
	if id.Stop, err = time.Parse(timestampLayout, field(base, fieldStop)); err != nil {
		return Identity{}, malformed(name, "invalid stop time")
	}
	if id.Stop.Before(id.Start) {
		return Identity{}, malformed(name, "stop time before start time")
	}
	if id.AbsoluteOrbit, err = strconv.Atoi(field(base, fieldOrbit)); err != nil {
		return Identity{}, malformed(name, "invalid absolute orbit")
	}
	if !isHex(id.DataTake) || !isHex(id.ProductID) {
		return Identity{}, malformed(name, "invalid data-take or product identifier")
	}

	return id, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// constants.
func MustParse(name string) Identity {
	id, err := Parse(name)
	if err != nil {
		panic(err)
	}
	return id
}

// Date returns the canonical acquisition date (the start day).
func (id Identity) Date() Date {
	return DateOf(id.Start)
}

// Polarisations expands the polarisation code into channel names.
func (id Identity) Polarisations() []string {
	switch id.Polarisation {
	case "SH":
		return []string{"HH"}
	case "SV":
		return []string{"VV"}
	case "DH":
		return []string{"HH", "HV"}
	case "DV":
		return []string{"VV", "VH"}
	case "HH", "HV", "VV", "VH":
		return []string{id.Polarisation}
	default:
		return nil
	}
}

// String returns the product name.
func (id Identity) String() string {
	return id.Name
}

func field(s string, f span) string {
	return s[f.from:f.to]
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'A' && r <= 'F', r >= 'a' && r <= 'f':
		default:
			return false
		}
	}
	return true
}

func malformed(name, reason string) error {
	return fmt.Errorf("%w: %q: %s", ErrMalformedIdentifier, name, reason)
}
