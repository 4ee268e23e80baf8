package asf

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// SearchParams represents parameters for ASF search queries
type SearchParams struct {
	// Platform names (e.g., "Sentinel-1A", "SENTINEL-1")
	Platform []string

	// Spatial filter, WKT geometry string
	IntersectsWith string

	// Temporal filters
	Start *time.Time // Start datetime (inclusive)
	End   *time.Time // End datetime (inclusive)

	// Specific granule names
	GranuleList []string

	// SAR-specific filters
	BeamMode        []string // Beam modes (e.g., "IW", "SM")
	Polarization    []string // Polarizations (e.g., "VV", "VV+VH")
	FlightDirection string   // "ASCENDING" or "DESCENDING"

	// Product types (e.g., "SLC", "GRD_HD")
	ProcessingLevel []string

	MaxResults int    // Maximum number of results to return
	Output     string // Output format (default: "geojson")
}

// ToQueryString converts SearchParams to a URL query string
func (p *SearchParams) ToQueryString() string {
	values := p.ToURLValues()
	return values.Encode()
}

// ToURLValues converts SearchParams to url.Values for query string building
func (p *SearchParams) ToURLValues() url.Values {
	values := url.Values{}

	for _, pl := range p.Platform {
		values.Add("platform", pl)
	}

	if p.IntersectsWith != "" {
		values.Set("intersectsWith", p.IntersectsWith)
	}

	if p.Start != nil {
		values.Set("start", formatASFTime(p.Start))
	}
	if p.End != nil {
		values.Set("end", formatASFTime(p.End))
	}

	if len(p.GranuleList) > 0 {
		values.Set("granule_list", strings.Join(p.GranuleList, ","))
	}

	for _, bm := range p.BeamMode {
		values.Add("beamMode", bm)
	}
	for _, pol := range p.Polarization {
		values.Add("polarization", pol)
	}
	if p.FlightDirection != "" {
		values.Set("flightDirection", p.FlightDirection)
	}

	// Processing level (comma-separated)
	if len(p.ProcessingLevel) > 0 {
		values.Set("processingLevel", strings.Join(p.ProcessingLevel, ","))
	}

	if p.MaxResults > 0 {
		values.Set("maxResults", strconv.Itoa(p.MaxResults))
	}

	if p.Output != "" {
		values.Set("output", p.Output)
	} else {
		values.Set("output", "geojson")
	}

	return values
}

// formatASFTime formats a time.Time for ASF API queries
// ASF expects ISO 8601 format: YYYY-MM-DDTHH:MM:SSZ
func formatASFTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02T15:04:05Z")
}
