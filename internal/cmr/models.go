package cmr

import (
	"fmt"
	"strings"
	"time"
)

// UMMSearchResponse represents a CMR UMM-G search response.
type UMMSearchResponse struct {
	Hits  int             `json:"hits"`
	Took  int             `json:"took"`
	Items []UMMResultItem `json:"items"`
}

// UMMResultItem wraps a UMM granule with metadata.
type UMMResultItem struct {
	Meta UMMMeta    `json:"meta"`
	UMM  UMMGranule `json:"umm"`
}

// UMMMeta contains metadata about a CMR result item.
type UMMMeta struct {
	ConceptID  string `json:"concept-id"`
	ProviderID string `json:"provider-id"`
}

// UMMGranule represents the parts of a UMM-G record the pipeline reads.
type UMMGranule struct {
	GranuleUR            string                `json:"GranuleUR"`
	RelatedUrls          []RelatedURL          `json:"RelatedUrls,omitempty"`
	TemporalExtent       *TemporalExtent       `json:"TemporalExtent,omitempty"`
	AdditionalAttributes []AdditionalAttribute `json:"AdditionalAttributes,omitempty"`
}

// RelatedURL represents a URL related to the granule.
type RelatedURL struct {
	URL  string `json:"URL"`
	Type string `json:"Type"` // e.g., "GET DATA", "GET RELATED VISUALIZATION"
}

// TemporalExtent contains temporal information.
type TemporalExtent struct {
	RangeDateTime  *RangeDateTime `json:"RangeDateTime,omitempty"`
	SingleDateTime string         `json:"SingleDateTime,omitempty"`
}

// RangeDateTime represents a time range.
type RangeDateTime struct {
	BeginningDateTime string `json:"BeginningDateTime"`
	EndingDateTime    string `json:"EndingDateTime"`
}

// AdditionalAttribute carries SAR-specific properties like beam mode.
type AdditionalAttribute struct {
	Name   string   `json:"Name"`
	Values []string `json:"Values"`
}

// GetAdditionalAttribute retrieves a specific additional attribute by name.
func (g *UMMGranule) GetAdditionalAttribute(name string) []string {
	for _, attr := range g.AdditionalAttributes {
		if attr.Name == name {
			return attr.Values
		}
	}
	return nil
}

// GetStartTime returns the start time of the granule.
func (g *UMMGranule) GetStartTime() (time.Time, error) {
	if g.TemporalExtent == nil {
		return time.Time{}, fmt.Errorf("granule %s has no temporal extent", g.GranuleUR)
	}
	if g.TemporalExtent.RangeDateTime != nil && g.TemporalExtent.RangeDateTime.BeginningDateTime != "" {
		return parseTime(g.TemporalExtent.RangeDateTime.BeginningDateTime)
	}
	if g.TemporalExtent.SingleDateTime != "" {
		return parseTime(g.TemporalExtent.SingleDateTime)
	}
	return time.Time{}, fmt.Errorf("granule %s has no start time", g.GranuleUR)
}

// GetDataURL returns the primary data download URL. CMR lists several
// "GET DATA" links for ASF granules; the archive (.zip) link is preferred.
func (g *UMMGranule) GetDataURL() string {
	var first string
	for _, u := range g.RelatedUrls {
		if u.Type != "GET DATA" {
			continue
		}
		if strings.HasSuffix(u.URL, ".zip") {
			return u.URL
		}
		if first == "" {
			first = u.URL
		}
	}
	return first
}

// parseTime parses a CMR timestamp string.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05Z",
		"2006-01-02T15:04:05.000Z",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse time: %s", s)
}
