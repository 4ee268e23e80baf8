package asf

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ASFGeoJSONResponse represents ASF's GeoJSON FeatureCollection response
type ASFGeoJSONResponse struct {
	Type     string       `json:"type"` // "FeatureCollection"
	Features []ASFFeature `json:"features"`
}

// ASFFeature represents a single ASF search result feature
type ASFFeature struct {
	Type       string        `json:"type"` // "Feature"
	Geometry   *Geometry     `json:"geometry"`
	Properties ASFProperties `json:"properties"`
}

// Geometry represents a GeoJSON geometry
type Geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// ASFProperties contains the granule metadata the pipeline reads
type ASFProperties struct {
	SceneName string `json:"sceneName"`
	FileID    string `json:"fileID"`
	Platform  string `json:"platform"`

	BeamModeType    string `json:"beamModeType"`
	Polarization    string `json:"polarization"`
	FlightDirection string `json:"flightDirection"`
	AbsoluteOrbit   *int   `json:"absoluteOrbit"`

	ProcessingLevel string `json:"processingLevel"`

	StartTime string `json:"startTime"`
	StopTime  string `json:"stopTime"`

	URL      string          `json:"url"`
	FileName string          `json:"fileName"`
	Bytes    json.RawMessage `json:"bytes"` // Can be int64 or string depending on ASF response
	MD5Sum   string          `json:"md5sum"`
}

// Size returns the advertised file size in bytes, or 0 when unknown.
func (p ASFProperties) Size() int64 {
	raw := strings.Trim(strings.TrimSpace(string(p.Bytes)), `"`)
	if raw == "" || raw == "null" {
		return 0
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil || n < 0 {
		return 0
	}
	return int64(n)
}
