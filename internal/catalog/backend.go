// Package catalog discovers Sentinel-1 scenes in a remote catalog and
// decides which of them are new relative to the environment's latest
// marker.
package catalog

import (
	"context"
	"time"

	"github.com/robert-malhotra/cohdet/internal/scene"
	"github.com/robert-malhotra/cohdet/pkg/geojson"
)

// Fixed query terms. The pipeline works on Sentinel-1 single look complex
// products only.
const (
	Platform    = "SENTINEL-1"
	ProductType = "SLC"
)

// Query describes a catalog search.
type Query struct {
	Footprint   *geojson.Footprint
	Platform    string
	ProductType string
	SensorMode  string
	Start       time.Time
}

// Record is one catalog hit as the backend reports it.
type Record struct {
	Name     string
	Acquired time.Time
	Handle   string // download URL
	Size     int64
}

// Backend is a remote scene catalog.
type Backend interface {
	// Name returns the backend name (e.g., "asf", "cmr").
	Name() string

	// Search returns every product matching q. Implementations report
	// transport and decoding failures as errors, never as an empty result.
	Search(ctx context.Context, q Query) ([]Record, error)
}

// Downloader retrieves a product by its download handle into dest. A
// positive size is the catalog size; dest must not appear unless the
// transfer matches it.
type Downloader interface {
	Download(ctx context.Context, handle, dest string, size int64) (int64, error)
}

// Candidate is a new scene selected for ingestion.
type Candidate struct {
	Identity scene.Identity
	Acquired time.Time
	Handle   string
	Size     int64
}

// Date returns the canonical acquisition date.
func (c Candidate) Date() scene.Date {
	return c.Identity.Date()
}

// BeamModes expands a sensor mode into the beam mode codes catalogs index
// Sentinel-1 products by. Stripmap products are catalogued per swath.
func BeamModes(sensorMode string) []string {
	if sensorMode == "SM" {
		return []string{"S1", "S2", "S3", "S4", "S5", "S6"}
	}
	return []string{sensorMode}
}
