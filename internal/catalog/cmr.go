package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robert-malhotra/cohdet/internal/cmr"
)

// sentinel1Missions are the Sentinel-1 units with CMR collections.
var sentinel1Missions = []string{"SENTINEL-1A", "SENTINEL-1B", "SENTINEL-1C"}

// CMRBackend implements Backend for NASA's CMR API.
type CMRBackend struct {
	client *cmr.Client
	logger *slog.Logger
}

// NewCMRBackend creates a new CMR backend.
func NewCMRBackend(client *cmr.Client, logger *slog.Logger) *CMRBackend {
	return &CMRBackend{
		client: client,
		logger: logger,
	}
}

// Name returns the backend name.
func (b *CMRBackend) Name() string {
	return "cmr"
}

// Search executes a search against CMR, following its result cursor.
func (b *CMRBackend) Search(ctx context.Context, q Query) ([]Record, error) {
	granules, err := b.client.SearchAll(ctx, b.toCMRParams(q))
	if err != nil {
		return nil, fmt.Errorf("CMR search failed: %w", err)
	}

	records := make([]Record, 0, len(granules))
	for i := range granules {
		g := &granules[i]
		acquired, err := g.GetStartTime()
		if err != nil {
			return nil, fmt.Errorf("CMR returned %s with unusable start time: %w", g.GranuleUR, err)
		}
		records = append(records, Record{
			Name:     strings.TrimSuffix(g.GranuleUR, "-SLC"),
			Acquired: acquired.UTC(),
			Handle:   g.GetDataURL(),
		})
	}

	b.logger.DebugContext(ctx, "CMR catalog search",
		slog.Int("records", len(records)),
	)
	return records, nil
}

func (b *CMRBackend) toCMRParams(q Query) *cmr.SearchParams {
	params := &cmr.SearchParams{
		PageSize: cmr.DefaultPageSize,
		SortKey:  "start_date",
	}
	if strings.EqualFold(q.Platform, Platform) {
		for _, m := range sentinel1Missions {
			params.ShortName = append(params.ShortName, m+"_"+q.ProductType)
		}
	} else {
		params.ShortName = []string{q.Platform + "_" + q.ProductType}
	}
	if q.Footprint != nil {
		params.Polygon = q.Footprint.OuterRingCCW()
	}
	if q.SensorMode != "" {
		params.BeamMode = BeamModes(q.SensorMode)
		params.AttributeOr = len(params.BeamMode) > 1
	}
	if !q.Start.IsZero() {
		params.Temporal = q.Start.UTC().Format(time.RFC3339) + ","
	}
	return params
}
