package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/robert-malhotra/cohdet/internal/asf"
)

// ASFBackend implements Backend for the ASF Search API.
type ASFBackend struct {
	client *asf.Client
	logger *slog.Logger
}

// NewASFBackend creates a new ASF backend.
func NewASFBackend(client *asf.Client, logger *slog.Logger) *ASFBackend {
	return &ASFBackend{
		client: client,
		logger: logger,
	}
}

// Name returns the backend name.
func (b *ASFBackend) Name() string {
	return "asf"
}

// Search executes a search against the ASF API.
func (b *ASFBackend) Search(ctx context.Context, q Query) ([]Record, error) {
	resp, err := b.client.Search(ctx, b.toASFParams(q))
	if err != nil {
		return nil, fmt.Errorf("ASF search failed: %w", err)
	}

	records := make([]Record, 0, len(resp.Features))
	for _, feature := range resp.Features {
		props := feature.Properties
		name := props.SceneName
		if name == "" {
			name = strings.TrimSuffix(props.FileName, ".zip")
		}

		acquired, err := ParseASFTime(props.StartTime)
		if err != nil {
			return nil, fmt.Errorf("ASF returned %s with unusable start time: %w", name, err)
		}

		records = append(records, Record{
			Name:     name,
			Acquired: acquired,
			Handle:   props.URL,
			Size:     props.Size(),
		})
	}

	b.logger.DebugContext(ctx, "ASF catalog search",
		slog.Int("records", len(records)),
	)
	return records, nil
}

func (b *ASFBackend) toASFParams(q Query) asf.SearchParams {
	params := asf.SearchParams{
		Platform:        []string{q.Platform},
		ProcessingLevel: []string{q.ProductType},
		Output:          "geojson",
	}
	if q.Footprint != nil {
		params.IntersectsWith = q.Footprint.WKT()
	}
	if q.SensorMode != "" {
		params.BeamMode = BeamModes(q.SensorMode)
	}
	if !q.Start.IsZero() {
		start := q.Start
		params.Start = &start
	}
	return params
}
