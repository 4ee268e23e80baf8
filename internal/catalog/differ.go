package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/robert-malhotra/cohdet/internal/environment"
	"github.com/robert-malhotra/cohdet/internal/scene"
)

// Differ compares the remote catalog with the environment's latest marker.
// It keeps no state between calls; every call starts from the record.
type Differ struct {
	backend Backend
	logger  *slog.Logger
}

// NewDiffer creates a differ over the given catalog backend.
func NewDiffer(backend Backend) *Differ {
	return &Differ{
		backend: backend,
		logger:  slog.Default(),
	}
}

// WithLogger sets a custom logger for the differ.
func (d *Differ) WithLogger(logger *slog.Logger) *Differ {
	d.logger = logger
	return d
}

// QueryFor builds the catalog query described by rec.
func QueryFor(rec *environment.Record) (Query, error) {
	footprint, err := rec.FootprintGeometry()
	if err != nil {
		return Query{}, fmt.Errorf("%w: %v", environment.ErrConfigMissing, err)
	}
	return Query{
		Footprint:   footprint,
		Platform:    Platform,
		ProductType: ProductType,
		SensorMode:  rec.SensorMode,
		Start:       rec.Start.Time(),
	}, nil
}

// FindNewScenes returns the catalog products acquired after the end of the
// latest day, oldest first, each identifier once. A scene acquired at any
// time on the latest date counts as already ingested. With no latest marker
// everything from the window start is new.
//
// Query failures are reported as ErrCatalogUnavailable. A product whose name
// does not follow the naming convention fails the whole call with
// scene.ErrMalformedIdentifier.
func (d *Differ) FindNewScenes(ctx context.Context, rec *environment.Record) ([]Candidate, error) {
	q, err := QueryFor(rec)
	if err != nil {
		return nil, err
	}

	records, err := d.backend.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCatalogUnavailable, d.backend.Name(), err)
	}

	cutoff := rec.Start.Time()
	if !rec.Latest.IsZero() {
		cutoff = rec.Latest.EndOfDay()
	}

	seen := make(map[string]bool, len(records))
	candidates := make([]Candidate, 0, len(records))
	for _, r := range records {
		id, err := scene.Parse(r.Name)
		if err != nil {
			return nil, fmt.Errorf("catalog %s: %w", d.backend.Name(), err)
		}
		if seen[id.Name] {
			continue
		}
		seen[id.Name] = true

		if !rec.Latest.IsZero() && !r.Acquired.After(cutoff) {
			continue
		}
		if rec.Latest.IsZero() && r.Acquired.Before(cutoff) {
			continue
		}

		candidates = append(candidates, Candidate{
			Identity: id,
			Acquired: r.Acquired,
			Handle:   r.Handle,
			Size:     r.Size,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if !a.Acquired.Equal(b.Acquired) {
			return a.Acquired.Before(b.Acquired)
		}
		return a.Identity.Name < b.Identity.Name
	})

	d.logger.InfoContext(ctx, "catalog diffed",
		slog.String("backend", d.backend.Name()),
		slog.Int("records", len(records)),
		slog.Int("new", len(candidates)),
		slog.String("latest", rec.Latest.String()),
	)
	return candidates, nil
}
