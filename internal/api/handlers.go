package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/planetlabs/go-stac"

	"github.com/robert-malhotra/cohdet/internal/environment"
	"github.com/robert-malhotra/cohdet/internal/inventory"
	"github.com/robert-malhotra/cohdet/internal/pipeline"
	intstac "github.com/robert-malhotra/cohdet/internal/stac"
)

// Item listing limits.
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// Options configures the handlers.
type Options struct {
	BaseURL     string
	Title       string
	Description string
}

// Handlers serves the status API. Every request reads the environment file
// and the artifact directories afresh, so the API reflects runs made by
// other processes too.
type Handlers struct {
	store  *environment.Store
	opts   Options
	status *RunStatus
	logger *slog.Logger
}

// NewHandlers creates a new Handlers instance over the environment in store.
func NewHandlers(store *environment.Store, opts Options, logger *slog.Logger) *Handlers {
	if opts.Title == "" {
		opts.Title = "cohdet"
	}
	if opts.Description == "" {
		opts.Description = "Coherence change detection pipeline artifacts"
	}
	return &Handlers{
		store:  store,
		opts:   opts,
		logger: logger,
	}
}

// WithRunStatus publishes the background run state under /status.
func (h *Handlers) WithRunStatus(status *RunStatus) *Handlers {
	h.status = status
	return h
}

// LandingPage returns the root catalog.
// GET /
func (h *Handlers) LandingPage(w http.ResponseWriter, r *http.Request) {
	baseURL := h.opts.BaseURL

	landing := intstac.NewLandingPage("cohdet-root", h.opts.Title, h.opts.Description)
	landing.AddLink("self", baseURL+"/", intstac.MediaJSON)
	landing.AddLink("root", baseURL+"/", intstac.MediaJSON)
	landing.AddLink("conformance", baseURL+"/conformance", intstac.MediaJSON)
	landing.AddLink("data", baseURL+"/collections", intstac.MediaJSON)
	for _, stage := range inventory.Stages() {
		landing.Links = append(landing.Links, &stac.Link{
			Rel:   "child",
			Href:  fmt.Sprintf("%s/collections/%s", baseURL, stage),
			Type:  intstac.MediaJSON,
			Title: string(stage),
		})
	}

	WriteJSON(w, http.StatusOK, landing)
}

// Conformance returns the conformance classes supported by this API.
// GET /conformance
func (h *Handlers) Conformance(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, &intstac.Conformance{
		ConformsTo: intstac.DefaultConformance(),
	})
}

// Environment returns the environment record with credentials redacted.
// GET /environment
func (h *Handlers) Environment(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.load(w)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, rec.Values(true))
}

// Collections lists one collection per stage.
// GET /collections
func (h *Handlers) Collections(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.load(w)
	if !ok {
		return
	}
	footprint, err := rec.FootprintGeometry()
	if err != nil {
		WriteInternalError(w, "environment footprint is invalid")
		return
	}

	baseURL := h.opts.BaseURL
	collections := make([]*stac.Collection, 0, len(inventory.Stages()))
	for _, stage := range inventory.Stages() {
		collections = append(collections, intstac.StageCollection(stage, footprint, rec.Start, baseURL))
	}

	response := intstac.NewCollectionsList(collections)
	response.Links = append(response.Links,
		&stac.Link{Rel: "self", Href: baseURL + "/collections", Type: intstac.MediaJSON},
		&stac.Link{Rel: "root", Href: baseURL + "/", Type: intstac.MediaJSON},
	)

	WriteJSON(w, http.StatusOK, response)
}

// Collection returns the collection of one stage.
// GET /collections/{collectionId}
func (h *Handlers) Collection(w http.ResponseWriter, r *http.Request) {
	stage, ok := h.stage(w, r)
	if !ok {
		return
	}
	rec, ok := h.load(w)
	if !ok {
		return
	}
	footprint, err := rec.FootprintGeometry()
	if err != nil {
		WriteInternalError(w, "environment footprint is invalid")
		return
	}

	WriteJSON(w, http.StatusOK, intstac.StageCollection(stage, footprint, rec.Start, h.opts.BaseURL))
}

// Items lists the artifacts of a stage, optionally restricted to those
// acquired within a datetime interval.
// GET /collections/{collectionId}/items?limit=&offset=&datetime=
func (h *Handlers) Items(w http.ResponseWriter, r *http.Request) {
	stage, ok := h.stage(w, r)
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit", DefaultLimit)
	if err != nil || limit < 1 {
		WriteInvalidParameter(w, "limit must be a positive integer")
		return
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		WriteInvalidParameter(w, "offset must be a non-negative integer")
		return
	}

	filter := func(inventory.Artifact) bool { return true }
	if dt := r.URL.Query().Get("datetime"); dt != "" {
		start, end, err := intstac.ParseDatetimeInterval(dt)
		if err != nil {
			WriteInvalidParameter(w, err.Error())
			return
		}
		filter = func(a inventory.Artifact) bool {
			from, to := artifactSpan(a)
			return intstac.Overlaps(from, to, start, end)
		}
	}

	items, matched, ok := h.items(w, stage, filter, offset, limit)
	if !ok {
		return
	}

	baseURL := h.opts.BaseURL
	collectionURL := fmt.Sprintf("%s/collections/%s", baseURL, stage)
	collection := intstac.NewItemCollection(items, matched)
	collection.Links = intstac.BuildPaginationLinks(intstac.PaginationInfo{
		BaseURL:       collectionURL + "/items",
		Offset:        offset,
		Limit:         limit,
		Matched:       matched,
		ReturnedCount: len(items),
		QueryParams:   r.URL.Query(),
	})
	collection.AddLink("root", baseURL+"/", intstac.MediaJSON)
	collection.AddLink("parent", collectionURL, intstac.MediaJSON)
	collection.AddLink("collection", collectionURL, intstac.MediaJSON)

	WriteGeoJSON(w, http.StatusOK, collection)
}

// artifactSpan is the acquisition time range an artifact covers: the
// sensing time of a raw scene, otherwise the whole days of its dates.
func artifactSpan(a inventory.Artifact) (time.Time, time.Time) {
	if a.Scene != nil {
		return a.Scene.Start, a.Scene.Stop
	}
	if !a.Pair.Primary.IsZero() {
		return a.Pair.Primary.Time(), a.Pair.Secondary.EndOfDay()
	}
	return a.Date.Time(), a.Date.EndOfDay()
}

// Item returns a single artifact by ID.
// GET /collections/{collectionId}/items/{itemId}
func (h *Handlers) Item(w http.ResponseWriter, r *http.Request) {
	stage, ok := h.stage(w, r)
	if !ok {
		return
	}
	itemID := chi.URLParam(r, "itemId")
	if itemID == "" {
		WriteBadRequest(w, "item ID is required")
		return
	}

	items, _, ok := h.items(w, stage, func(inventory.Artifact) bool { return true }, 0, -1)
	if !ok {
		return
	}
	for _, item := range items {
		if item.Id == itemID {
			WriteGeoJSON(w, http.StatusOK, item)
			return
		}
	}
	WriteNotFound(w, fmt.Sprintf("item %q not found", itemID))
}

// Status returns the state of the background runs.
// GET /status
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	if h.status == nil {
		WriteNotFound(w, "background runs are disabled")
		return
	}
	WriteJSON(w, http.StatusOK, h.status.Snapshot())
}

// Health returns the health status of the service. The service is
// unhealthy while the environment file cannot be loaded.
// GET /health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if _, err := h.store.Load(); err != nil {
		WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) load(w http.ResponseWriter) (*environment.Record, bool) {
	rec, err := h.store.Load()
	if err != nil {
		h.logger.Error("failed to load environment", slog.String("error", err.Error()))
		WriteInternalError(w, "environment unavailable")
		return nil, false
	}
	return rec, true
}

func (h *Handlers) stage(w http.ResponseWriter, r *http.Request) (inventory.Stage, bool) {
	collectionID := chi.URLParam(r, "collectionId")
	if collectionID == "" {
		WriteBadRequest(w, "collection ID is required")
		return "", false
	}
	stage, err := inventory.ParseStage(collectionID)
	if err != nil {
		WriteNotFound(w, fmt.Sprintf("collection %q not found", collectionID))
		return "", false
	}
	return stage, true
}

// items lists a page of the stage's artifacts accepted by keep as STAC
// items. A negative limit returns everything from offset on.
func (h *Handlers) items(w http.ResponseWriter, stage inventory.Stage, keep func(inventory.Artifact) bool, offset, limit int) ([]*stac.Item, int, bool) {
	rec, ok := h.load(w)
	if !ok {
		return nil, 0, false
	}
	footprint, err := rec.FootprintGeometry()
	if err != nil {
		WriteInternalError(w, "environment footprint is invalid")
		return nil, 0, false
	}

	artifacts, err := inventory.NewScanner(rec.Layout()).WithLogger(h.logger).List(stage)
	if err != nil {
		h.logger.Error("failed to list artifacts",
			slog.String("stage", string(stage)),
			slog.String("error", err.Error()),
		)
		if errors.Is(err, inventory.ErrInventoryScan) {
			WriteError(w, http.StatusServiceUnavailable, ErrCodeInventory, "artifact directory unavailable")
		} else {
			WriteInternalError(w, "failed to list artifacts")
		}
		return nil, 0, false
	}

	kept := artifacts[:0]
	for _, a := range artifacts {
		if keep(a) {
			kept = append(kept, a)
		}
	}
	artifacts = kept

	matched := len(artifacts)
	if offset > matched {
		offset = matched
	}
	end := matched
	if limit >= 0 && offset+limit < end {
		end = offset + limit
	}

	items := make([]*stac.Item, 0, end-offset)
	for _, a := range artifacts[offset:end] {
		items = append(items, intstac.ItemFromArtifact(a, footprint, h.opts.BaseURL))
	}
	return items, matched, true
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

// RunStatus records the outcome of background pipeline runs.
type RunStatus struct {
	mu   sync.RWMutex
	last RunSnapshot
	runs int
}

// RunSnapshot is the JSON form of the last run.
type RunSnapshot struct {
	Runs       int                    `json:"runs"`
	RunID      string                 `json:"run_id,omitempty"`
	Running    bool                   `json:"running"`
	StartedAt  *time.Time             `json:"started_at,omitempty"`
	FinishedAt *time.Time             `json:"finished_at,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Results    []pipeline.StageResult `json:"results"`
}

// NewRunStatus creates an empty run status.
func NewRunStatus() *RunStatus {
	return &RunStatus{}
}

// Started marks a run as in progress.
func (s *RunStatus) Started(runID string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs++
	s.last = RunSnapshot{RunID: runID, Running: true, StartedAt: &at}
}

// Finished records the results of the run in progress.
func (s *RunStatus) Finished(at time.Time, results []pipeline.StageResult, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last.Running = false
	s.last.FinishedAt = &at
	s.last.Results = results
	if err != nil {
		s.last.Error = err.Error()
	}
}

// Snapshot returns a copy of the current state.
func (s *RunStatus) Snapshot() RunSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := s.last
	snap.Runs = s.runs
	snap.Results = append(make([]pipeline.StageResult, 0, len(s.last.Results)), s.last.Results...)
	return snap
}
