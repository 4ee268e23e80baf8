// Package pipeline sequences the processing stages: it discovers and
// downloads new scenes, preprocesses them and takes requested pairs through
// coregistration, interferogram, collocation and masking. Every decision is
// derived from the artifacts on disk, so an interrupted run resumes where it
// stopped.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/robert-malhotra/cohdet/internal/catalog"
	"github.com/robert-malhotra/cohdet/internal/environment"
	"github.com/robert-malhotra/cohdet/internal/inventory"
	"github.com/robert-malhotra/cohdet/internal/metrics"
	"github.com/robert-malhotra/cohdet/internal/processing"
	"github.com/robert-malhotra/cohdet/internal/scene"
)

// Options are the collaborators of a Sequencer. Store, Scanner, Differ,
// Fetcher and Processor are required.
type Options struct {
	Store     *environment.Store
	Scanner   *inventory.Scanner
	Differ    *catalog.Differ
	Fetcher   *catalog.Fetcher
	Processor processing.Processor
	Profile   *processing.Profile
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Sequencer runs the stage graph for one environment. It is not safe for
// concurrent use; callers hold the environment lock for the whole run.
type Sequencer struct {
	rec       *environment.Record
	store     *environment.Store
	scanner   *inventory.Scanner
	differ    *catalog.Differ
	fetcher   *catalog.Fetcher
	processor processing.Processor
	profile   *processing.Profile
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New creates a sequencer for rec.
func New(rec *environment.Record, opts Options) (*Sequencer, error) {
	switch {
	case rec == nil:
		return nil, errors.New("pipeline: environment record is required")
	case opts.Store == nil:
		return nil, errors.New("pipeline: environment store is required")
	case opts.Scanner == nil:
		return nil, errors.New("pipeline: inventory scanner is required")
	case opts.Differ == nil:
		return nil, errors.New("pipeline: catalog differ is required")
	case opts.Fetcher == nil:
		return nil, errors.New("pipeline: fetcher is required")
	case opts.Processor == nil:
		return nil, errors.New("pipeline: processor is required")
	}

	s := &Sequencer{
		rec:       rec.Clone(),
		store:     opts.Store,
		scanner:   opts.Scanner,
		differ:    opts.Differ,
		fetcher:   opts.Fetcher,
		processor: opts.Metrics.Instrument(opts.Processor),
		profile:   opts.Profile,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
	}
	if s.profile == nil {
		s.profile = processing.DefaultProfile()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.metrics.SetLatest(s.rec.Latest)
	return s, nil
}

// Record returns a copy of the environment record as last persisted.
func (s *Sequencer) Record() *environment.Record {
	return s.rec.Clone()
}

// Run performs Update, Preprocess and then every pair in order. It returns
// the decisions made so far together with the first error.
func (s *Sequencer) Run(ctx context.Context, pairs []PairSpec) ([]StageResult, error) {
	var results []StageResult
	err := s.run(ctx, pairs, &results)
	s.metrics.ObserveRun(err)
	return results, err
}

func (s *Sequencer) run(ctx context.Context, pairs []PairSpec, results *[]StageResult) error {
	r, err := s.Update(ctx)
	*results = append(*results, r...)
	if err != nil {
		return err
	}

	r, err = s.Preprocess(ctx)
	*results = append(*results, r...)
	if err != nil {
		return err
	}

	for _, p := range pairs {
		r, err = s.ProcessPair(ctx, p)
		*results = append(*results, r...)
		if err != nil {
			return err
		}
	}
	return nil
}

// Update downloads every new catalog scene that is not on disk yet and
// advances the latest marker once every candidate of a date is in place.
// Candidates arrive sorted by acquisition time, so a date is complete when
// the next candidate is later or the list ends. The marker is persisted only
// when it moves, so a failed download leaves it at the last complete date
// and the next run retries every scene of the failed date.
func (s *Sequencer) Update(ctx context.Context) ([]StageResult, error) {
	candidates, err := s.differ.FindNewScenes(ctx, s.rec)
	if err != nil {
		return nil, err
	}

	results := make([]StageResult, 0, len(candidates))
	for i, c := range candidates {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		res, err := s.download(ctx, c)
		if err != nil {
			s.metrics.ObserveStage(string(inventory.StageDownload), "failed")
			return results, &StageError{Stage: inventory.StageDownload, Subject: c.Identity.Name, Err: err}
		}
		s.report(ctx, res)
		results = append(results, res)

		if i+1 < len(candidates) && !candidates[i+1].Date().After(c.Date()) {
			continue
		}
		if err := s.advance(c.Date()); err != nil {
			return results, err
		}
	}
	return results, nil
}

func (s *Sequencer) download(ctx context.Context, c catalog.Candidate) (StageResult, error) {
	res := StageResult{
		Stage:    inventory.StageDownload,
		Subject:  c.Identity.Name,
		Artifact: s.scanner.RawPath(c.Identity),
	}

	have, err := s.scanner.HasRaw(c.Identity)
	if err != nil {
		return res, err
	}
	if have {
		res.Outcome = OutcomeSkipped
		return res, nil
	}

	err = s.fetcher.Fetch(ctx, c, res.Artifact)
	s.metrics.ObserveDownload(err)
	if err != nil {
		return res, err
	}
	res.Outcome = OutcomeRan
	return res, nil
}

func (s *Sequencer) advance(d scene.Date) error {
	next := s.rec.Clone()
	if !next.AdvanceLatest(d) {
		return nil
	}
	if err := s.store.Save(next); err != nil {
		return err
	}
	s.rec = next
	s.metrics.SetLatest(d)
	s.logger.Info("latest marker advanced", slog.String("latest", d.String()))
	return nil
}

// Preprocess applies orbit correction and the footprint subset to every
// downloaded scene whose date has no preprocessed product yet.
func (s *Sequencer) Preprocess(ctx context.Context) ([]StageResult, error) {
	stage := inventory.StagePreprocess

	missing, err := s.scanner.ScenesMissingStage(stage)
	if err != nil {
		return nil, err
	}
	if len(missing) == 0 {
		return nil, nil
	}

	footprint, err := s.rec.FootprintGeometry()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", environment.ErrConfigMissing, err)
	}
	steps := s.profile.Clone().Preprocess
	for i := range steps {
		if steps[i].Operator == "Subset" {
			steps[i].Parameters["geoRegion"] = footprint.WKT()
		}
	}

	layout := s.rec.Layout()
	results := make([]StageResult, 0, len(missing))
	for _, id := range missing {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		date := id.Date()
		op := processing.Operation{
			Name:      string(stage),
			Steps:     steps,
			Inputs:    []string{s.scanner.RawPath(id)},
			OutputDir: stage.Dir(layout),
			Stem:      inventory.SceneStem(stage, date),
		}
		path, err := s.processor.Run(ctx, op)
		if err != nil {
			s.metrics.ObserveStage(string(stage), "failed")
			return results, &StageError{Stage: stage, Subject: date.String(), Err: err}
		}
		res := StageResult{Stage: stage, Subject: date.String(), Outcome: OutcomeRan, Artifact: path}
		s.report(ctx, res)
		results = append(results, res)
	}
	return results, nil
}

// ProcessPair takes one pair through coregistration, interferogram,
// collocation and masking. A stage whose product exists is skipped. A stage
// whose inputs are unavailable is reported as blocked, and so is every
// stage after it. Without a baseline pair, collocation and masking are
// blocked.
func (s *Sequencer) ProcessPair(ctx context.Context, spec PairSpec) ([]StageResult, error) {
	p := spec.Pair
	subject := p.Key()
	profile := s.profile.Clone()

	var results []StageResult
	step := func(stage inventory.Stage, steps []processing.Step, inputs []string, blocked string) (string, error) {
		res, err := s.pairStage(ctx, stage, p, steps, inputs, blocked)
		if err != nil {
			s.metrics.ObserveStage(string(stage), "failed")
			return "", &StageError{Stage: stage, Subject: subject, Err: err}
		}
		s.report(ctx, res)
		results = append(results, res)
		if res.Outcome == OutcomeBlocked {
			return "", nil
		}
		return res.Artifact, nil
	}

	// coregistration
	var inputs []string
	var blocked string
	for _, d := range []scene.Date{p.Primary, p.Secondary} {
		path, ok, err := s.scanner.SceneArtifact(inventory.StagePreprocess, d)
		if err != nil {
			return results, &StageError{Stage: inventory.StageCoregister, Subject: subject, Err: err}
		}
		if !ok {
			blocked = fmt.Sprintf("no preprocessed product for %s", d)
			break
		}
		inputs = append(inputs, path)
	}
	coreg, err := step(inventory.StageCoregister, profile.Coregister, inputs, blocked)
	if err != nil {
		return results, err
	}

	// interferogram
	ifg, err := step(inventory.StageInterferogram, profile.Interferogram, []string{coreg}, upstream(coreg, inventory.StageCoregister))
	if err != nil {
		return results, err
	}

	// collocation against the baseline interferogram
	inputs, blocked = nil, upstream(ifg, inventory.StageInterferogram)
	if blocked == "" {
		switch {
		case spec.Baseline == nil:
			blocked = "no baseline pair given"
		default:
			path, ok, err := s.scanner.PairArtifact(inventory.StageInterferogram, *spec.Baseline)
			if err != nil {
				return results, &StageError{Stage: inventory.StageCollocate, Subject: subject, Err: err}
			}
			if !ok {
				blocked = fmt.Sprintf("no interferogram for baseline pair %s", spec.Baseline)
				break
			}
			inputs = []string{path, ifg}
		}
	}
	colloc, err := step(inventory.StageCollocate, profile.Collocate, inputs, blocked)
	if err != nil {
		return results, err
	}

	// masking
	var maskSteps []processing.Step
	blocked = upstream(colloc, inventory.StageCollocate)
	if blocked == "" {
		if spec.Baseline == nil {
			blocked = "no baseline pair given"
		} else {
			maskSteps = []processing.Step{MaskStep(profile.Mask, *spec.Baseline, p)}
		}
	}
	if _, err := step(inventory.StageMask, maskSteps, []string{colloc}, blocked); err != nil {
		return results, err
	}
	return results, nil
}

func (s *Sequencer) pairStage(ctx context.Context, stage inventory.Stage, p scene.Pair, steps []processing.Step, inputs []string, blocked string) (StageResult, error) {
	res := StageResult{Stage: stage, Subject: p.Key()}

	path, ok, err := s.scanner.PairArtifact(stage, p)
	if err != nil {
		return res, err
	}
	if ok {
		res.Outcome = OutcomeSkipped
		res.Artifact = path
		return res, nil
	}
	if blocked != "" {
		res.Outcome = OutcomeBlocked
		res.Reason = blocked
		return res, nil
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	path, err = s.processor.Run(ctx, processing.Operation{
		Name:      string(stage),
		Steps:     steps,
		Inputs:    inputs,
		OutputDir: stage.Dir(s.rec.Layout()),
		Stem:      inventory.PairStem(stage, p),
	})
	if err != nil {
		return res, err
	}
	res.Outcome = OutcomeRan
	res.Artifact = path
	return res, nil
}

func upstream(artifact string, stage inventory.Stage) string {
	if artifact != "" {
		return ""
	}
	return fmt.Sprintf("%s product unavailable", stage)
}

func (s *Sequencer) report(ctx context.Context, res StageResult) {
	s.metrics.ObserveStage(string(res.Stage), string(res.Outcome))

	attrs := []any{
		slog.String("stage", string(res.Stage)),
		slog.String("subject", res.Subject),
		slog.String("outcome", string(res.Outcome)),
	}
	if res.Artifact != "" {
		attrs = append(attrs, slog.String("artifact", res.Artifact))
	}
	if res.Reason != "" {
		attrs = append(attrs, slog.String("reason", res.Reason))
	}
	level := slog.LevelInfo
	if res.Outcome == OutcomeSkipped {
		level = slog.LevelDebug
	}
	s.logger.Log(ctx, level, "stage decided", attrs...)
}
