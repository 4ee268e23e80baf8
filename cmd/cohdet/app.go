package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/robert-malhotra/cohdet/internal/asf"
	"github.com/robert-malhotra/cohdet/internal/catalog"
	"github.com/robert-malhotra/cohdet/internal/cmr"
	"github.com/robert-malhotra/cohdet/internal/config"
	"github.com/robert-malhotra/cohdet/internal/environment"
	"github.com/robert-malhotra/cohdet/internal/inventory"
	"github.com/robert-malhotra/cohdet/internal/metrics"
	"github.com/robert-malhotra/cohdet/internal/pipeline"
	"github.com/robert-malhotra/cohdet/internal/processing"
)

// app carries the state shared by every command. It is filled in by the
// root command's PersistentPreRunE.
type app struct {
	stdout io.Writer
	stderr io.Writer

	cfg      *config.Config
	logger   *slog.Logger
	store    *environment.Store
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	// processor replaces gpt when set; used by tests.
	processor processing.Processor

	envFile string
	asJSON  bool
}

func newApp(stdout, stderr io.Writer) *app {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &app{
		stdout:   stdout,
		stderr:   stderr,
		registry: reg,
		metrics:  metrics.New(reg),
	}
}

// setup loads the process configuration and builds the logger and store.
func (a *app) setup() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if a.envFile != "" {
		cfg.Environment.File = a.envFile
	}
	a.cfg = cfg
	a.logger = setupLogger(a.stderr, cfg.Logging.Level, cfg.Logging.Format)
	a.store = environment.NewStore(cfg.Environment.File).WithLogger(a.logger)
	return nil
}

// stageFunc is one pipeline invocation against a ready sequencer.
type stageFunc func(ctx context.Context, seq *pipeline.Sequencer) ([]pipeline.StageResult, error)

// execute runs fn under the environment lock with a freshly loaded record.
// Every invocation is tagged with its own run id.
func (a *app) execute(ctx context.Context, runID string, fn stageFunc) ([]pipeline.StageResult, error) {
	logger := a.logger.With(slog.String("run_id", runID))

	unlock, err := a.store.Lock()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := unlock(); err != nil {
			logger.Warn("failed to release environment lock", slog.String("error", err.Error()))
		}
	}()

	rec, err := a.store.Load()
	if err != nil {
		return nil, err
	}
	seq, err := a.newSequencer(rec, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("pipeline run started",
		slog.String("env", a.store.Path()),
		slog.String("latest", rec.Latest.String()),
	)
	results, err := fn(ctx, seq)
	if err != nil {
		logger.Error("pipeline run failed", slog.String("error", err.Error()))
		return results, err
	}
	logger.Info("pipeline run finished",
		slog.Int("stages", len(results)),
		slog.String("latest", seq.Record().Latest.String()),
	)
	return results, nil
}

func newRunID() string {
	return uuid.NewString()
}

func (a *app) newSequencer(rec *environment.Record, logger *slog.Logger) (*pipeline.Sequencer, error) {
	backend, downloader := a.newCatalog(rec, logger)

	profile, err := a.profile()
	if err != nil {
		return nil, err
	}

	processor := a.processor
	if processor == nil {
		processor = a.gpt(logger)
	}

	return pipeline.New(rec, pipeline.Options{
		Store:     a.store,
		Scanner:   inventory.NewScanner(rec.Layout()).WithLogger(logger),
		Differ:    catalog.NewDiffer(backend).WithLogger(logger),
		Fetcher:   catalog.NewFetcher(downloader).WithLogger(logger),
		Processor: processor,
		Profile:   profile,
		Metrics:   a.metrics,
		Logger:    logger,
	})
}

// newCatalog selects the search backend. Products are always downloaded
// through the ASF client, which holds the Earthdata credentials.
func (a *app) newCatalog(rec *environment.Record, logger *slog.Logger) (catalog.Backend, catalog.Downloader) {
	baseURL := a.cfg.Catalog.URL
	if baseURL == "" {
		baseURL = rec.ServiceURL
	}
	client := asf.NewClient(baseURL, a.cfg.Catalog.Timeout).
		WithLogger(logger).
		WithCredentials(rec.User, rec.Password).
		WithAuthHost(a.cfg.Catalog.AuthHost).
		WithDownloadTimeout(a.cfg.Catalog.DownloadTimeout)

	switch a.cfg.Catalog.Backend {
	case "cmr":
		cmrClient := cmr.NewClient(a.cfg.CMR.BaseURL, a.cfg.CMR.Provider, a.cfg.Catalog.Timeout).WithLogger(logger)
		logger.Debug("using CMR backend", slog.String("base_url", a.cfg.CMR.BaseURL), slog.String("provider", a.cfg.CMR.Provider))
		return catalog.NewCMRBackend(cmrClient, logger), client
	default:
		logger.Debug("using ASF backend", slog.String("base_url", baseURL))
		return catalog.NewASFBackend(client, logger), client
	}
}

func (a *app) gpt(logger *slog.Logger) *processing.GPT {
	return processing.NewGPT(a.cfg.GPT.Path).
		WithLogger(logger).
		WithArgs(strings.Fields(strings.Join(a.cfg.GPT.Args, " "))...)
}

// profile returns the parameter profile named by the configuration, or the
// built-in one.
func (a *app) profile() (*processing.Profile, error) {
	if a.cfg.GPT.ParametersFile == "" {
		return processing.DefaultProfile(), nil
	}
	return processing.LoadProfile(a.cfg.GPT.ParametersFile)
}
