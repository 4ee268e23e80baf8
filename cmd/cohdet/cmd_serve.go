package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/robert-malhotra/cohdet/internal/api"
	"github.com/robert-malhotra/cohdet/internal/environment"
	"github.com/robert-malhotra/cohdet/internal/pipeline"
)

func newServeCmd(a *app) *cobra.Command {
	var pairs []string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve pipeline status, stage artifacts as STAC and metrics over HTTP",
		Long: `serve exposes the environment, the artifacts of every stage as STAC
collections and the pipeline metrics. When SERVER_RUN_INTERVAL is set the
pipeline also runs in the background at that interval.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			specs, err := parsePairSpecs(pairs)
			if err != nil {
				return err
			}
			return a.serve(cmd.Context(), specs)
		},
	}
	cmd.Flags().StringArrayVar(&pairs, "pair", nil, "pair processed by background runs, as for run (repeatable)")
	return cmd
}

func (a *app) serve(ctx context.Context, pairs []pipeline.PairSpec) error {
	cfg := a.cfg
	logger := a.logger

	logger.Info("starting cohdet status server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"env", a.store.Path(),
	)

	status := api.NewRunStatus()
	handlers := api.NewHandlers(a.store, api.Options{
		BaseURL: cfg.Server.PublicURL(),
		Title:   cfg.Server.Title,
	}, logger).WithRunStatus(status)

	router := api.NewRouter(handlers, a.registry, logger)

	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	loopCtx, stopLoop := context.WithCancel(ctx)
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		if cfg.Server.RunInterval > 0 {
			a.runLoop(loopCtx, cfg.Server.RunInterval, pairs, status)
		}
	}()

	var result error
	select {
	case err := <-serverErr:
		result = fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	}

	stopLoop()
	<-loopDone

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	logger.Info("shutting down server", "timeout", cfg.Server.ShutdownTimeout)
	if err := server.Shutdown(shutdownCtx); err != nil && result == nil {
		result = fmt.Errorf("server shutdown error: %w", err)
	}

	logger.Info("server stopped")
	return result
}

// runLoop runs the pipeline immediately and then every interval until ctx
// is cancelled. Runs never overlap. A run that finds the environment locked
// by another process is recorded as failed and retried at the next tick.
func (a *app) runLoop(ctx context.Context, interval time.Duration, pairs []pipeline.PairSpec, status *api.RunStatus) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		runID := newRunID()
		status.Started(runID, time.Now().UTC())
		results, err := a.execute(ctx, runID, func(ctx context.Context, seq *pipeline.Sequencer) ([]pipeline.StageResult, error) {
			return seq.Run(ctx, pairs)
		})
		status.Finished(time.Now().UTC(), results, err)
		if errors.Is(err, environment.ErrStoreLocked) {
			a.logger.Warn("environment busy, skipping run", slog.String("run_id", runID))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
