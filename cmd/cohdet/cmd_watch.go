package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/robert-malhotra/cohdet/internal/inventory"
	"github.com/robert-malhotra/cohdet/internal/pipeline"
	"github.com/robert-malhotra/cohdet/internal/watch"
)

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Preprocess scenes as they arrive in the raw directory",
		Long: `watch preprocesses the raw directory once, then again every time new
archives appear in it and it has been quiet for WATCH_DEBOUNCE.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := a.store.Load()
			if err != nil {
				return err
			}
			w := watch.New(rec.Layout().Raw, inventory.ExtArchive, a.cfg.Watch.Debounce).WithLogger(a.logger)
			return w.Run(cmd.Context(), func(ctx context.Context) error {
				results, err := a.execute(ctx, newRunID(), func(ctx context.Context, seq *pipeline.Sequencer) ([]pipeline.StageResult, error) {
					return seq.Preprocess(ctx)
				})
				if perr := a.printResults(results); perr != nil && err == nil {
					err = perr
				}
				return err
			})
		},
	}
}
