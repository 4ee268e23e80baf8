package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/robert-malhotra/cohdet/internal/pipeline"
)

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "cohdet",
		Short: "Coherence change detection for Sentinel-1 SLC scenes",
		Long: `cohdet keeps a local archive of Sentinel-1 SLC scenes over a footprint
up to date and takes them through preprocessing, coregistration,
interferogram formation, collocation and coherence-change masking.

Pipeline settings are read from the environment file (COHDET_ENV_FILE).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}

	root.PersistentFlags().StringVar(&a.envFile, "env-file", "", "environment file (overrides COHDET_ENV_FILE)")
	root.PersistentFlags().BoolVar(&a.asJSON, "json", false, "print results as JSON")

	root.AddCommand(
		newRunCmd(a),
		newUpdateCmd(a),
		newPreprocessCmd(a),
		newPairCmd(a),
		newScanCmd(a),
		newInitCmd(a),
		newEnvCmd(a),
		newOperatorsCmd(a),
		newServeCmd(a),
		newWatchCmd(a),
	)
	return root
}

func newRunCmd(a *app) *cobra.Command {
	var pairs []string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Download new scenes, preprocess them and process the given pairs",
		Example: `  cohdet run
  cohdet run --pair 20230602:20230614 --pair 20230614:20230626@20230602:20230614`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			specs, err := parsePairSpecs(pairs)
			if err != nil {
				return err
			}
			return a.runStages(cmd.Context(), func(ctx context.Context, seq *pipeline.Sequencer) ([]pipeline.StageResult, error) {
				return seq.Run(ctx, specs)
			})
		},
	}
	cmd.Flags().StringArrayVar(&pairs, "pair", nil, "pair to process as P:S, optionally compared against a baseline as P:S@BP:BS (repeatable)")
	return cmd
}

func newUpdateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Download scenes acquired since the latest marker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runStages(cmd.Context(), func(ctx context.Context, seq *pipeline.Sequencer) ([]pipeline.StageResult, error) {
				return seq.Update(ctx)
			})
		},
	}
}

func newPreprocessCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "preprocess",
		Short: "Apply orbit files and subset every downloaded scene without a subset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runStages(cmd.Context(), func(ctx context.Context, seq *pipeline.Sequencer) ([]pipeline.StageResult, error) {
				return seq.Preprocess(ctx)
			})
		},
	}
}

func newPairCmd(a *app) *cobra.Command {
	var baseline string
	cmd := &cobra.Command{
		Use:   "pair P:S",
		Short: "Coregister, form the interferogram, collocate and mask one pair",
		Example: `  cohdet pair 20230602:20230614
  cohdet pair 20230614:20230626 --baseline 20230602:20230614`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := args[0]
			if baseline != "" {
				text += "@" + baseline
			}
			spec, err := pipeline.ParsePairSpec(text)
			if err != nil {
				return err
			}
			return a.runStages(cmd.Context(), func(ctx context.Context, seq *pipeline.Sequencer) ([]pipeline.StageResult, error) {
				return seq.ProcessPair(ctx, spec)
			})
		},
	}
	cmd.Flags().StringVar(&baseline, "baseline", "", "earlier pair BP:BS whose coherence is the reference for masking")
	return cmd
}

func parsePairSpecs(values []string) ([]pipeline.PairSpec, error) {
	specs := make([]pipeline.PairSpec, 0, len(values))
	for _, v := range values {
		spec, err := pipeline.ParsePairSpec(v)
		if err != nil {
			return nil, fmt.Errorf("invalid --pair %q: %w", v, err)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// runStages executes fn once and prints every stage decision, including
// those made before a failure.
func (a *app) runStages(ctx context.Context, fn stageFunc) error {
	results, err := a.execute(ctx, newRunID(), fn)
	if perr := a.printResults(results); perr != nil && err == nil {
		err = perr
	}
	return err
}

func (a *app) printResults(results []pipeline.StageResult) error {
	if a.asJSON {
		return writeJSON(a.stdout, results)
	}
	if len(results) == 0 {
		_, err := fmt.Fprintln(a.stdout, "nothing to do")
		return err
	}
	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STAGE\tSUBJECT\tOUTCOME\tDETAIL")
	for _, r := range results {
		detail := r.Artifact
		if r.Outcome == pipeline.OutcomeBlocked {
			detail = r.Reason
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Stage, r.Subject, r.Outcome, detail)
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
