package main

import (
	"fmt"
	"log/slog"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/robert-malhotra/cohdet/internal/inventory"
	"github.com/robert-malhotra/cohdet/internal/pipeline"
)

func newEnvCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Inspect or modify the environment file",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the environment record with credentials redacted",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				rec, err := a.store.Load()
				if err != nil {
					return err
				}
				values := rec.Values(true)
				if a.asJSON {
					return writeJSON(a.stdout, values)
				}
				keys := make([]string, 0, len(values))
				for k := range values {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					fmt.Fprintf(a.stdout, "%s=%s\n", k, values[k])
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "reset-latest",
			Short: "Clear the latest marker so the next update starts from the start date",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				unlock, err := a.store.Lock()
				if err != nil {
					return err
				}
				defer unlock()

				rec, err := a.store.Load()
				if err != nil {
					return err
				}
				previous := rec.Latest
				rec.ResetLatest()
				if err := a.store.Save(rec); err != nil {
					return err
				}
				a.logger.Info("latest marker reset",
					slog.String("env", a.store.Path()),
					slog.String("previous", previous.String()),
				)
				return nil
			},
		},
	)
	return cmd
}

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the stage directories named by the environment file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := a.store.Load()
			if err != nil {
				return err
			}
			layout := rec.Layout()
			if err := layout.Ensure(); err != nil {
				return err
			}
			for _, dir := range layout.Dirs() {
				fmt.Fprintln(a.stdout, dir)
			}
			return nil
		},
	}
}

func newScanCmd(a *app) *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "scan [stage]",
		Short: "Print downloaded scenes that have no output for a stage yet",
		Long: `scan prints the downloaded scenes that have no output for the given
single-scene stage (default preprocess). With --list it prints the
completed artifacts of any stage instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stage := inventory.StagePreprocess
			if len(args) == 1 {
				s, err := inventory.ParseStage(args[0])
				if err != nil {
					return err
				}
				stage = s
			}

			rec, err := a.store.Load()
			if err != nil {
				return err
			}
			scanner := inventory.NewScanner(rec.Layout()).WithLogger(a.logger)

			if list {
				artifacts, err := scanner.List(stage)
				if err != nil {
					return err
				}
				if a.asJSON {
					return writeJSON(a.stdout, artifacts)
				}
				tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "DATE\tNAME\tSIZE")
				for _, art := range artifacts {
					fmt.Fprintf(tw, "%s\t%s\t%d\n", art.Date, art.Name, art.Size)
				}
				return tw.Flush()
			}

			missing, err := scanner.ScenesMissingStage(stage)
			if err != nil {
				return err
			}
			if a.asJSON {
				return writeJSON(a.stdout, missing)
			}
			for _, id := range missing {
				fmt.Fprintf(a.stdout, "%s\t%s\n", id.Date(), id.Name)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "list completed artifacts of the stage")
	return cmd
}

func newOperatorsCmd(a *app) *cobra.Command {
	var describe bool
	cmd := &cobra.Command{
		Use:   "operators",
		Short: "Print the parameter sets used for every stage",
		Long: `operators prints the effective parameter profile as YAML. With
--describe it also asks gpt for the parameter descriptors of every
operator the profile uses.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := a.profile()
			if err != nil {
				return err
			}
			if err := profile.Encode(a.stdout); err != nil {
				return err
			}
			if !describe {
				return nil
			}

			gpt := a.gpt(a.logger)
			for _, op := range pipeline.Operators(profile) {
				help, err := gpt.Describe(cmd.Context(), op)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "\n# %s\n%s", op, help)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&describe, "describe", false, "include gpt's parameter descriptors for each operator")
	return cmd
}
