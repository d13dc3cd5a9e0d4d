package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ayusman/handscope/internal/store"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded analysis runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				runs, err := st.Runs().List()
				if err != nil {
					return fmt.Errorf("list runs: %w", err)
				}
				if jsonOutput {
					if runs == nil {
						runs = []*store.Run{}
					}
					return writeJSON(cmd, runs)
				}
				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				fmt.Fprintln(out, renderTable(runHeaders, runRows(runs), runAligns))
				return nil
			})
		},
	}
	runsCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print runs as JSON")

	runsCmd.AddCommand(newRunsDeleteCommand(ctx))
	return runsCmd
}

func newRunsDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>...",
		Short: "Delete runs with their hands and hook deliveries",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				out := cmd.OutOrStdout()
				var failed int
				for _, id := range args {
					err := st.Runs().Delete(id)
					switch {
					case errors.Is(err, store.ErrNotFound):
						fmt.Fprintf(out, "Run %s not found\n", id)
						failed++
					case err != nil:
						return fmt.Errorf("delete run %s: %w", id, err)
					default:
						fmt.Fprintf(out, "Deleted run %s\n", id)
					}
				}
				if failed > 0 {
					return fmt.Errorf("%d run(s) not found", failed)
				}
				return nil
			})
		},
	}
}

func newHandsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "hands <run-id>",
		Short: "Show the validated hands of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				run, err := st.Runs().GetByID(args[0])
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("run %s not found", args[0])
				}
				if err != nil {
					return fmt.Errorf("load run: %w", err)
				}
				hands, err := st.Hands().ListByRun(run.ID)
				if err != nil {
					return fmt.Errorf("list hands: %w", err)
				}

				if jsonOutput {
					return writeJSON(cmd, map[string]any{"run": run, "hands": hands})
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Run %s: %s (%s)\n", run.ID, run.Source, run.Status)
				if run.Error != "" {
					fmt.Fprintf(out, "Error: %s\n", run.Error)
				}
				if len(hands) == 0 {
					fmt.Fprintln(out, "No hands detected")
					return nil
				}
				fmt.Fprintln(out, renderTable(handHeaders, handRows(hands), handAligns))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the run and its hands as JSON")
	return cmd
}
