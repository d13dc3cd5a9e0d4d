package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ayusman/handscope/internal/store"
)

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var noStore bool
	var stride int

	cmd := &cobra.Command{
		Use:   "analyze <video>",
		Short: "Detect hand boundaries in a video file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if stride < 0 {
				return fmt.Errorf("--stride must be positive")
			}
			logger, err := ctx.logger(cmd)
			if err != nil {
				return err
			}

			var st *store.Store
			if !noStore {
				st, err = ctx.openStore()
				if err != nil {
					return err
				}
				defer st.Close()
			}

			a, err := ctx.newApp(st, logger, stride)
			if err != nil {
				return err
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			reporter := newProgressReporter(cmd.ErrOrStderr(), logger)
			run, result, err := a.Analyze(signalCtx, args[0], reporter.Report)
			reporter.Done()
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			if result == nil {
				return err
			}

			if jsonOutput {
				if werr := writeJSON(cmd, result); werr != nil {
					return werr
				}
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s: %s\n", run.ID, result.Source)
			fmt.Fprintf(out, "Analysed %d frames (%s at %.2f fps) in %s\n",
				result.FramesProcessed, formatClock(result.Duration), result.FPS, result.Elapsed.Round(time.Millisecond))
			fmt.Fprintf(out, "Candidates: %d  Validated hands: %d\n", len(result.RawHands), len(result.Hands))
			if result.Dropped != nil {
				fmt.Fprintf(out, "Hand %d opened at %s never closed and was dropped\n",
					result.Dropped.HandID, formatClock(result.Dropped.Timestamp))
			}
			if len(result.Hands) > 0 {
				fmt.Fprintln(out, renderTable(handHeaders, handRows(result.Hands), handAligns))
			}
			if errors.Is(err, context.Canceled) {
				fmt.Fprintln(out, "Analysis interrupted; results are partial")
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the full result as JSON")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "Do not record the run in the database")
	cmd.Flags().IntVar(&stride, "stride", 0, "Analyse every Nth frame (overrides engine.frame_stride)")
	return cmd
}
