package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/ayusman/handscope/internal/engine"
	"github.com/ayusman/handscope/internal/logging"
)

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// progressReporter redraws a status line on terminals and logs sampled
// percentages everywhere else.
type progressReporter struct {
	out     io.Writer
	live    bool
	sampler *logging.ProgressSampler
	logger  *slog.Logger
	drawn   bool
}

func newProgressReporter(out io.Writer, logger *slog.Logger) *progressReporter {
	return &progressReporter{
		out:     out,
		live:    isTerminal(out),
		sampler: logging.NewProgressSampler(10),
		logger:  logger,
	}
}

func (p *progressReporter) Report(pr engine.Progress) {
	percent := -1.0
	if pr.TotalFrames > 0 {
		percent = 100 * float64(pr.CurrentFrame) / float64(pr.TotalFrames)
	}

	if p.live {
		if percent >= 0 {
			fmt.Fprintf(p.out, "\r%s  frame %d/%d (%.0f%%)  hands %d ",
				formatClock(pr.CurrentTime), pr.CurrentFrame, pr.TotalFrames, percent, pr.HandsSoFar)
		} else {
			fmt.Fprintf(p.out, "\r%s  frame %d  hands %d ", formatClock(pr.CurrentTime), pr.CurrentFrame, pr.HandsSoFar)
		}
		p.drawn = true
		return
	}

	if p.sampler.ShouldLog(percent) {
		p.logger.Info("analysis progress",
			"run_id", pr.RunID,
			"percent", fmt.Sprintf("%.0f", percent),
			"frame", pr.CurrentFrame,
			"hands", pr.HandsSoFar)
	}
}

// Done ends the live status line.
func (p *progressReporter) Done() {
	if p.drawn {
		fmt.Fprintln(p.out)
		p.drawn = false
	}
}
