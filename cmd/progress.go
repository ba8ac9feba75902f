package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"golang.org/x/term"

	"dyfetch/internal/download"
)

// redrawInterval throttles terminal redraws.
const redrawInterval = 100 * time.Millisecond

// logStep is the percentage between log lines when stderr is not a terminal.
const logStep = 25

// progressReporter renders download progress as a bar on a terminal and as
// occasional log lines otherwise.
type progressReporter struct {
	label    string
	out      io.Writer
	tty      bool
	bar      progress.Model
	lastDraw time.Time
	nextStep float64
}

func newProgressReporter(label string) *progressReporter {
	return &progressReporter{
		label:    label,
		out:      os.Stderr,
		tty:      term.IsTerminal(int(os.Stderr.Fd())),
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		nextStep: logStep,
	}
}

// Report is a download.Options.OnProgress callback.
func (r *progressReporter) Report(p download.Progress) {
	if r.tty {
		r.draw(p)
		return
	}

	if p.Known() && p.Percent >= r.nextStep {
		logger.Info().
			Str("file", r.label).
			Str("written", formatBytes(p.Written)).
			Msgf("%.0f%%", p.Percent)
		for r.nextStep <= p.Percent {
			r.nextStep += logStep
		}
	}
}

func (r *progressReporter) draw(p download.Progress) {
	now := time.Now()
	if now.Sub(r.lastDraw) < redrawInterval && p.Percent < 100 {
		return
	}
	r.lastDraw = now

	if p.Known() {
		fmt.Fprintf(r.out, "\r%s %s %s", r.label, r.bar.ViewAs(p.Percent/100), formatBytes(p.Written))
	} else {
		fmt.Fprintf(r.out, "\r%s %s", r.label, formatBytes(p.Written))
	}
}

// Done ends the progress line.
func (r *progressReporter) Done() {
	if r.tty {
		fmt.Fprintln(r.out)
	}
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
