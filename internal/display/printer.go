package display

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/mattn/go-runewidth"

	"github.com/harrison/ralph/internal/models"
)

// Printer writes formatted output for one destination.
type Printer struct {
	out   io.Writer
	color bool
}

// NewPrinter creates a Printer. Color is enabled when out is a terminal and
// NO_COLOR is not set.
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out, color: supportsColor(out)}
}

func supportsColor(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || color.NoColor {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// SetColor forces color output on or off.
func (p *Printer) SetColor(enabled bool) {
	p.color = enabled
}

// Writer returns the destination.
func (p *Printer) Writer() io.Writer {
	return p.out
}

func (p *Printer) paint(s string, attrs ...color.Attribute) string {
	if !p.color || len(attrs) == 0 {
		return s
	}
	c := color.New(attrs...)
	c.EnableColor()
	return c.Sprint(s)
}

func (p *Printer) println(a ...interface{}) {
	fmt.Fprintln(p.out, a...)
}

func (p *Printer) printf(format string, args ...interface{}) {
	fmt.Fprintf(p.out, format, args...)
}

// Banner prints the startup banner.
func (p *Printer) Banner(version string) {
	const width = 36
	border := p.paint("│", color.FgCyan)
	p.println(p.paint("╭"+strings.Repeat("─", width)+"╮", color.FgCyan))
	p.printf("%s %s %s\n", border, p.paint(runewidth.FillRight("Ralph loop "+version, width-2), color.FgCyan, color.Bold), border)
	p.printf("%s %s %s\n", border, p.paint(runewidth.FillRight("Claude Code task runner", width-2), color.Faint), border)
	p.println(p.paint("╰"+strings.Repeat("─", width)+"╯", color.FgCyan))
}

// TasksLoaded reports how many tasks were read from path.
func (p *Printer) TasksLoaded(count int, path string) {
	p.printf("Loaded %s task(s) from %s\n", p.paint(fmt.Sprint(count), color.Bold), path)
}

// Successf prints a green check line.
func (p *Printer) Successf(format string, args ...interface{}) {
	p.printf("%s %s\n", p.paint("✓", color.FgGreen, color.Bold), fmt.Sprintf(format, args...))
}

// Errorf prints an error line.
func (p *Printer) Errorf(format string, args ...interface{}) {
	p.printf("%s %s\n", p.paint("Error:", color.FgRed, color.Bold), fmt.Sprintf(format, args...))
}

// Warnf prints a warning line.
func (p *Printer) Warnf(format string, args ...interface{}) {
	p.printf("%s %s\n", p.paint("Warning:", color.FgYellow), fmt.Sprintf(format, args...))
}

// Infof prints an informational line.
func (p *Printer) Infof(format string, args ...interface{}) {
	p.printf("%s %s\n", p.paint("Info:", color.FgBlue), fmt.Sprintf(format, args...))
}

// Dimf prints a faint line.
func (p *Printer) Dimf(format string, args ...interface{}) {
	p.println(p.paint(fmt.Sprintf(format, args...), color.Faint))
}

// OutputLimit caps how much CLI output Output shows.
const OutputLimit = 2000

// Output prints captured CLI output under a title, truncated to limit bytes.
func (p *Printer) Output(title, output string, limit int) {
	output = strings.TrimRight(output, "\n")
	if output == "" {
		return
	}
	if limit > 0 && len(output) > limit {
		output = output[:limit] + "..."
	}
	p.println(p.paint("── "+title+" "+strings.Repeat("─", 30), color.Faint))
	p.println(output)
	p.println(p.paint(strings.Repeat("─", 40), color.Faint))
}

// TaskStart prints the header for a task about to run.
func (p *Printer) TaskStart(task models.Task) {
	p.printf("\n%s [%s] %s\n", p.paint("▶", color.FgBlue, color.Bold), task.ID, task.Title)
}

// TaskOutcome prints a one-line result for a finished invocation.
func (p *Printer) TaskOutcome(success bool, durationSeconds float64, errText string) {
	if success {
		p.printf("%s completed in %.1fs\n", p.paint("✓", color.FgGreen, color.Bold), durationSeconds)
		return
	}
	if errText == "" {
		errText = "unknown error"
	}
	p.printf("%s failed: %s\n", p.paint("✗", color.FgRed, color.Bold), errText)
}

// StatusReport prints the per-status task counts.
func (p *Printer) StatusReport(stats models.Statistics) {
	p.println()
	p.println(p.paint("Task status", color.Bold))
	p.printf("  Total:       %d\n", stats.Total)
	p.printf("  Todo:        %d\n", stats.Todo)
	p.printf("  In progress: %d\n", stats.InProgress)
	p.printf("  %s\n", p.paint(fmt.Sprintf("Completed:   %d", stats.Completed), color.FgGreen))
	p.printf("  %s\n", p.paint(fmt.Sprintf("Failed:      %d", stats.Failed), color.FgRed))
	p.printf("  %s\n", p.paint(fmt.Sprintf("Skipped:     %d", stats.Skipped), color.Faint))
}

// Statistics prints the one-line totals shown after a run.
func (p *Printer) Statistics(stats models.Statistics, elapsedSeconds float64) {
	p.println()
	p.printf("Total: %s | %s | %s | elapsed %.1fs\n",
		p.paint(fmt.Sprintf("completed %d", stats.Completed), color.FgGreen),
		p.paint(fmt.Sprintf("failed %d", stats.Failed), color.FgRed),
		p.paint(fmt.Sprintf("skipped %d", stats.Skipped), color.Faint),
		elapsedSeconds)
}

// RunOutcome prints how the run ended.
func (p *Printer) RunOutcome(summary models.RunSummary) {
	switch summary.State {
	case models.RunCompleted:
		if summary.Attempted == 0 {
			p.Infof("no pending tasks")
			return
		}
		if summary.Succeeded() {
			p.Successf("run finished: %d task(s) completed", summary.Attempted)
			return
		}
		p.Warnf("run finished with %d unsuccessful task(s)", len(summary.Failures))
	case models.RunMaxIterationsReached:
		p.Warnf("max iterations reached after %d task(s); %d still pending", summary.Attempted, summary.Stats.Todo)
	case models.RunAbortedByUser:
		p.Errorf("run aborted by operator after %d task(s)", summary.Attempted)
	case models.RunInterrupted:
		p.Dimf("interrupted; the current task stays in progress and will be requeued next run")
	}
	for _, f := range summary.Failures {
		line := fmt.Sprintf("  %s %s (%s)", f.TaskID, f.Title, f.Status)
		if f.Error != "" {
			line += ": " + f.Error
		}
		p.println(line)
	}
}
