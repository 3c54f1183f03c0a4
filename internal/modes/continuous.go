package modes

import (
	"context"
	"fmt"

	"github.com/harrison/ralph/internal/claude"
	"github.com/harrison/ralph/internal/display"
	"github.com/harrison/ralph/internal/models"
)

// continuousOutputLimit keeps repeated output previews short.
const continuousOutputLimit = 500

// Continuous chains invocations: after each one the operator may press Enter
// to repeat the prompt, type a new prompt, or quit.
type Continuous struct {
	*session
	initial string
}

// NewContinuous creates a continuous session. An empty initial prompt is
// asked for on start. Ad-hoc tasks get ids c001, c002 and so on.
func NewContinuous(port claude.Port, cfg models.RunConfig, initial string, reader display.LineReader, printer *display.Printer, opts ...Option) *Continuous {
	s := newSession(port, cfg, reader, printer, "c", opts)
	s.outLimit = continuousOutputLimit
	return &Continuous{session: s, initial: initial}
}

// Run executes until quit, end of input, or MaxIterations. cfg.Delay is
// waited between iterations. A cancelled ctx ends the session with ctx.Err().
func (m *Continuous) Run(ctx context.Context) (Summary, error) {
	out := m.printer.Writer()
	fmt.Fprintln(out, "Continuous mode (Ctrl+C to stop)")

	current := m.initial
	if current == "" {
		input, exit, err := m.readInput(ctx, "initial task> ")
		if err != nil {
			return m.interrupted(), err
		}
		if exit || input == "" {
			m.printer.Dimf("no task entered, exiting")
			return m.summary(), nil
		}
		current = input
	}

	for m.iteration < m.cfg.MaxIterations {
		fmt.Fprintf(out, "\n▶ [%d] %s\n", m.iteration+1, m.adHocTask(current).Title)
		if err := m.execute(ctx, current); err != nil {
			return m.interrupted(), err
		}
		if m.iteration >= m.cfg.MaxIterations {
			m.printer.Warnf("max iterations (%d) reached", m.cfg.MaxIterations)
			break
		}

		m.printer.Dimf("Enter to repeat / type a new task / 'quit' to exit")
		input, exit, err := m.readInput(ctx, "next> ")
		if err != nil {
			return m.interrupted(), err
		}
		if exit || isQuit(input) {
			m.printer.Dimf("leaving continuous mode")
			break
		}
		if input != "" {
			current = input
		}

		if err := m.sleep(ctx, m.cfg.Delay); err != nil {
			return m.interrupted(), err
		}
	}

	if len(m.results) > 0 {
		m.showSummary("Session summary", false)
	}
	return m.summary(), nil
}
