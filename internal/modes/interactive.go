package modes

import (
	"context"
	"fmt"
	"strings"

	"github.com/harrison/ralph/internal/claude"
	"github.com/harrison/ralph/internal/display"
	"github.com/harrison/ralph/internal/models"
)

// Interactive runs each operator prompt once, up to MaxIterations prompts.
// The commands quit, exit, status and help are handled locally.
type Interactive struct {
	*session
}

// NewInteractive creates an interactive session. Ad-hoc tasks get ids i001,
// i002 and so on.
func NewInteractive(port claude.Port, cfg models.RunConfig, reader display.LineReader, printer *display.Printer, opts ...Option) *Interactive {
	return &Interactive{session: newSession(port, cfg, reader, printer, "i", opts)}
}

// Run reads prompts until the operator quits, closes the input, or the
// iteration cap is reached. A cancelled ctx ends the session with ctx.Err().
func (m *Interactive) Run(ctx context.Context) (Summary, error) {
	out := m.printer.Writer()
	fmt.Fprintln(out, "Interactive mode (type 'quit' to exit, 'status' for progress, 'help' for help)")

	for m.iteration < m.cfg.MaxIterations {
		input, exit, err := m.readInput(ctx, "task> ")
		if err != nil {
			return m.interrupted(), err
		}
		if exit || isQuit(input) {
			m.printer.Dimf("leaving interactive mode")
			break
		}

		switch strings.ToLower(input) {
		case "":
			continue
		case "status":
			m.showSummary("Session status", true)
			continue
		case "help":
			m.showHelp()
			continue
		}

		fmt.Fprintf(out, "\n▶ running %s%03d...\n", m.idPrefix, m.iteration+1)
		if err := m.execute(ctx, input); err != nil {
			return m.interrupted(), err
		}
	}

	if m.iteration >= m.cfg.MaxIterations {
		m.printer.Warnf("max iterations (%d) reached", m.cfg.MaxIterations)
	}
	if len(m.results) > 0 {
		m.showSummary("Session status", true)
	}
	return m.summary(), nil
}

func (m *Interactive) showHelp() {
	out := m.printer.Writer()
	fmt.Fprintln(out, "\nHelp")
	fmt.Fprintln(out, "  Type a task description and press Enter to run it")
	fmt.Fprintln(out, "  quit   - leave interactive mode")
	fmt.Fprintln(out, "  status - show session progress")
	fmt.Fprintln(out, "  help   - show this help")
}
