package display

import (
	"fmt"
	"io"
)

// ProgressIndicator manages multi-step progress display with ANSI colors
type ProgressIndicator struct {
	writer io.Writer
	total  int
	source string
	added  int
}

// NewProgressIndicator creates a progress indicator for importing total
// tasks from source.
func NewProgressIndicator(w io.Writer, source string, total int) *ProgressIndicator {
	return &ProgressIndicator{
		writer: w,
		total:  total,
		source: source,
	}
}

// Start displays the header message
func (p *ProgressIndicator) Start() {
	fmt.Fprintf(p.writer, "Importing tasks from %s:\n", p.source)
}

// Step displays progress for one imported task: [N/Total] id title (cyan)
func (p *ProgressIndicator) Step(id, title string) {
	p.added++
	fmt.Fprintf(p.writer, "\x1b[36m  [%d/%d] %s %s\x1b[0m\n", p.added, p.total, id, title)
}

// Complete displays success message with green checkmark
func (p *ProgressIndicator) Complete() {
	fmt.Fprintf(p.writer, "\x1b[32m✓\x1b[0m Imported %d task(s)\n", p.added)
}
