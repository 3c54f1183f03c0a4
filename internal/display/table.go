package display

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"github.com/harrison/ralph/internal/models"
)

type column struct {
	header string
	width  int
}

type cell struct {
	text  string
	attrs []color.Attribute
}

func plain(s string) cell { return cell{text: s} }

// fit truncates or pads s to exactly width terminal cells.
func fit(s string, width int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return runewidth.FillRight(runewidth.Truncate(s, width, "…"), width)
}

func (p *Printer) table(cols []column, rows [][]cell) {
	var header, rule []string
	for _, c := range cols {
		header = append(header, p.paint(fit(c.header, c.width), color.Bold))
		rule = append(rule, strings.Repeat("─", c.width))
	}
	p.println(strings.TrimRight(strings.Join(header, "  "), " "))
	p.println(strings.Join(rule, "  "))
	for _, row := range rows {
		parts := make([]string, len(cols))
		for i, c := range cols {
			if i < len(row) {
				parts[i] = p.paint(fit(row[i].text, c.width), row[i].attrs...)
			} else {
				parts[i] = fit("", c.width)
			}
		}
		p.println(strings.TrimRight(strings.Join(parts, "  "), " "))
	}
}

// statusCell renders a status with its symbol and color.
func statusCell(status models.TaskStatus) cell {
	switch status {
	case models.StatusCompleted:
		return cell{"✓ completed", []color.Attribute{color.FgGreen}}
	case models.StatusFailed:
		return cell{"✗ failed", []color.Attribute{color.FgRed}}
	case models.StatusSkipped:
		return cell{"↷ skipped", []color.Attribute{color.Faint}}
	case models.StatusInProgress:
		return cell{"… in progress", []color.Attribute{color.FgYellow}}
	default:
		return cell{"· todo", []color.Attribute{color.Faint}}
	}
}

// TaskTable lists tasks with status, priority and tags.
func (p *Printer) TaskTable(tasks []models.Task) {
	if len(tasks) == 0 {
		p.Dimf("no tasks")
		return
	}
	cols := []column{{"ID", 6}, {"Title", 30}, {"Status", 13}, {"Priority", 8}, {"Tags", 20}}
	rows := make([][]cell, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, []cell{
			plain(t.ID),
			plain(t.Title),
			statusCell(t.Status),
			plain(fmt.Sprint(t.Priority)),
			plain(strings.Join(t.Tags, ", ")),
		})
	}
	p.table(cols, rows)
}

// SummaryTable lists every task with the duration of its latest result.
func (p *Printer) SummaryTable(tasks []models.Task, results []models.TaskResult) {
	latest := models.LatestByTask(results)
	cols := []column{{"ID", 6}, {"Task", 30}, {"Status", 13}, {"Duration", 9}, {"Retries", 7}}
	rows := make([][]cell, 0, len(tasks))
	for _, t := range tasks {
		duration, retries := "-", "-"
		if r, ok := latest[t.ID]; ok {
			duration = fmt.Sprintf("%.1fs", r.Duration)
			retries = fmt.Sprint(r.RetryCount)
		}
		rows = append(rows, []cell{plain(t.ID), plain(t.Title), statusCell(t.Status), plain(duration), plain(retries)})
	}
	p.println()
	p.println(p.paint("Results", color.Bold))
	p.table(cols, rows)
}
