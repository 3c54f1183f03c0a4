package display

import (
	"fmt"
	"time"

	"github.com/fatih/color"

	"github.com/harrison/ralph/internal/history"
)

const historyTimeLayout = "2006-01-02 15:04:05"

// HistoryEntries lists recorded attempts, newest first.
func (p *Printer) HistoryEntries(entries []history.Entry) {
	if len(entries) == 0 {
		p.Dimf("no recorded attempts")
		return
	}
	cols := []column{{"When", 19}, {"Run", 8}, {"Task", 6}, {"Title", 28}, {"Try", 3}, {"Result", 7}, {"Duration", 9}, {"Error", 30}}
	rows := make([][]cell, 0, len(entries))
	for _, e := range entries {
		result := cell{"ok", []color.Attribute{color.FgGreen}}
		if !e.Success {
			result = cell{"failed", []color.Attribute{color.FgRed}}
		}
		rows = append(rows, []cell{
			plain(e.ExecutedAt.Local().Format(historyTimeLayout)),
			plain(shortRunID(e.RunID)),
			plain(e.TaskID),
			plain(e.TaskTitle),
			plain(fmt.Sprint(e.Attempt)),
			result,
			plain(formatSeconds(e.Duration)),
			plain(e.Error),
		})
	}
	p.table(cols, rows)
}

// HistoryStats lists per-task attempt aggregates.
func (p *Printer) HistoryStats(stats []history.TaskStats) {
	if len(stats) == 0 {
		p.Dimf("no recorded attempts")
		return
	}
	cols := []column{{"Task", 6}, {"Title", 28}, {"Attempts", 8}, {"Success", 7}, {"Failed", 6}, {"Rate", 6}, {"Total", 9}, {"Last run", 19}}
	rows := make([][]cell, 0, len(stats))
	for _, s := range stats {
		rate := cell{text: fmt.Sprintf("%.0f%%", s.SuccessRate()*100)}
		switch {
		case s.SuccessRate() >= 0.8:
			rate.attrs = []color.Attribute{color.FgGreen}
		case s.SuccessRate() < 0.5:
			rate.attrs = []color.Attribute{color.FgRed}
		default:
			rate.attrs = []color.Attribute{color.FgYellow}
		}
		rows = append(rows, []cell{
			plain(s.TaskID),
			plain(s.TaskTitle),
			plain(fmt.Sprint(s.Attempts)),
			plain(fmt.Sprint(s.Successes)),
			plain(fmt.Sprint(s.Failures)),
			rate,
			plain(formatSeconds(s.TotalDuration)),
			plain(s.LastRun.Local().Format(historyTimeLayout)),
		})
	}
	p.table(cols, rows)
}

// HistoryRuns lists runs, newest first.
func (p *Printer) HistoryRuns(runs []history.RunInfo) {
	if len(runs) == 0 {
		p.Dimf("no recorded runs")
		return
	}
	cols := []column{{"Run", 36}, {"Started", 19}, {"Tasks", 5}, {"Attempts", 8}, {"Success", 7}}
	rows := make([][]cell, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []cell{
			plain(r.RunID),
			plain(r.StartedAt.Local().Format(historyTimeLayout)),
			plain(fmt.Sprint(r.Tasks)),
			plain(fmt.Sprint(r.Attempts)),
			plain(fmt.Sprint(r.Successes)),
		})
	}
	p.table(cols, rows)
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatSeconds(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
