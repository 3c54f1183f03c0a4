// Package queue derives the execution order of a backlog.
package queue

import (
	"sort"

	"github.com/harrison/ralph/internal/models"
)

// PendingInOrder returns the todo tasks, highest priority first. Tasks with
// equal priority keep their position in the input.
func PendingInOrder(tasks []models.Task) []models.Task {
	type entry struct {
		task  models.Task
		index int
	}

	pending := make([]entry, 0, len(tasks))
	for i, t := range tasks {
		if t.Status == models.StatusTodo {
			pending = append(pending, entry{task: t.Clone(), index: i})
		}
	}

	// The index tie-break makes the order total, so it does not depend on
	// the stability of the sort implementation.
	sort.Slice(pending, func(a, b int) bool {
		if pending[a].task.Priority != pending[b].task.Priority {
			return pending[a].task.Priority > pending[b].task.Priority
		}
		return pending[a].index < pending[b].index
	})

	out := make([]models.Task, len(pending))
	for i, e := range pending {
		out[i] = e.task
	}
	return out
}
