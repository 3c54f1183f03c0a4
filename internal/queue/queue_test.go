package queue

import (
	"math/rand"
	"testing"

	"github.com/harrison/ralph/internal/models"
)

func ids(tasks []models.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestPendingInOrder(t *testing.T) {
	tests := []struct {
		name  string
		tasks []models.Task
		want  []string
	}{
		{
			name: "filters non todo",
			tasks: []models.Task{
				{ID: "001", Status: models.StatusCompleted, Priority: 9},
				{ID: "002", Status: models.StatusTodo, Priority: 1},
				{ID: "003", Status: models.StatusFailed, Priority: 9},
				{ID: "004", Status: models.StatusInProgress, Priority: 9},
				{ID: "005", Status: models.StatusSkipped, Priority: 9},
			},
			want: []string{"002"},
		},
		{
			name: "priority descending",
			tasks: []models.Task{
				{ID: "001", Priority: 1},
				{ID: "002", Priority: 10},
				{ID: "003", Priority: 5},
			},
			want: []string{"002", "003", "001"},
		},
		{
			name: "ties keep file order",
			tasks: []models.Task{
				{ID: "c", Priority: 5},
				{ID: "a", Priority: 5},
				{ID: "x", Priority: 7},
				{ID: "b", Priority: 5},
				{ID: "n", Priority: -2},
			},
			want: []string{"x", "c", "a", "b", "n"},
		},
		{
			name:  "empty",
			tasks: nil,
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(PendingInOrder(tt.tasks))
			if !equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPendingInOrder_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	statuses := models.AllStatuses

	for round := 0; round < 200; round++ {
		n := rng.Intn(20)
		tasks := make([]models.Task, n)
		for i := range tasks {
			tasks[i] = models.Task{
				ID:       string(rune('A'+i%26)) + string(rune('a'+i/26)),
				Status:   statuses[rng.Intn(len(statuses))],
				Priority: rng.Intn(4),
			}
		}

		got := PendingInOrder(tasks)
		position := make(map[string]int, n)
		for i, task := range tasks {
			position[task.ID] = i
		}

		todo := 0
		for _, task := range tasks {
			if task.Status == models.StatusTodo {
				todo++
			}
		}
		if len(got) != todo {
			t.Fatalf("round %d: got %d tasks, want %d", round, len(got), todo)
		}

		for i, task := range got {
			if task.Status != models.StatusTodo {
				t.Fatalf("round %d: non-todo task %s returned", round, task.ID)
			}
			if i == 0 {
				continue
			}
			prev := got[i-1]
			if prev.Priority < task.Priority {
				t.Fatalf("round %d: priority order broken at %d", round, i)
			}
			if prev.Priority == task.Priority && position[prev.ID] > position[task.ID] {
				t.Fatalf("round %d: tie order broken at %d", round, i)
			}
		}
	}
}

func TestPendingInOrder_DoesNotAliasInput(t *testing.T) {
	tasks := []models.Task{{ID: "001", Tags: []string{"a"}}}
	got := PendingInOrder(tasks)
	got[0].Tags[0] = "changed"
	if tasks[0].Tags[0] != "a" {
		t.Error("result shares tag slice with input")
	}
}
