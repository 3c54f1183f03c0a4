package claude

import (
	"strings"

	"github.com/harrison/ralph/internal/models"
)

// BuildPrompt renders the prompt for a task. The output depends only on the
// task's title, description and acceptance text.
func BuildPrompt(task models.Task) string {
	parts := []string{"Task: " + task.Title}

	if desc := strings.TrimSpace(task.Description); desc != "" {
		parts = append(parts, "\nDescription: "+desc)
	}
	if acc := strings.TrimSpace(task.Acceptance); acc != "" {
		parts = append(parts, "\nAcceptance criteria: "+acc)
	}

	return strings.Join(parts, "\n")
}
