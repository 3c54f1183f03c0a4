package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harrison/ralph/internal/display"
	"github.com/harrison/ralph/internal/models"
	"github.com/harrison/ralph/internal/parser"
	"github.com/harrison/ralph/internal/store"
)

// NewTaskCommand creates the 'ralph task' command group
func NewTaskCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage the task backlog",
	}
	cmd.AddCommand(newTaskAddCommand())
	cmd.AddCommand(newTaskListCommand())
	cmd.AddCommand(newTaskInitCommand())
	cmd.AddCommand(newTaskImportCommand())
	return cmd
}

func newTaskAddCommand() *cobra.Command {
	var (
		desc       string
		acceptance string
		priority   int
		tags       string
	)
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Append a task to the backlog",
		Long: `Append a todo task. The id is one more than the highest numeric id
in the file, zero padded to three digits. The task file is created if it
does not exist.

Examples:
  ralph task add "Create calculator.py" --desc "add/sub/mul/div" -p 10 --tags core,math`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			lock, err := acquireRunLock(cmd, cfg)
			if err != nil {
				return err
			}
			defer lock.Unlock()
			st, err := loadStore(cfg, true)
			if err != nil {
				return err
			}
			task, err := st.AddTask(args[0], desc, acceptance, priority, splitTags(tags))
			if err != nil {
				return fmt.Errorf("failed to add task: %w", err)
			}
			display.NewPrinter(cmd.OutOrStdout()).Successf("added task [%s] %s", task.ID, task.Title)
			return nil
		},
	}
	addFileFlags(cmd)
	cmd.Flags().StringVar(&desc, "desc", "", "Task description")
	cmd.Flags().StringVar(&acceptance, "acceptance", "", "Acceptance criteria")
	cmd.Flags().IntVarP(&priority, "priority", "p", 0, "Priority (higher runs first)")
	cmd.Flags().StringVar(&tags, "tags", "", "Comma separated tags")
	return cmd
}

func newTaskListCommand() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			printer := display.NewPrinter(cmd.OutOrStdout())
			st, err := loadStore(cfg, false)
			if err != nil {
				printer.Errorf("%v", err)
				return err
			}

			tasks := st.Tasks()
			if status != "" {
				s, err := models.ParseTaskStatus(status)
				if err != nil {
					return err
				}
				tasks = st.FilterByStatus(s)
			}
			printer.TaskTable(tasks)
			return nil
		},
	}
	addFileFlags(cmd)
	cmd.Flags().StringVarP(&status, "status", "s", "", "Only show tasks with this status")
	return cmd
}

func newTaskInitCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a sample task file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			lock, err := acquireRunLock(cmd, cfg)
			if err != nil {
				return err
			}
			defer lock.Unlock()
			out := cmd.OutOrStdout()
			printer := display.NewPrinter(out)

			if _, err := os.Stat(cfg.TaskFile); err == nil && !force {
				if !confirmAction(cmd.InOrStdin(), out, fmt.Sprintf("%s already exists. Overwrite?", cfg.TaskFile)) {
					printer.Dimf("cancelled")
					return nil
				}
			}

			st := store.New(cfg.TaskFile, cfg.ResultsFile)
			if err := st.CreateExampleFile(); err != nil {
				return fmt.Errorf("failed to create example file: %w", err)
			}
			printer.Successf("created example task file: %s", cfg.TaskFile)
			return nil
		},
	}
	addFileFlags(cmd)
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file without asking")
	return cmd
}

func newTaskImportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file.md|file.yaml>",
		Short: "Append tasks parsed from a Markdown or YAML backlog",
		Long: `Import appends every task found in a Markdown or YAML document.

Markdown: each level 2 heading is a task. **Priority**, **Tags** and
**Acceptance** lines set those fields; other paragraphs form the description.
YAML: a list of {title, description, acceptance, priority, tags}, either at
the top level or under a "tasks" key.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			specs, err := parser.ParseFile(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(specs) == 0 {
				display.NewPrinter(out).Warnf("no tasks found in %s", args[0])
				return nil
			}

			lock, err := acquireRunLock(cmd, cfg)
			if err != nil {
				return err
			}
			defer lock.Unlock()
			st, err := loadStore(cfg, true)
			if err != nil {
				return err
			}
			progress := display.NewProgressIndicator(out, args[0], len(specs))
			progress.Start()
			for _, spec := range specs {
				task, err := st.AddTask(spec.Title, spec.Description, spec.Acceptance, spec.Priority, spec.Tags)
				if err != nil {
					return fmt.Errorf("failed to add %q: %w", spec.Title, err)
				}
				progress.Step(task.ID, task.Title)
			}
			progress.Complete()
			return nil
		},
	}
	addFileFlags(cmd)
	return cmd
}

func splitTags(raw string) []string {
	var tags []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
