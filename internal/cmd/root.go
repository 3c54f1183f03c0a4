package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for ralph
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ralph",
		Short: "Run a backlog of tasks through the Claude Code CLI",
		Long: `Ralph works through a task backlog one task at a time, handing each
task to the Claude Code CLI and recording the outcome.

Tasks live in a JSON file (prd.json by default) and move through
todo, in_progress, completed, failed and skipped. Failed invocations are
handled by the --on-error policy: skip the task, retry it, or pause and ask.

Configuration is loaded from .ralph/config.yaml, then .env and RALPH_*
environment variables. CLI flags override everything.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("config", "", "Path to config file (default: .ralph/config.yaml)")

	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewStatusCommand())
	cmd.AddCommand(NewTaskCommand())
	cmd.AddCommand(NewInteractiveCommand())
	cmd.AddCommand(NewContinuousCommand())
	cmd.AddCommand(NewHistoryCommand())

	return cmd
}
