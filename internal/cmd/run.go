package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/harrison/ralph/internal/claude"
	"github.com/harrison/ralph/internal/config"
	"github.com/harrison/ralph/internal/display"
	"github.com/harrison/ralph/internal/executor"
	"github.com/harrison/ralph/internal/models"
)

// Exit codes for run.
const (
	exitFailures    = 1
	exitAborted     = 2
	exitInterrupted = 130
)

// NewRunCommand creates the run command
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Work through the pending tasks in the task file",
		Long: `Run attempts every todo task in priority order (highest first, file
order on ties), one at a time, until the queue is empty or
--max-iterations tasks have been attempted.

Tasks left in_progress by an interrupted run are requeued first.
Only one run may work on a task file at a time.

Examples:
  ralph run
  ralph run -f backlog.json --on-error retry --max-retries 2
  ralph run --on-error pause --delay 0
  ralph run -n 5 --timeout 10m --dangerously-skip-permissions`,
		Args: cobra.NoArgs,
		RunE: runCommand,
	}

	addFileFlags(cmd)
	addInvokeFlags(cmd)
	cmd.Flags().String("delay", "", "Pause between tasks (e.g. 1s)")
	cmd.Flags().String("on-error", "", "Failure policy: skip, retry or pause")
	cmd.Flags().Int("max-retries", 0, "Retries per task under --on-error retry")
	cmd.Flags().String("retry-backoff", "", "Wait between retries (e.g. 1s)")
	cmd.Flags().String("log-dir", "", "Directory for run logs")
	cmd.Flags().Bool("no-file-log", false, "Do not write run logs to disk")

	return cmd
}

// runCommand implements the run command logic
func runCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	printer := display.NewPrinter(out)
	printer.Banner(Version)

	lock, err := acquireRunLock(cmd, cfg)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	st, err := loadStore(cfg, false)
	if err != nil {
		printer.Errorf("%v", err)
		return err
	}
	printer.TasksLoaded(len(st.Tasks()), cfg.TaskFile)

	noFileLog, _ := cmd.Flags().GetBool("no-file-log")
	log, closeLog := newRunLogger(out, cfg, !noFileLog)
	defer closeLog()

	hist := openHistory(cfg, log)
	if hist != nil {
		defer hist.Close()
	}

	invoker := claude.NewInvoker(cfg.ClaudePath)
	if invoker.Env, err = claude.LoadDotEnv(cfg.WorkingDir); err != nil {
		executor.GracefulWarn(log, "Ignoring .env in %s: %v", cfg.WorkingDir, err)
	}

	opts := []executor.MachineOption{executor.WithLogger(log)}
	if hist != nil {
		opts = append(opts, executor.WithRecorder(hist))
	}
	if cfg.OnError == models.PolicyPause {
		reader, err := newLineReader("", replHistoryFile(cfg))
		if err != nil {
			return err
		}
		defer reader.Close()
		opts = append(opts, executor.WithDecider(display.NewPauseDecider(reader, printer)))
	}

	runCfg := cfg.RunConfig()
	machine := executor.NewMachine(st, invoker, runCfg, opts...)
	runner := executor.NewRunner(st, machine, runCfg, log)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, runErr := runner.Run(ctx)
	if summary == nil {
		return runErr
	}
	if len(summary.Requeued) > 0 {
		display.WarnRequeued(summary.Requeued).Display(cmd.ErrOrStderr())
	}

	printer.SummaryTable(st.Tasks(), st.Results())
	printer.Statistics(summary.Stats, models.TotalDuration(st.Results()).Seconds())
	printer.RunOutcome(*summary)

	return runExitError(summary, runErr)
}

// runExitError maps how a run ended to the command's error.
func runExitError(summary *models.RunSummary, runErr error) error {
	switch {
	case summary.State == models.RunInterrupted:
		if runErr == nil {
			runErr = context.Canceled
		}
		return &ExitError{Code: exitInterrupted, Err: fmt.Errorf("run interrupted: %w", runErr)}
	case runErr != nil:
		return runErr
	case summary.State == models.RunAbortedByUser:
		return &ExitError{Code: exitAborted, Err: executor.ErrAborted}
	case len(summary.Failures) > 0:
		return &ExitError{Code: exitFailures, Err: fmt.Errorf("%d task(s) did not complete", len(summary.Failures))}
	}
	return nil
}

// replHistoryFile keeps prompt history in the project's .ralph directory.
func replHistoryFile(cfg *config.Config) string {
	if cfg.ProjectRoot == "" {
		return ""
	}
	dir, err := config.EnsureStateDir(cfg.ProjectRoot)
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "prompt_history")
}
