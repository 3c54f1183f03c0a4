package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/ralph/internal/config"
	"github.com/harrison/ralph/internal/display"
	"github.com/harrison/ralph/internal/executor"
	"github.com/harrison/ralph/internal/filelock"
	"github.com/harrison/ralph/internal/history"
	"github.com/harrison/ralph/internal/logger"
	"github.com/harrison/ralph/internal/models"
	"github.com/harrison/ralph/internal/store"
)

// ExitError carries a process exit code alongside the error.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode returns the exit code for err: 0 for nil, the ExitError code when
// present, 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}

// newLineReader opens the operator prompt. Tests replace it.
var newLineReader = func(prompt, historyFile string) (display.LineReader, error) {
	return display.NewLineReader(prompt, historyFile)
}

// acquireRunLock takes the run lock on the task file. Every command that
// rewrites the task file holds it, so edits cannot be lost under a run's
// in-memory copy. A held lock is reported with a warning box.
func acquireRunLock(cmd *cobra.Command, cfg *config.Config) (*filelock.FileLock, error) {
	lock, err := filelock.AcquireRunLock(cfg.TaskFile)
	if err != nil {
		if errors.Is(err, filelock.ErrLocked) {
			display.Warning{
				Title:      "Another run is already working on this task file",
				Items:      []string{cfg.TaskFile},
				ItemLabel:  "file",
				Suggestion: "Wait for it to finish, or stop it before changing the task file.",
			}.Display(cmd.ErrOrStderr())
		}
		return nil, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	return lock, nil
}

// addFileFlags registers the task and results file flags.
func addFileFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("file", "f", "", "Task file (default: prd.json)")
	cmd.Flags().String("results", "", "Results file (default: ralph_results.json)")
}

// addInvokeFlags registers the flags that shape a Claude invocation.
func addInvokeFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("dir", "d", "", "Working directory for the Claude CLI")
	cmd.Flags().IntP("max-iterations", "n", 0, "Maximum number of tasks to attempt")
	cmd.Flags().String("timeout", "", "Per-invocation timeout (e.g. 300s, 5m)")
	cmd.Flags().Bool("dangerously-skip-permissions", false, "Pass --dangerously-skip-permissions to the Claude CLI")
	cmd.Flags().String("claude-path", "", "Path to the claude binary")
	cmd.Flags().String("log-level", "", "Log level: trace, debug, info, warn, error")
	cmd.Flags().Bool("no-history", false, "Do not record attempts in the history database")
}

// loadConfig resolves configuration for cmd: defaults, the config file, .env
// and RALPH_* variables, then any flags the command defines and the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	root, err := config.FindProjectRoot(wd)
	if err != nil {
		return nil, err
	}

	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		configPath = filepath.Join(root, config.DefaultConfigPath)
	}
	cfg, err := config.Load(configPath, root)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Resolve(root)

	overrides, err := overridesFromFlags(cmd)
	if err != nil {
		return nil, err
	}
	cfg.MergeWithFlags(overrides)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// overridesFromFlags collects the flags the user actually set.
func overridesFromFlags(cmd *cobra.Command) (config.Overrides, error) {
	var o config.Overrides
	flags := cmd.Flags()
	changed := func(name string) bool {
		return flags.Lookup(name) != nil && flags.Changed(name)
	}
	str := func(name string) *string {
		if !changed(name) {
			return nil
		}
		v, _ := flags.GetString(name)
		return &v
	}
	integer := func(name string) *int {
		if !changed(name) {
			return nil
		}
		v, _ := flags.GetInt(name)
		return &v
	}
	boolean := func(name string) *bool {
		if !changed(name) {
			return nil
		}
		v, _ := flags.GetBool(name)
		return &v
	}
	duration := func(name string) (*time.Duration, error) {
		if !changed(name) {
			return nil, nil
		}
		raw, _ := flags.GetString(name)
		d, err := config.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid --%s: %w", name, err)
		}
		return &d, nil
	}

	o.TaskFile = str("file")
	o.ResultsFile = str("results")
	o.WorkingDir = str("dir")
	o.ClaudePath = str("claude-path")
	o.LogLevel = str("log-level")
	o.LogDir = str("log-dir")
	o.MaxIterations = integer("max-iterations")
	o.MaxRetries = integer("max-retries")
	o.SkipPermissions = boolean("dangerously-skip-permissions")
	o.NoHistory = boolean("no-history")

	var err error
	if o.Delay, err = duration("delay"); err != nil {
		return o, err
	}
	if o.Timeout, err = duration("timeout"); err != nil {
		return o, err
	}
	if o.RetryBackoff, err = duration("retry-backoff"); err != nil {
		return o, err
	}

	if changed("on-error") {
		raw, _ := flags.GetString("on-error")
		policy, err := models.ParseErrorPolicy(raw)
		if err != nil {
			return o, fmt.Errorf("invalid --on-error: %w", err)
		}
		o.OnError = &policy
	}
	return o, nil
}

// loadStore opens the backlog. A missing task file yields an empty store
// when allowMissing is set.
func loadStore(cfg *config.Config, allowMissing bool) (*store.Store, error) {
	st := store.New(cfg.TaskFile, cfg.ResultsFile)
	if _, err := st.Load(); err != nil {
		if allowMissing && errors.Is(err, store.ErrNotFound) {
			st.SetTasks(nil)
			return st, nil
		}
		return nil, err
	}
	return st, nil
}

// openHistory opens the attempt database, or returns nil when history is
// disabled or unavailable. Failures are reported through log and never stop
// the caller.
func openHistory(cfg *config.Config, log executor.Logger) *history.Store {
	if !cfg.History.Enabled {
		return nil
	}
	h, err := history.NewStore(cfg.History.DBPath)
	if err != nil {
		executor.GracefulWarn(log, "History disabled: %v", err)
		return nil
	}
	return h
}

// newRunLogger builds the console logger and, unless disabled, the file
// logger. The returned close func must be called when the run ends.
func newRunLogger(out io.Writer, cfg *config.Config, fileLog bool) (executor.Logger, func()) {
	console := logger.NewConsoleLogger(out, cfg.LogLevel)
	if !fileLog || cfg.LogDir == "" {
		return console, func() {}
	}
	fl, err := logger.NewFileLogger(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		console.Warnf("File logging disabled: %v", err)
		return console, func() {}
	}
	return logger.NewMultiLogger(console, fl), func() { fl.Close() }
}

// confirmAction asks a yes/no question on in.
func confirmAction(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", question)
	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		return false
	}
	response := strings.TrimSpace(strings.ToLower(scanner.Text()))
	return response == "y" || response == "yes"
}
