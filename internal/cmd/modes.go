package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/harrison/ralph/internal/claude"
	"github.com/harrison/ralph/internal/config"
	"github.com/harrison/ralph/internal/display"
	"github.com/harrison/ralph/internal/executor"
	"github.com/harrison/ralph/internal/logger"
	"github.com/harrison/ralph/internal/modes"
)

// NewInteractiveCommand creates the interactive command
func NewInteractiveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "interactive",
		Aliases: []string{"i"},
		Short:   "Run ad-hoc prompts one at a time",
		Long: `Interactive mode reads a prompt, runs it through the Claude CLI once and
shows the result. The task file is not touched.

Commands at the prompt: status, help, quit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMode(cmd, func(s *modeSetup) (modes.Summary, error) {
				return modes.NewInteractive(s.port, s.cfg.RunConfig(), s.reader, s.printer, s.opts...).Run(s.ctx)
			})
		},
	}
	addInvokeFlags(cmd)
	return cmd
}

// NewContinuousCommand creates the continuous command
func NewContinuousCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "continuous [initial task]",
		Aliases: []string{"c"},
		Short:   "Chain prompts, repeating the last one on Enter",
		Long: `Continuous mode runs a prompt, then asks for the next one. Pressing
Enter repeats the previous prompt; 'quit' ends the session. The task file is
not touched.

Examples:
  ralph continuous "Fix the failing tests"
  ralph continuous -n 5 --delay 2s`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			initial := ""
			if len(args) == 1 {
				initial = args[0]
			}
			return runMode(cmd, func(s *modeSetup) (modes.Summary, error) {
				return modes.NewContinuous(s.port, s.cfg.RunConfig(), initial, s.reader, s.printer, s.opts...).Run(s.ctx)
			})
		},
	}
	addInvokeFlags(cmd)
	cmd.Flags().String("delay", "", "Pause between iterations (e.g. 1s)")
	return cmd
}

// modeSetup is what both modes need from the command line.
type modeSetup struct {
	ctx     context.Context
	cfg     *config.Config
	port    claude.Port
	reader  display.LineReader
	printer *display.Printer
	opts    []modes.Option
}

// runMode wires configuration, the invoker, the prompt and history for a
// mode and runs it. An interrupt exits with 130.
func runMode(cmd *cobra.Command, run func(*modeSetup) (modes.Summary, error)) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	printer := display.NewPrinter(out)
	printer.Banner(Version)

	// outcomes are already printed; the console only carries warnings
	warn := logger.NewConsoleLogger(cmd.ErrOrStderr(), "warn")
	var log executor.Logger = executor.NoOpLogger{}
	if fl, err := logger.NewFileLogger(cfg.LogDir, cfg.LogLevel); err != nil {
		warn.Warnf("File logging disabled: %v", err)
	} else {
		defer fl.Close()
		log = fl
	}

	hist := openHistory(cfg, warn)
	if hist != nil {
		defer hist.Close()
	}

	invoker := claude.NewInvoker(cfg.ClaudePath)
	if invoker.Env, err = claude.LoadDotEnv(cfg.WorkingDir); err != nil {
		executor.GracefulWarn(warn, "Ignoring .env in %s: %v", cfg.WorkingDir, err)
	}

	reader, err := newLineReader("", replHistoryFile(cfg))
	if err != nil {
		return err
	}
	defer reader.Close()

	opts := []modes.Option{modes.WithLogger(log)}
	if hist != nil {
		opts = append(opts, modes.WithRecorder(hist))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := run(&modeSetup{
		ctx:     ctx,
		cfg:     cfg,
		port:    invoker,
		reader:  reader,
		printer: printer,
		opts:    opts,
	})
	if err != nil {
		if summary.Interrupted || errors.Is(err, context.Canceled) {
			return &ExitError{Code: exitInterrupted, Err: err}
		}
		return err
	}
	return nil
}
