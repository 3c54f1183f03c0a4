package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/harrison/ralph/internal/config"
	"github.com/harrison/ralph/internal/display"
	"github.com/harrison/ralph/internal/history"
)

// NewHistoryCommand creates the 'ralph history' command group
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded Claude invocations",
		Long: `Every invocation, retries included, is recorded in a SQLite database
(default .ralph/history.db). These commands read or clear it.`,
	}
	cmd.PersistentFlags().String("db", "", "History database path (default: .ralph/history.db)")

	cmd.AddCommand(newHistoryRecentCommand())
	cmd.AddCommand(newHistoryStatsCommand())
	cmd.AddCommand(newHistoryRunsCommand())
	cmd.AddCommand(newHistoryClearCommand())
	return cmd
}

// errNoHistory means the database has not been created yet.
var errNoHistory = errors.New("no history recorded")

// openHistoryDB opens the database for reading. It never creates one.
func openHistoryDB(cmd *cobra.Command) (*history.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	path, err := historyPath(cmd, cfg)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, errNoHistory
		}
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return history.NewStore(path)
}

func historyPath(cmd *cobra.Command, cfg *config.Config) (string, error) {
	db, _ := cmd.Flags().GetString("db")
	if db != "" {
		return db, nil
	}
	if cfg.History.DBPath == "" {
		return "", errors.New("history database path is not configured")
	}
	return cfg.History.DBPath, nil
}

// withHistory runs fn against the database, printing a notice instead of
// failing when nothing has been recorded.
func withHistory(cmd *cobra.Command, fn func(*history.Store, *display.Printer) error) error {
	printer := display.NewPrinter(cmd.OutOrStdout())
	h, err := openHistoryDB(cmd)
	if errors.Is(err, errNoHistory) {
		printer.Dimf("%v", err)
		return nil
	}
	if err != nil {
		return err
	}
	defer h.Close()
	return fn(h, printer)
}

func newHistoryRecentCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "recent [task-id]",
		Short: "Show the latest attempts, optionally for one task",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID := ""
			if len(args) == 1 {
				taskID = args[0]
			}
			return withHistory(cmd, func(h *history.Store, printer *display.Printer) error {
				entries, err := h.Recent(cmd.Context(), taskID, limit)
				if err != nil {
					return err
				}
				printer.HistoryEntries(entries)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Maximum number of attempts to show (0 for all)")
	return cmd
}

func newHistoryStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show attempt totals and success rate per task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(cmd, func(h *history.Store, printer *display.Printer) error {
				stats, err := h.Stats(cmd.Context())
				if err != nil {
					return err
				}
				printer.HistoryStats(stats)
				return nil
			})
		},
	}
}

func newHistoryRunsCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(cmd, func(h *history.Store, printer *display.Printer) error {
				runs, err := h.Runs(cmd.Context(), limit)
				if err != nil {
					return err
				}
				printer.HistoryRuns(runs)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 10, "Maximum number of runs to show (0 for all)")
	return cmd
}

func newHistoryClearCommand() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every recorded attempt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(cmd, func(h *history.Store, printer *display.Printer) error {
				if !yes && !confirmAction(cmd.InOrStdin(), cmd.OutOrStdout(), fmt.Sprintf("Delete all history in %s?", h.Path())) {
					printer.Dimf("cancelled")
					return nil
				}
				n, err := h.Clear(cmd.Context())
				if err != nil {
					return err
				}
				printer.Successf("deleted %d attempt(s)", n)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}
