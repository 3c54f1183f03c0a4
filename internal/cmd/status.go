package cmd

import (
	"github.com/spf13/cobra"

	"github.com/harrison/ralph/internal/display"
)

// NewStatusCommand creates the status command
func NewStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show task counts by status",
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
			printer.StatusReport(st.Statistics())
			return nil
		},
	}
	addFileFlags(cmd)
	return cmd
}
