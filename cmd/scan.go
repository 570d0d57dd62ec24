package cmd

import (
	"fmt"

	"argus/bootstrap"

	"github.com/spf13/cobra"
)

func newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Run one clustering scan and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap.NewApp(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to initialize: %w", err)
			}
			defer app.Shutdown()

			summary, err := app.Engine.ScanForCampaigns(cmd.Context())
			if err != nil {
				errorColor.Fprintln(cmd.OutOrStdout(), "Scan failed")
				return err
			}

			headerColor.Fprintln(cmd.OutOrStdout(), "Scan complete")
			fmt.Fprintf(cmd.OutOrStdout(), "  New campaigns:     %d\n", summary.NewCampaigns)
			fmt.Fprintf(cmd.OutOrStdout(), "  Updated campaigns: %d\n", summary.UpdatedCampaigns)
			fmt.Fprintf(cmd.OutOrStdout(), "  Events correlated: %d\n", summary.EventsCorrelated)
			fmt.Fprintf(cmd.OutOrStdout(), "  Duration:          %s\n", summary.Duration)
			return nil
		},
	}
}
