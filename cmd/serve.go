package cmd

import (
	"fmt"

	"argus/bootstrap"

	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the detection service with scheduled campaign scans",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap.NewApp(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to initialize: %w", err)
			}
			if err := app.Start(); err != nil {
				app.Shutdown()
				return fmt.Errorf("failed to start: %w", err)
			}
			app.WaitForShutdown()
			app.Shutdown()
			return nil
		},
	}
}
