package cmd

import (
	"fmt"
	"strings"

	"argus/bootstrap"
	"argus/core"

	"github.com/spf13/cobra"
)

func newCampaignsCmd() *cobra.Command {
	campaigns := &cobra.Command{
		Use:   "campaigns",
		Short: "Inspect correlated attack campaigns",
	}
	campaigns.AddCommand(newCampaignsListCmd())
	campaigns.AddCommand(newCampaignsStatusCmd())
	return campaigns
}

func newCampaignsListCmd() *cobra.Command {
	var status string

	list := &cobra.Command{
		Use:   "list",
		Short: "List campaigns, newest activity first",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap.NewApp(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to initialize: %w", err)
			}
			defer app.Shutdown()

			campaigns, err := app.Store.ListCampaigns(cmd.Context(), core.CampaignStatus(status))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(campaigns) == 0 {
				infoColor.Fprintln(out, "No campaigns found")
				return nil
			}

			headerColor.Fprintf(out, "%-22s %-14s %-8s %-7s %-5s %s\n",
				"CAMPAIGN", "TYPE", "SEVERITY", "EVENTS", "IPS", "NAME")
			for _, campaign := range campaigns {
				fmt.Fprintf(out, "%-22s %-14s %-8s %-7d %-5d %s\n",
					campaign.CampaignID, campaign.CampaignType, campaign.Severity,
					campaign.EventCount, campaign.UniqueIPs, campaign.Name)
			}
			return nil
		},
	}
	list.Flags().StringVar(&status, "status", "", "filter by status (active, resolved, false_positive)")
	return list
}

func newCampaignsStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <campaign-id> <active|resolved|false_positive>",
		Short: "Set a campaign's lifecycle status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status := core.CampaignStatus(strings.ToLower(args[1]))
			switch status {
			case core.CampaignStatusActive, core.CampaignStatusResolved, core.CampaignStatusFalsePositive:
			default:
				return fmt.Errorf("invalid status %q", args[1])
			}

			app, err := bootstrap.NewApp(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to initialize: %w", err)
			}
			defer app.Shutdown()

			if err := app.Store.SetCampaignStatus(cmd.Context(), args[0], status); err != nil {
				return err
			}
			successColor.Fprintf(cmd.OutOrStdout(), "Campaign %s is now %s\n", args[0], status)
			return nil
		},
	}
}
