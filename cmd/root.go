// Package cmd provides the argus command-line interface.
package cmd

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	infoColor    = color.New(color.FgCyan)
	headerColor  = color.New(color.FgBlue, color.Bold)
)

// NewRootCmd builds the argus command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "argus",
		Short: "Threat detection and campaign correlation engine",
		Long: `argus matches security events against Sigma detection rules and
correlates enriched threat events into attack campaigns.`,
		SilenceUsage: true,
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newScanCmd())
	root.AddCommand(newRulesCmd())
	root.AddCommand(newCampaignsCmd())
	return root
}
