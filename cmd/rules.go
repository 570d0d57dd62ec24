package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"argus/detect"
	"argus/sigma"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRulesCmd() *cobra.Command {
	rules := &cobra.Command{
		Use:   "rules",
		Short: "Inspect and validate detection rules",
	}
	rules.AddCommand(newRulesValidateCmd())
	return rules
}

func newRulesValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <directory>",
		Short: "Parse and compile every rule file, reporting failures",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parser := sigma.NewParser(zap.NewNop().Sugar())
			out := cmd.OutOrStdout()

			var valid, invalid int
			err := filepath.Walk(args[0], func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if info.IsDir() {
					return nil
				}
				ext := filepath.Ext(path)
				if ext != ".yml" && ext != ".yaml" {
					return nil
				}

				loaded, err := parser.ParseFile(path)
				if err == nil {
					_, err = detect.CompileRule(loaded.Rule)
				}
				if err != nil {
					invalid++
					errorColor.Fprintf(out, "FAIL  %s\n", path)
					fmt.Fprintf(out, "      %v\n", err)
					return nil
				}
				valid++
				successColor.Fprintf(out, "OK    %s", path)
				fmt.Fprintf(out, "  (%s)\n", loaded.Rule.ID)
				return nil
			})
			if err != nil {
				return fmt.Errorf("failed to walk %s: %w", args[0], err)
			}

			fmt.Fprintln(out)
			infoColor.Fprintf(out, "%d valid, %d invalid\n", valid, invalid)
			if invalid > 0 {
				return fmt.Errorf("%d rule file(s) failed validation", invalid)
			}
			return nil
		},
	}
}
