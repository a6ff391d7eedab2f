package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/solatis/eventfilter/internal/core/api"
	"github.com/solatis/eventfilter/internal/rules"
	"github.com/spf13/cobra"
)

var rulesCmd = &cobra.Command{
	Use:   "rules [file]",
	Short: "Print the compiled rule table as JSON",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) == 1 {
			path = args[0]
		} else {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			path = cfg.Filter.RulesFile
		}

		source, err := loadRuleSource(path)
		if err != nil {
			return err
		}
		table := rules.Compile(source)

		if etag, _ := cmd.Flags().GetBool("etag"); etag {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), api.ComputeETag(table))
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(table)
	},
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.Flags().Bool("etag", false, "print only the table etag")
}
