package cmd

import (
	"encoding/json"
	"fmt"

	"basecamp/pkg/plan"
	"basecamp/pkg/settings"

	"github.com/spf13/cobra"
)

var (
	planExplain bool
	planJSON    bool
)

// planCmd represents the plan command
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Shows what an install would do without executing anything",
	Long: `The plan command validates the install against the current host state
and prints the ordered action sequence. No changes are made.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings()
		if err != nil {
			return err
		}
		// A dry run never removes anything, so prompt degrades to fail.
		if s.OnConflict == settings.ConflictPrompt {
			s.OnConflict = settings.ConflictFail
		}

		p, err := plan.New(s, host)
		if err != nil {
			return err
		}

		if planJSON {
			actionsForJSON := []actionForJSON{}
			for _, sa := range p.Actions() {
				desc := sa.Action.Describe()
				actionsForJSON = append(actionsForJSON, actionForJSON{
					Action:      sa.Action.Tag(),
					Synopsis:    desc.Synopsis,
					Explanation: desc.Explanation,
				})
			}
			jsonBytes, err := json.MarshalIndent(actionsForJSON, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal plan to JSON: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(jsonBytes))
			return nil
		}

		fmt.Fprint(cmd.OutOrStdout(), p.Describe(planExplain || s.Explain))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(planCmd)
	planCmd.Flags().BoolVar(&planExplain, "explain", false, "Show per-action explanations")
	planCmd.Flags().BoolVar(&planJSON, "json", false, "Output the plan in JSON format")
}
