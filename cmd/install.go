package cmd

import (
	"fmt"

	"basecamp/pkg/log"
	"basecamp/pkg/plan"
	"basecamp/pkg/settings"

	"github.com/spf13/cobra"
)

var (
	installNoConfirm bool
	installExplain   bool
	installReceipt   string
)

// installCmd represents the install command
var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Installs the basecamp distribution onto this host",
	Long: `The install command plans the full sequence of system changes, shows
it, and executes it in order. If any step fails, every completed step
is rolled back. On success the completed steps are written to a
receipt from which 'basecamp revert' can undo the install later.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := cmd.Context().Value("logger").(log.Logger)

		s, err := loadSettings()
		if err != nil {
			return err
		}

		// The engine itself never prompts; a prompt policy is resolved
		// here, once, before planning.
		if s.OnConflict == settings.ConflictPrompt {
			force, err := confirm(cmd, "Remove conflicting destination files if any are found?")
			if err != nil {
				return err
			}
			if force {
				s.OnConflict = settings.ConflictForce
			} else {
				s.OnConflict = settings.ConflictFail
			}
		}

		p, err := plan.New(s, host)
		if err != nil {
			return err
		}

		fmt.Fprint(cmd.OutOrStdout(), p.Describe(installExplain || s.Explain))

		if !installNoConfirm {
			ok, err := confirm(cmd, "Proceed with the install?")
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Okay, didn't do anything!")
				return nil
			}
		}

		receipt, err := p.Install(host, logger)
		if err != nil {
			return err
		}

		if err := receipt.Save(host.Fs, installReceipt); err != nil {
			return err
		}
		logger.Info("Wrote receipt", "path", installReceipt)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(installCmd)
	installCmd.Flags().BoolVar(&installNoConfirm, "no-confirm", false, "Skip the confirmation prompt")
	installCmd.Flags().BoolVar(&installExplain, "explain", false, "Show per-action explanations")
	installCmd.Flags().StringVar(&installReceipt, "receipt", plan.DefaultReceiptPath, "Where to write the install receipt")
}
