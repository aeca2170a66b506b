package cmd

import (
	"fmt"

	"basecamp/pkg/log"
	"basecamp/pkg/plan"

	"github.com/spf13/cobra"
)

var revertNoConfirm bool

// revertCmd represents the revert command
var revertCmd = &cobra.Command{
	Use:   "revert [receipt]",
	Short: "Reverts a previous install from its receipt",
	Long: `The revert command loads the receipt written by a successful install
and undoes every recorded action in reverse order. It does not
re-plan against the current host state; the receipt alone drives the
revert. Failures in individual steps do not stop the walk and are all
reported at the end.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := cmd.Context().Value("logger").(log.Logger)

		receiptPath := plan.DefaultReceiptPath
		if len(args) == 1 {
			receiptPath = args[0]
		}

		receipt, err := plan.LoadReceipt(host.Fs, receiptPath)
		if err != nil {
			return err
		}

		fmt.Fprint(cmd.OutOrStdout(), receipt.Describe(true))

		if !revertNoConfirm {
			ok, err := confirm(cmd, "Proceed with the revert?")
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Okay, didn't do anything!")
				return nil
			}
		}

		if err := receipt.Revert(host, logger); err != nil {
			return err
		}
		logger.Info("Revert complete", "receipt", receiptPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(revertCmd)
	revertCmd.Flags().BoolVar(&revertNoConfirm, "no-confirm", false, "Skip the confirmation prompt")
}
