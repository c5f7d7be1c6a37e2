package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var accuracyCmd = &cobra.Command{
	Use:   "accuracy",
	Short: "Evaluate the current model on the held-out test set",
	RunE: func(cmd *cobra.Command, args []string) error {
		pipe, closeStore, err := openPipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		eval, err := pipe.Accuracy(cmd.Context(), "")
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "accuracy: %.4f on %d test rows\n", eval.Accuracy, eval.Rows)
		fmt.Fprintln(out, "confusion (rows actual, columns predicted):")
		fmt.Fprintf(out, "              not_severe  severe\n")
		fmt.Fprintf(out, "  not_severe  %10d  %6d\n", eval.Confusion[0][0], eval.Confusion[0][1])
		fmt.Fprintf(out, "  severe      %10d  %6d\n", eval.Confusion[1][0], eval.Confusion[1][1])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(accuracyCmd)
}
