package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roadsafe/crash-cli/internal/model"
	"github.com/roadsafe/crash-cli/internal/predictor"
)

var predictFile string

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Score a feature vector against the current model",
	Long: `Score a feature vector against the current model.

With --file the vector is read from a JSON file mapping feature names to
values. Without it the command prompts for each feature on stdin; optional
features accept an empty answer and fall back to their default.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := predictor.Load(cfg.Data.ModelPath)
		if err != nil {
			return err
		}

		var pred model.Prediction
		if predictFile != "" {
			pred, err = p.PredictFile(predictFile)
		} else {
			var values map[string]float64
			values, err = predictor.PromptValues(cmd.InOrStdin(), cmd.OutOrStdout(), p.Schema())
			if err != nil {
				return err
			}
			pred, err = p.Predict(values)
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "prediction: %s (class %d, confidence %.2f)\n",
			pred.Label, pred.Class, pred.Confidence)
		for label, share := range pred.Probabilities {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s: %.4f\n", label, share)
		}
		return nil
	},
}

func init() {
	predictCmd.Flags().StringVarP(&predictFile, "file", "f", "", "JSON file with feature values")
	rootCmd.AddCommand(predictCmd)
}
