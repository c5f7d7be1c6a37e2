package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roadsafe/crash-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "crash-cli",
	Short: "Road crash severity model pipeline",
	Long:  "Downloads the national crash-record files, prepares the dataset, trains the severity classifier, serves predictions, and keeps the model fresh on a schedule.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
