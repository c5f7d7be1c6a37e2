package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var ingestYes bool

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Download the raw crash-record files",
	RunE: func(cmd *cobra.Command, args []string) error {
		pipe, closeStore, err := openPipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		confirm := func(dir string) (bool, error) {
			if ingestYes {
				return true, nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "create raw data directory %s? [y/N] ", dir)
			answer, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil {
				return false, err
			}
			answer = strings.ToLower(strings.TrimSpace(answer))
			return answer == "y" || answer == "yes", nil
		}

		result, err := pipe.Ingest(cmd.Context(), confirm)
		if err != nil {
			return err
		}

		zap.L().Info("ingest complete",
			zap.Int("files", len(result.Files)),
			zap.Int64("bytes", result.Bytes),
		)
		for _, f := range result.Files {
			fmt.Fprintln(cmd.OutOrStdout(), f)
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().BoolVarP(&ingestYes, "yes", "y", false, "create the raw data directory without asking")
	rootCmd.AddCommand(ingestCmd)
}
