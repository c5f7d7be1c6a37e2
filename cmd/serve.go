package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roadsafe/crash-cli/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		pipe, closeStore, err := openPipeline(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		if cmd.Flags().Changed("port") {
			cfg.Server.Port = servePort
		}
		return server.New(cfg, pipe).Run(ctx)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "port to listen on")
	rootCmd.AddCommand(serveCmd)
}
