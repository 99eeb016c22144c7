package main

import (
	"github.com/spf13/cobra"

	"tableread/internal/server"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var development bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the tableread session server",
		Long: "Serve hosts the authoritative session store: screenplay ingestion, the\n" +
			"versioned casting documents every client synchronizes against, and the\n" +
			"commit event feed. One instance per data directory.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return server.Run(cmd.Context(), cfg, server.Options{
				LogLevel:    logLevel,
				Development: development,
			})
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	cmd.Flags().BoolVar(&development, "dev", false, "Verbose console logging for development")
	return cmd
}
