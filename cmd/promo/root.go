package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"promo-pipelines/configs"
	"promo-pipelines/logger"
)

// configKey stores the loaded environment in the command context
type configKey struct{}

var logLevel string

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "promo",
		Short: "Upload promotion campaigns to the back office",
		Long: `promo reads campaign rows from the spreadsheet, expands them per sales
channel, writes one upload file per channel and period, and registers each
file with the back office. Rows are marked processed only when every file of
the batch was accepted; failed files can be retried with "promo resume".`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "pipelines" || cmd.Name() == "completion" {
				return nil
			}
			cfg, err := configs.Load()
			if err != nil {
				return err
			}
			level := cfg.LogLevel
			if logLevel != "" {
				level = logLevel
			}
			// stdout is reserved for tables
			logger.InitWriter(os.Stderr, level)
			cmd.SetContext(context.WithValue(cmd.Context(), configKey{}, cfg))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (default: LOG_LEVEL)")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newResumeCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newLookupCmd())
	rootCmd.AddCommand(newSheetsCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newPipelinesCmd())
	return rootCmd
}

func envFrom(cmd *cobra.Command) (*configs.Env, error) {
	cfg, ok := cmd.Context().Value(configKey{}).(*configs.Env)
	if !ok || cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	return cfg, nil
}
