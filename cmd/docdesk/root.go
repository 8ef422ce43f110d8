package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docdesk/internal/config"
)

// configPath is set by the persistent --config flag
var configPath string

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "docdesk",
		Short: "Compliance document desk",
		Long: `docdesk indexes compliance documents from SharePoint or a local folder,
reads document requests from an IMAP inbox, drafts replies with the matching
documents attached and sends them once a reviewer approves.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("DOCDESK_CONFIG"),
		"Path to the YAML config file (or set DOCDESK_CONFIG)")

	rootCmd.AddCommand(
		newServeCmd(),
		newIndexCmd(),
		newIntakeCmd(),
		newRetryDraftsCmd(),
		newSchedulesCmd(),
		newHashPasswordCmd(),
	)
	return rootCmd
}

// loadConfig reads the configuration and installs the JSON default logger.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel()}))
	slog.SetDefault(logger)
	return cfg, logger, nil
}
