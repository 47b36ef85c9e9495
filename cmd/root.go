package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"discount-harvester/config"
	"discount-harvester/storage"
	"discount-harvester/utils"
)

var (
	cfg    *config.Config
	logger *utils.Logger
)

var rootCmd = &cobra.Command{
	Use:   "discount-harvester",
	Short: "Vehicle discount harvester and reconciler",
	Long: "Collects model prices and discounts from the configurator app and the public listing page, " +
		"then reconciles the two datasets of a date and flags disagreements for review.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()

		l, err := utils.NewLogger(cfg.LogLevel, cfg.LogFormat)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runDay parses a --date flag value, defaulting to today.
func runDay(date string) (time.Time, error) {
	if date == "" {
		now := time.Now()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local), nil
	}
	return storage.ParseDateStamp(date)
}
