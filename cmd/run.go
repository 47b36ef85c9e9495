package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"discount-harvester/services"
	"discount-harvester/utils"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Harvest both sources, reconcile them and print a summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		day, err := runDay("")
		if err != nil {
			return err
		}

		report, err := runAll(ctx, day, logger)
		if report != nil {
			summary := services.NewSummaryService(os.Stdout)
			summary.Print(summary.Generate(report))
		}
		return err
	},
}

// runAll builds a fresh environment logging to logger and runs every stage.
func runAll(ctx context.Context, day time.Time, logger utils.EventSink) (*services.RunReport, error) {
	brands, err := loadBrands(cfg)
	if err != nil {
		return nil, err
	}

	e := newEnv(cfg, logger)
	defer e.Close()

	p, b, err := e.pipeline(ctx)
	if err != nil {
		return nil, err
	}
	defer b.Close()

	return p.RunAll(ctx, day, brands)
}

func init() {
	rootCmd.AddCommand(runCmd)
}
