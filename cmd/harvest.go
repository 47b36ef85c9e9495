package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var harvestDate string

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Collect discounted models from the configurator app",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		day, err := runDay(harvestDate)
		if err != nil {
			return err
		}
		brands, err := loadBrands(cfg)
		if err != nil {
			return err
		}

		e := newEnv(cfg, logger)
		defer e.Close()

		p, b, err := e.pipeline(ctx)
		if err != nil {
			return err
		}
		defer b.Close()

		results, err := p.Harvest(ctx, day, brands)
		if err != nil {
			return err
		}
		total := 0
		for _, r := range results {
			total += len(r.Records)
		}
		logger.Info("[harvest] %d new rows across %d brands", total, len(results))
		return nil
	},
}

var listingCmd = &cobra.Command{
	Use:   "listing",
	Short: "Collect the public listing page into the secondary dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		day, err := runDay(harvestDate)
		if err != nil {
			return err
		}
		brands, err := loadBrands(cfg)
		if err != nil {
			return err
		}

		e := newEnv(cfg, logger)
		defer e.Close()

		p, b, err := e.pipeline(ctx)
		if err != nil {
			return err
		}
		defer b.Close()

		_, err = p.HarvestListing(ctx, day, brands)
		return err
	},
}

func init() {
	for _, c := range []*cobra.Command{harvestCmd, listingCmd} {
		c.Flags().StringVar(&harvestDate, "date", "", "collection date YYYYMMDD (default today)")
		rootCmd.AddCommand(c)
	}
}
