package cmd

import (
	"github.com/spf13/cobra"
)

var reconcileDate string

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Compare the listing dataset against the configurator dataset of a date",
	RunE: func(cmd *cobra.Command, args []string) error {
		day, err := runDay(reconcileDate)
		if err != nil {
			return err
		}

		e := newEnv(cfg, logger)
		defer e.Close()

		res, err := e.reconciler().Run(day)
		if err != nil {
			return err
		}
		logger.Info("[reconcile] %d discrepancies, %d backfilled rows", len(res.Discrepancies), len(res.Backfill))
		return nil
	},
}

func init() {
	reconcileCmd.Flags().StringVar(&reconcileDate, "date", "", "dataset date YYYYMMDD (default today)")
	rootCmd.AddCommand(reconcileCmd)
}
