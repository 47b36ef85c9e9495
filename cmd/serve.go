package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"discount-harvester/server"
	"discount-harvester/utils"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP trigger and download server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		addr := serveAddr
		if addr == "" {
			addr = cfg.ServerAddr
		}

		srv := server.New(cfg.DataDir, fileExt(cfg), cfg.LogLevel, func(ctx context.Context, day time.Time, l utils.EventSink) error {
			_, err := runAll(ctx, day, l)
			return err
		}, logger)
		return srv.ListenAndServe(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from SERVER_ADDR)")
	rootCmd.AddCommand(serveCmd)
}
