package main

import (
	"os/signal"
	"syscall"

	"nftmarket/pkg/logging"
	"nftmarket/pkg/server"

	"github.com/spf13/cobra"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the headless HTTP and websocket API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := root.load()
			if err != nil {
				return err
			}
			closer, err := logging.Init(logging.Config{Level: cfg.LogLevel, File: cfg.LogFile})
			if err != nil {
				return err
			}
			defer func() { _ = closer.Close() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, cfg, path)
			if err != nil {
				return err
			}
			defer a.close()
			a.start(ctx)

			if addr == "" {
				addr = cfg.HTTPAddr
			}
			srv := server.NewServer(server.Services{
				Session:    a.session,
				Market:     a.market,
				Chains:     a.chains,
				Connectors: a.connectors,
				Watcher:    a.watcher,
				Hub:        a.hub,
				Logger:     a.logger,
			})
			return srv.Start(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, :8080)")
	return cmd
}
