package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"nftmarket/pkg/backend/memory"
	"nftmarket/pkg/backend/rpcactor"
	"nftmarket/pkg/logging"

	"github.com/spf13/cobra"
)

func newActorCmd(root *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "actor",
		Short: "Serve the in-memory reference marketplace actor over JSON-RPC",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := root.load()
			if err != nil {
				return err
			}
			closer, err := logging.Init(logging.Config{Level: cfg.LogLevel, File: cfg.LogFile})
			if err != nil {
				return err
			}
			defer func() { _ = closer.Close() }()

			rpcSrv, err := rpcactor.NewServer(memory.New())
			if err != nil {
				return err
			}
			defer rpcSrv.Stop()

			mux := http.NewServeMux()
			mux.Handle("/", rpcSrv)
			mux.Handle("/ws", rpcSrv.WebsocketHandler([]string{"*"}))
			srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(sctx)
			}()

			slog.Info("marketplace actor listening", "addr", addr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8545", "Listen address")
	return cmd
}
