package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"nftmarket/pkg/backend/memory"
	"nftmarket/pkg/backend/rpcactor"
	"nftmarket/pkg/cache"
	"nftmarket/pkg/chains"
	"nftmarket/pkg/config"
	"nftmarket/pkg/connector"
	"nftmarket/pkg/events"
	"nftmarket/pkg/identity"
	"nftmarket/pkg/market"
	"nftmarket/pkg/rpc"
	"nftmarket/pkg/telemetry"
	"nftmarket/pkg/wallet"
	"nftmarket/pkg/watcher"
)

// mainnetChainID is where reverse name records live.
const mainnetChainID = 1

// app is the process-wide set of components shared by the server and the
// terminal UI.
type app struct {
	cfg        config.Config
	path       string
	logger     *slog.Logger
	hub        *events.Hub
	chains     *chains.Registry
	connectors *connector.Set
	session    *wallet.Session
	identity   *identity.Identity
	cache      *cache.Cache
	market     *market.Coordinator
	watcher    *watcher.Watcher

	closers []func() error
}

func buildApp(ctx context.Context, cfg config.Config, path string) (*app, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, path: path, logger: slog.Default(), hub: &events.Hub{}}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	shutdown, err := telemetry.InitTracer(ctx, "nftmarket", cfg.OtelEndpoint)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	a.closers = append(a.closers, func() error {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return shutdown(sctx)
	})

	if a.chains, err = chains.FromConfig(cfg.Chains); err != nil {
		return nil, fmt.Errorf("chains: %w", err)
	}
	if a.connectors, err = connector.FromConfig(cfg, a.chains.IDs()); err != nil {
		return nil, fmt.Errorf("connectors: %w", err)
	}

	sessionOpts := []wallet.Option{wallet.WithHub(a.hub), wallet.WithLogger(a.logger)}
	if mainnet, found := a.chains.Lookup(mainnetChainID); found && mainnet.RPCURL != "" {
		sessionOpts = append(sessionOpts, wallet.WithResolver(rpc.NewReverseResolver(mainnet.RPCURL)))
	}
	a.session = wallet.NewSession(a.connectors, a.chains, sessionOpts...)

	store, closeStore, err := identity.OpenStorage(cfg.Storage, config.DataDir(path))
	if err != nil {
		return nil, fmt.Errorf("identity storage: %w", err)
	}
	a.closers = append(a.closers, closeStore)
	a.identity = identity.New(store)

	backend, err := a.openBackend(ctx)
	if err != nil {
		return nil, err
	}

	sink := market.EventSink(market.NopSink{})
	if len(cfg.Kafka.Brokers) > 0 {
		ks, err := market.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic, a.logger)
		if err != nil {
			return nil, fmt.Errorf("kafka sink: %w", err)
		}
		sink = ks
	}
	a.closers = append(a.closers, sink.Close)

	a.cache = cache.New(cache.WithHub(a.hub), cache.WithLogger(a.logger))
	scope := market.NewOwnerScope(cfg.OwnerScope, a.identity, a.session)
	a.market = market.NewCoordinator(backend, a.cache, scope,
		market.WithSink(sink),
		market.WithHub(a.hub),
		market.WithLogger(a.logger),
	)
	a.watcher = watcher.NewWatcher(a.cache, time.Duration(cfg.RefreshIntervalSeconds)*time.Second,
		watcher.WithAccounts(a.session, scope),
		watcher.WithHub(a.hub),
		watcher.WithLogger(a.logger),
	)

	ok = true
	return a, nil
}

func (a *app) openBackend(ctx context.Context) (market.Backend, error) {
	if a.cfg.BackendURL == "" {
		a.logger.Warn("no backend_url configured, using the in-memory actor")
		return memory.New(), nil
	}
	client, err := rpcactor.Dial(ctx, a.cfg.BackendURL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error {
		client.Close()
		return nil
	})
	return client, nil
}

func (a *app) start(ctx context.Context) {
	a.watcher.Start(ctx)
}

// close stops components in reverse order of construction.
func (a *app) close() {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.session != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		a.session.Disconnect(ctx)
		cancel()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("shutdown", "error", err)
		}
	}
	a.closers = nil
}
