// Package watcher keeps cached marketplace queries current: it periodically
// marks listings stale and re-keys owner queries when the wallet changes.
package watcher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"nftmarket/pkg/cache"
	"nftmarket/pkg/events"
	"nftmarket/pkg/wallet"
)

// Scope maps a connected address to the owner identity it implies.
type Scope interface {
	FollowsWallet() bool
	OwnerFor(ctx context.Context, address string) (string, error)
}

// AccountFeed delivers wallet events.
type AccountFeed interface {
	Subscribe() events.Subscriber
	Unsubscribe(events.Subscriber)
}

// Refresh describes one periodic listing refresh.
type Refresh struct {
	Descriptors []string  `json:"descriptors"`
	Count       int       `json:"count"`
	At          time.Time `json:"at"`
}

type Option func(*Watcher)

// WithAccounts re-scopes owner queries on account changes from feed.
func WithAccounts(feed AccountFeed, scope Scope) Option {
	return func(w *Watcher) {
		w.feed = feed
		w.scope = scope
	}
}

func WithHub(h *events.Hub) Option {
	return func(w *Watcher) { w.hub = h }
}

func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// Watcher runs the background refresh loops.
type Watcher struct {
	cache    *cache.Cache
	interval time.Duration
	feed     AccountFeed
	scope    Scope
	hub      *events.Hub
	logger   *slog.Logger

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewWatcher creates a watcher. An interval <= 0 disables periodic refresh.
func NewWatcher(c *cache.Cache, interval time.Duration, opts ...Option) *Watcher {
	w := &Watcher{
		cache:    c,
		interval: interval,
		stopChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.hub == nil {
		w.hub = &events.Hub{}
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	return w
}

// Start begins the monitoring loops.
func (w *Watcher) Start(ctx context.Context) {
	if w.interval > 0 {
		w.wg.Add(1)
		go w.pollingLoop(ctx)
	}
	if w.feed != nil && w.scope != nil && w.scope.FollowsWallet() {
		sub := w.feed.Subscribe()
		w.wg.Add(1)
		go w.accountLoop(ctx, sub)
	}
}

// Stop stops the loops and waits for them to exit.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
	w.wg.Wait()
}

func (w *Watcher) pollingLoop(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.Refresh()
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Refresh marks the market-wide listings stale so the next read refetches.
func (w *Watcher) Refresh() Refresh {
	pred := cache.Exact(cache.AllNFTs(), cache.ForSale())
	n := w.cache.Invalidate(pred)
	r := Refresh{Count: n, At: time.Now()}
	for _, d := range w.cache.Descriptors(pred) {
		r.Descriptors = append(r.Descriptors, d.String())
	}
	if n > 0 {
		w.logger.Debug("listings marked stale", "count", n)
	}
	w.hub.Publish(events.Event{Type: events.ListingsRefreshed, Data: r})
	return r
}

func (w *Watcher) accountLoop(ctx context.Context, sub events.Subscriber) {
	defer w.wg.Done()
	defer w.feed.Unsubscribe(sub)
	for {
		select {
		case ev, ok := <-sub:
			if !ok {
				return
			}
			if change, isChange := ev.Data.(wallet.AccountChange); isChange && ev.Type == events.AccountChanged {
				w.Rescope(ctx, change)
			}
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Rescope invalidates the owner queries of both sides of an account change.
func (w *Watcher) Rescope(ctx context.Context, change wallet.AccountChange) int {
	var owners []cache.Descriptor
	for _, addr := range []string{change.Old, change.New} {
		owner, err := w.scope.OwnerFor(ctx, addr)
		if err != nil {
			w.logger.Warn("owner scope unavailable", "address", addr, "error", err)
			continue
		}
		owners = append(owners, cache.ByOwner(owner))
	}
	if len(owners) == 0 {
		return 0
	}
	n := w.cache.Invalidate(cache.Exact(owners...))
	w.logger.Info("owner scope changed", "old", change.Old, "new", change.New, "invalidated", n)
	return n
}
