package watcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"nftmarket/pkg/cache"
	"nftmarket/pkg/events"
	"nftmarket/pkg/wallet"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type walletScope struct {
	local  string
	follow bool
	err    error
}

func (s walletScope) FollowsWallet() bool { return s.follow }

func (s walletScope) OwnerFor(_ context.Context, address string) (string, error) {
	if address != "" {
		return address, nil
	}
	return s.local, s.err
}

func primed(t *testing.T, ds ...cache.Descriptor) *cache.Cache {
	t.Helper()
	c := cache.New()
	for _, d := range ds {
		_, err := cache.Fetch(context.Background(), c, d, func(context.Context) (int, error) { return 1, nil })
		require.NoError(t, err)
	}
	return c
}

func staleSet(c *cache.Cache) []string {
	var out []string
	for _, e := range c.Entries() {
		if e.Status == cache.StatusStale {
			out = append(out, e.Descriptor.String())
		}
	}
	return out
}

func TestRefresh(t *testing.T) {
	hub := &events.Hub{}
	sub := hub.Subscribe()
	c := primed(t, cache.AllNFTs(), cache.ForSale(), cache.ByID("1"), cache.ByOwner("alice"))
	w := NewWatcher(c, 0, WithHub(hub))

	r := w.Refresh()
	assert.Equal(t, 2, r.Count)
	assert.Equal(t, []string{"all:all", "for-sale:all"}, r.Descriptors)
	assert.Equal(t, []string{"all:all", "for-sale:all"}, staleSet(c))

	ev := <-sub
	assert.Equal(t, events.ListingsRefreshed, ev.Type)
}

func TestPollingLoop(t *testing.T) {
	hub := &events.Hub{}
	sub := hub.Subscribe()
	c := primed(t, cache.ForSale())
	w := NewWatcher(c, 10*time.Millisecond, WithHub(hub))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Stop()

	select {
	case ev := <-sub:
		assert.Equal(t, events.ListingsRefreshed, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("no refresh published")
	}
	assert.Equal(t, []string{"for-sale:all"}, staleSet(c))
}

func TestStopIsIdempotent(t *testing.T) {
	w := NewWatcher(cache.New(), time.Hour)
	w.Start(context.Background())
	w.Stop()
	w.Stop()
}

func TestRescopeOnAccountChange(t *testing.T) {
	feed := &events.Hub{}
	c := primed(t, cache.ByOwner("user_local"), cache.ByOwner("0xA"), cache.ByOwner("0xB"), cache.AllNFTs())
	w := NewWatcher(c, 0, WithAccounts(feed, walletScope{local: "user_local", follow: true}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Stop()
	require.Eventually(t, func() bool { return feed.Len() == 1 }, time.Second, time.Millisecond)

	feed.Publish(events.Event{Type: events.AccountChanged, Data: wallet.AccountChange{Old: "", New: "0xA"}})
	require.Eventually(t, func() bool { return len(staleSet(c)) == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"by-owner:0xA", "by-owner:user_local"}, staleSet(c))
}

func TestRescopeIgnoredForLocalScope(t *testing.T) {
	feed := &events.Hub{}
	w := NewWatcher(cache.New(), 0, WithAccounts(feed, walletScope{follow: false}))
	w.Start(context.Background())
	defer w.Stop()
	assert.Equal(t, 0, feed.Len())
}

func TestRescopeSkipsUnavailableOwner(t *testing.T) {
	c := primed(t, cache.ByOwner("0xB"), cache.ByOwner("user_local"))
	w := NewWatcher(c, 0, WithAccounts(&events.Hub{}, walletScope{follow: true, err: errors.New("storage down")}))

	n := w.Rescope(context.Background(), wallet.AccountChange{Old: "0xB", New: ""})
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"by-owner:0xB"}, staleSet(c))
}
