// Package cache keeps remote query results keyed by descriptor. Concurrent
// fetches of one descriptor share a single load, and invalidation marks
// entries stale immediately so the next fetch goes back to the source.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"nftmarket/pkg/events"
)

// Status of a cache entry.
type Status int

const (
	StatusLoading Status = iota
	StatusFresh
	StatusStale
)

func (s Status) String() string {
	switch s {
	case StatusFresh:
		return "fresh"
	case StatusStale:
		return "stale"
	default:
		return "loading"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Entry is a point-in-time copy of a cached query.
type Entry struct {
	Descriptor        Descriptor `json:"descriptor"`
	Value             any        `json:"-"`
	HasValue          bool       `json:"has_value"`
	Status            Status     `json:"status"`
	Err               error      `json:"-"`
	LastInvalidatedAt time.Time  `json:"last_invalidated_at,omitzero"`
	FetchedAt         time.Time  `json:"fetched_at,omitzero"`
}

// Invalidation is published on the hub after each Invalidate call.
type Invalidation struct {
	Descriptors []string `json:"descriptors"`
	Count       int      `json:"count"`
}

// call is one shared load. detached is set when an invalidation overtakes
// the load; its result then reaches its waiters but never the entry.
type call struct {
	done     chan struct{}
	val      any
	err      error
	detached bool
}

type Option func(*Cache)

func WithHub(h *events.Hub) Option {
	return func(c *Cache) { c.hub = h }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

type Cache struct {
	hub    *events.Hub
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	entries  map[Descriptor]*Entry
	inflight map[Descriptor]*call
}

func New(opts ...Option) *Cache {
	c := &Cache{
		now:      time.Now,
		entries:  make(map[Descriptor]*Entry),
		inflight: make(map[Descriptor]*call),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.hub == nil {
		c.hub = &events.Hub{}
	}
	return c
}

// Fetch returns the cached value for d when fresh, otherwise joins or starts
// a load through loader. A waiter whose ctx ends stops waiting; the load
// itself keeps running for the others.
func Fetch[T any](ctx context.Context, c *Cache, d Descriptor, loader func(context.Context) (T, error)) (T, error) {
	var zero T
	cl, cached, ok := c.join(ctx, d, func(lctx context.Context) (any, error) {
		return loader(lctx)
	})
	if ok {
		return typed[T](d, cached)
	}

	select {
	case <-cl.done:
		if cl.err != nil {
			return zero, cl.err
		}
		return typed[T](d, cl.val)
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func typed[T any](d Descriptor, v any) (T, error) {
	t, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("cache entry %s holds %T", d, v)
	}
	return t, nil
}

// join returns the fresh value for d, or the load to wait on.
func (c *Cache) join(ctx context.Context, d Descriptor, load func(context.Context) (any, error)) (*call, any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, exists := c.entries[d]
	if exists && e.Status == StatusFresh {
		return nil, e.Value, true
	}
	if cl, ok := c.inflight[d]; ok {
		return cl, nil, false
	}

	if !exists {
		e = &Entry{Descriptor: d}
		c.entries[d] = e
	}
	e.Status = StatusLoading
	cl := &call{done: make(chan struct{})}
	c.inflight[d] = cl
	go c.run(context.WithoutCancel(ctx), d, cl, load)
	return cl, nil, false
}

func (c *Cache) run(ctx context.Context, d Descriptor, cl *call, load func(context.Context) (any, error)) {
	val, err := load(ctx)

	c.mu.Lock()
	cl.val, cl.err = val, err
	if !cl.detached {
		delete(c.inflight, d)
		c.settleLocked(d, val, err)
	}
	c.mu.Unlock()
	close(cl.done)
}

func (c *Cache) settleLocked(d Descriptor, val any, err error) {
	e, ok := c.entries[d]
	if !ok {
		return
	}
	if err != nil {
		c.logger.Debug("cache load failed", "descriptor", d.String(), "error", err)
		if !e.HasValue {
			delete(c.entries, d)
			return
		}
		e.Err = err
		e.Status = StatusStale
		return
	}
	e.Value = val
	e.HasValue = true
	e.Err = nil
	e.Status = StatusFresh
	e.FetchedAt = c.now()
}

// Invalidate marks every entry matching pred stale and detaches loads in
// flight for them, so later fetches start over. It returns the number of
// entries affected.
func (c *Cache) Invalidate(pred Predicate) int {
	c.mu.Lock()
	now := c.now()
	var matched []string
	for d, e := range c.entries {
		if !pred(d) {
			continue
		}
		e.Status = StatusStale
		e.LastInvalidatedAt = now
		matched = append(matched, d.String())
	}
	for d, cl := range c.inflight {
		if pred(d) {
			cl.detached = true
			delete(c.inflight, d)
		}
	}
	sort.Strings(matched)
	if len(matched) > 0 {
		c.hub.Publish(events.Event{
			Type: events.CacheInvalidated,
			Data: Invalidation{Descriptors: matched, Count: len(matched)},
		})
	}
	c.mu.Unlock()

	if len(matched) > 0 {
		c.logger.Debug("cache invalidated", "descriptors", matched)
	}
	return len(matched)
}

// Peek returns a copy of the entry for d without loading.
func (c *Cache) Peek(d Descriptor) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[d]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Entries lists all entries ordered by descriptor.
func (c *Cache) Entries() []Entry {
	c.mu.Lock()
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, *e)
	}
	c.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].Descriptor.String() < out[j].Descriptor.String()
	})
	return out
}

// Descriptors lists the cached descriptors matching pred.
func (c *Cache) Descriptors(pred Predicate) []Descriptor {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Descriptor
	for d := range c.entries {
		if pred(d) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func (c *Cache) Subscribe() events.Subscriber {
	return c.hub.Subscribe()
}

func (c *Cache) Unsubscribe(ch events.Subscriber) {
	c.hub.Unsubscribe(ch)
}
