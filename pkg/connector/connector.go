// Package connector negotiates sessions with external wallets. A Set holds
// the configured connectors and runs at most one handshake at a time: a new
// BeginHandshake supersedes the one in flight, which settles with
// errs.ErrSuperseded instead of hanging.
package connector

import (
	"context"
	"errors"
	"sync"
	"time"

	"nftmarket/pkg/errs"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const DefaultTimeout = 60 * time.Second

// Account is the outcome of a successful handshake.
type Account struct {
	Address string `json:"address"`
	ChainID int64  `json:"chain_id"`
}

// EventKind classifies events pushed by a wallet outside of any request.
type EventKind int

const (
	EventDisconnect EventKind = iota
	EventError
)

// Event is an unsolicited notification from the wallet side.
type Event struct {
	Kind EventKind
	Err  error
}

// Handshaker is the capability an external wallet exposes.
type Handshaker interface {
	Connect(ctx context.Context, chainIDs []int64) (Account, error)
	SwitchChain(ctx context.Context, chainID int64) error
	Disconnect(ctx context.Context) error
	Events() <-chan Event
}

// Connector binds a handshaker to its id and display name.
type Connector struct {
	ID          string        `json:"id"`
	DisplayName string        `json:"name"`
	Timeout     time.Duration `json:"-"`
	Handshaker  Handshaker    `json:"-"`
}

var errSupersededCause = errors.New("handshake superseded")

type pending struct {
	seq    uint64
	cancel context.CancelCauseFunc
}

// Set is the ordered collection of available connectors.
type Set struct {
	connectors []Connector
	byID       map[string]int
	chainIDs   []int64

	mu       sync.Mutex
	seq      uint64
	inflight *pending
}

// NewSet builds a connector set. chainIDs are offered to wallets during the
// handshake.
func NewSet(chainIDs []int64, connectors ...Connector) (*Set, error) {
	s := &Set{
		byID:     make(map[string]int, len(connectors)),
		chainIDs: append([]int64(nil), chainIDs...),
	}
	for _, c := range connectors {
		if c.ID == "" {
			return nil, errors.New("connector id is required")
		}
		if c.Handshaker == nil {
			return nil, errors.New("connector " + c.ID + " has no handshaker")
		}
		if _, dup := s.byID[c.ID]; dup {
			return nil, errors.New("duplicate connector id " + c.ID)
		}
		if c.Timeout <= 0 {
			c.Timeout = DefaultTimeout
		}
		if c.DisplayName == "" {
			c.DisplayName = c.ID
		}
		s.byID[c.ID] = len(s.connectors)
		s.connectors = append(s.connectors, c)
	}
	return s, nil
}

// List returns the connectors in configuration order.
func (s *Set) List() []Connector {
	out := make([]Connector, len(s.connectors))
	copy(out, s.connectors)
	return out
}

func (s *Set) Get(id string) (Connector, bool) {
	idx, ok := s.byID[id]
	if !ok {
		return Connector{}, false
	}
	return s.connectors[idx], true
}

// Resolve returns the connector for id; an empty id selects the first one.
func (s *Set) Resolve(id string) (Connector, error) {
	if id == "" {
		if len(s.connectors) == 0 {
			return Connector{}, errs.ErrConnectorNotFound
		}
		return s.connectors[0], nil
	}
	c, ok := s.Get(id)
	if !ok {
		return Connector{}, &errs.Error{
			Code:     errs.CodeConnectorNotFound,
			Message:  "connector not found",
			Metadata: map[string]string{"connector": id},
		}
	}
	return c, nil
}

// BeginHandshake negotiates a session with the connector id. A later call
// cancels this one, which then returns errs.ErrSuperseded.
func (s *Set) BeginHandshake(ctx context.Context, id string) (Account, error) {
	c, err := s.Resolve(id)
	if err != nil {
		return Account{}, err
	}

	ctx, span := otel.Tracer("nftmarket/connector").Start(ctx, "connector.handshake")
	defer span.End()
	span.SetAttributes(attribute.String("connector.id", c.ID))

	hctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	s.mu.Lock()
	s.seq++
	mine := &pending{seq: s.seq, cancel: cancel}
	if s.inflight != nil {
		s.inflight.cancel(errSupersededCause)
	}
	s.inflight = mine
	s.mu.Unlock()
	defer s.release(mine)

	tctx, tcancel := context.WithTimeout(hctx, c.Timeout)
	defer tcancel()

	type result struct {
		acc Account
		err error
	}
	done := make(chan result, 1)
	go func() {
		acc, err := c.Handshaker.Connect(tctx, s.chainIDs)
		done <- result{acc: acc, err: err}
	}()

	var acc Account
	select {
	case r := <-done:
		acc, err = r.acc, r.err
	case <-tctx.Done():
		err = tctx.Err()
	}

	if s.superseded(mine) || errors.Is(context.Cause(hctx), errSupersededCause) {
		err = errs.ErrSuperseded
	} else if err != nil {
		err = classify(ctx, tctx, err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Account{}, err
	}
	span.SetAttributes(attribute.Int64("chain.id", acc.ChainID))
	return acc, nil
}

func (s *Set) superseded(p *pending) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq != p.seq
}

func (s *Set) release(p *pending) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight == p {
		s.inflight = nil
	}
}

func classify(parent, timed context.Context, err error) error {
	var coded *errs.Error
	if errors.As(err, &coded) {
		return err
	}
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(timed.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return errs.Wrap(errs.CodeHandshakeTimeout, "handshake timed out", err)
	}
	return errs.Wrap(errs.CodeHandshakeRejected, "wallet did not complete the handshake", err)
}
