// Package wallet implements the wallet connection state machine. The session
// is independent of any UI: the server and the terminal UI both drive it and
// observe it through events.
package wallet

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"nftmarket/pkg/chains"
	"nftmarket/pkg/connector"
	"nftmarket/pkg/errs"
	"nftmarket/pkg/events"
	"nftmarket/pkg/utils"
)

// AddressResolver maps an address to a human readable name.
type AddressResolver interface {
	ResolveName(ctx context.Context, address string) (string, error)
}

type Option func(*Session)

func WithResolver(r AddressResolver) Option {
	return func(s *Session) { s.resolver = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithHub publishes session events on an existing hub.
func WithHub(h *events.Hub) Option {
	return func(s *Session) { s.hub = h }
}

// Session holds the current wallet connection. Connect, SwitchNetwork and
// Disconnect are ordered by issuance: each one supersedes the operation in
// flight, whose result is discarded.
type Session struct {
	connectors *connector.Set
	chains     *chains.Registry
	resolver   AddressResolver
	logger     *slog.Logger
	hub        *events.Hub

	mu          sync.Mutex
	state       State
	lastErr     error
	connectorID string
	active      connector.Handshaker
	stopWatch   chan struct{}
	seq         uint64
	cancel      context.CancelFunc
	names       map[string]string
}

func NewSession(set *connector.Set, registry *chains.Registry, opts ...Option) *Session {
	s := &Session{
		connectors: set,
		chains:     registry,
		state:      Disconnected{},
		names:      make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.hub == nil {
		s.hub = &events.Hub{}
	}
	return s
}

func (s *Session) Subscribe() events.Subscriber {
	return s.hub.Subscribe()
}

func (s *Session) Unsubscribe(ch events.Subscriber) {
	s.hub.Unsubscribe(ch)
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Address returns the connected address, or "" when not connected.
func (s *Session) Address() string {
	return Address(s.State())
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Connect negotiates a session with the connector id ("" selects the first
// configured connector). On failure the session returns to Disconnected and
// the error is kept in the snapshot.
func (s *Session) Connect(ctx context.Context, connectorID string) (Connected, error) {
	c, err := s.connectors.Resolve(connectorID)
	if err != nil {
		s.mu.Lock()
		s.lastErr = err
		s.setLocked(s.state)
		s.mu.Unlock()
		s.logger.Warn("wallet connect failed", "connector", connectorID, "error", err)
		return Connected{}, err
	}

	s.mu.Lock()
	seq, opCtx := s.beginLocked(ctx)
	prevAddr := Address(s.state)
	prev := s.detachLocked()
	s.lastErr = nil
	s.setLocked(Connecting{ConnectorID: c.ID})
	if prevAddr != "" {
		s.publishAccountLocked(prevAddr, "")
	}
	s.mu.Unlock()

	if prev != nil && prev != c.Handshaker {
		s.teardown(prev)
	}

	s.logger.Info("wallet connecting", "connector", c.ID)
	acc, err := s.connectors.BeginHandshake(opCtx, c.ID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seq != seq {
		return Connected{}, errs.ErrSuperseded
	}
	s.endLocked()
	if err != nil {
		s.lastErr = err
		s.setLocked(Disconnected{})
		s.logger.Warn("wallet connect failed", "connector", c.ID, "error", err)
		return Connected{}, err
	}

	connected := Connected{Address: acc.Address, ChainID: acc.ChainID}
	s.connectorID = c.ID
	s.active = c.Handshaker
	s.stopWatch = make(chan struct{})
	go s.watch(c.Handshaker, s.stopWatch)
	s.setLocked(connected)
	s.publishAccountLocked("", acc.Address)
	s.resolveNameLocked(acc.Address)
	s.logger.Info("wallet connected", "connector", c.ID, "address", acc.Address, "chain_id", acc.ChainID)
	return connected, nil
}

// SwitchNetwork asks the wallet to move to chainID. On failure the session
// stays connected to the original chain.
func (s *Session) SwitchNetwork(ctx context.Context, chainID int64) (Connected, error) {
	s.mu.Lock()
	var addr string
	var from int64
	switch st := s.state.(type) {
	case Connected:
		addr, from = st.Address, st.ChainID
	case SwitchingChain:
		addr, from = st.Address, st.From
	default:
		s.mu.Unlock()
		return Connected{}, errs.ErrNotConnected
	}
	if !s.chains.Contains(chainID) {
		s.mu.Unlock()
		return Connected{}, &errs.Error{
			Code:     errs.CodeChainSwitchRejected,
			Message:  "unsupported chain",
			Metadata: map[string]string{"chain": s.chains.ResolveName(chainID)},
		}
	}
	if cur, ok := s.state.(Connected); ok && cur.ChainID == chainID {
		s.mu.Unlock()
		return cur, nil
	}

	seq, opCtx := s.beginLocked(ctx)
	h := s.active
	s.lastErr = nil
	s.setLocked(SwitchingChain{Address: addr, From: from, To: chainID})
	s.mu.Unlock()

	err := h.SwitchChain(opCtx, chainID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seq != seq {
		return Connected{}, errs.ErrSuperseded
	}
	s.endLocked()
	if err != nil {
		if !errors.Is(err, errs.ErrChainSwitchRejected) {
			err = errs.Wrap(errs.CodeChainSwitchRejected, "chain switch failed", err)
		}
		s.lastErr = err
		s.setLocked(Connected{Address: addr, ChainID: from})
		s.logger.Warn("chain switch failed", "from", from, "to", chainID, "error", err)
		return Connected{}, err
	}
	connected := Connected{Address: addr, ChainID: chainID}
	s.setLocked(connected)
	s.logger.Info("chain switched", "chain_id", chainID, "chain", s.chains.ResolveName(chainID))
	return connected, nil
}

// Disconnect drops the session from any state and cancels the operation in
// flight. Wallet-side teardown failures are logged, never returned.
func (s *Session) Disconnect(ctx context.Context) {
	s.mu.Lock()
	s.beginLocked(ctx)
	s.endLocked()
	prevAddr := Address(s.state)
	h := s.detachLocked()
	s.lastErr = nil
	s.setLocked(Disconnected{})
	if prevAddr != "" {
		s.publishAccountLocked(prevAddr, "")
	}
	s.mu.Unlock()

	if h != nil {
		if err := h.Disconnect(ctx); err != nil {
			s.logger.Warn("wallet teardown failed", "error", err)
		}
	}
	s.logger.Info("wallet disconnected")
}

// DisplayName returns the resolved name for address, or its shortened form.
func (s *Session) DisplayName(address string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.displayNameLocked(address)
}

func (s *Session) displayNameLocked(address string) string {
	if name, ok := s.names[address]; ok {
		return name
	}
	return utils.FormatAddress(address, utils.AddressChars)
}

// beginLocked supersedes the operation in flight and returns a context that
// the next one cancels.
func (s *Session) beginLocked(ctx context.Context) (uint64, context.Context) {
	if s.cancel != nil {
		s.cancel()
	}
	s.seq++
	opCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	return s.seq, opCtx
}

func (s *Session) endLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// detachLocked forgets the active connector and returns its handshaker.
func (s *Session) detachLocked() connector.Handshaker {
	h := s.active
	s.active = nil
	s.connectorID = ""
	if s.stopWatch != nil {
		close(s.stopWatch)
		s.stopWatch = nil
	}
	return h
}

func (s *Session) teardown(h connector.Handshaker) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.Disconnect(ctx); err != nil {
		s.logger.Warn("wallet teardown failed", "error", err)
	}
}

func (s *Session) watch(h connector.Handshaker, stop chan struct{}) {
	for {
		select {
		case ev, ok := <-h.Events():
			if !ok {
				return
			}
			s.handleExternal(h, ev)
		case <-stop:
			return
		}
	}
}

// handleExternal applies a wallet-initiated disconnect or error.
func (s *Session) handleExternal(h connector.Handshaker, ev connector.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != h {
		return
	}
	s.beginLocked(context.Background())
	s.endLocked()
	prevAddr := Address(s.state)
	s.detachLocked()
	if ev.Kind == connector.EventError && ev.Err != nil {
		s.lastErr = ev.Err
		s.setLocked(Errored{Cause: ev.Err})
		s.logger.Warn("wallet reported an error", "error", ev.Err)
	} else {
		s.lastErr = nil
		s.setLocked(Disconnected{})
		s.logger.Info("wallet disconnected remotely")
	}
	if prevAddr != "" {
		s.publishAccountLocked(prevAddr, "")
	}
}

func (s *Session) resolveNameLocked(address string) {
	if s.resolver == nil {
		return
	}
	if _, ok := s.names[address]; ok {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		name, err := s.resolver.ResolveName(ctx, address)
		if err != nil || name == "" {
			s.logger.Debug("no display name", "address", address, "error", err)
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		s.names[address] = name
		if Address(s.state) == address {
			s.hub.Publish(events.Event{Type: events.WalletStateChanged, Data: s.snapshotLocked()})
		}
	}()
}

func (s *Session) setLocked(st State) {
	s.state = st
	s.hub.Publish(events.Event{Type: events.WalletStateChanged, Data: s.snapshotLocked()})
}

func (s *Session) publishAccountLocked(old, next string) {
	if old == next {
		return
	}
	s.hub.Publish(events.Event{Type: events.AccountChanged, Data: AccountChange{Old: old, New: next}})
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		Status: s.state.Status(),
		State:  s.state,
		Err:    s.lastErr,
	}
	if s.lastErr != nil {
		snap.Error = s.lastErr.Error()
	}
	switch st := s.state.(type) {
	case Connecting:
		snap.ConnectorID = st.ConnectorID
	case Connected:
		snap.ConnectorID = s.connectorID
		snap.Address = st.Address
		snap.ChainID = st.ChainID
	case SwitchingChain:
		snap.ConnectorID = s.connectorID
		snap.Address = st.Address
		snap.ChainID = st.From
		snap.TargetChainID = st.To
	}
	if snap.Address != "" {
		snap.DisplayName = s.displayNameLocked(snap.Address)
		snap.ChainName = s.chains.ResolveName(snap.ChainID)
	}
	return snap
}
