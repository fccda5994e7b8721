package connector

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"

	"nftmarket/pkg/errs"

	"github.com/gorilla/websocket"
)

// Relay message types.
const (
	msgSessionRequest    = "session_request"
	msgSessionApprove    = "session_approve"
	msgSessionReject     = "session_reject"
	msgSessionDelete     = "session_delete"
	msgSessionError      = "session_error"
	msgSwitchChain       = "switch_chain"
	msgSwitchChainResult = "switch_chain_result"
)

type relayMessage struct {
	Type     string   `json:"type"`
	ID       string   `json:"id,omitempty"`
	Chains   []int64  `json:"chains,omitempty"`
	Accounts []string `json:"accounts,omitempty"`
	ChainID  int64    `json:"chain_id,omitempty"`
	OK       bool     `json:"ok,omitempty"`
	Reason   string   `json:"reason,omitempty"`
}

// Relay pairs with a remote wallet through a websocket relay. Requests carry
// an id and are answered asynchronously; session_delete or a dropped socket
// is reported on Events as a disconnect.
type Relay struct {
	endpoint  string
	projectID string
	dialer    *websocket.Dialer

	nextID atomic.Uint64

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[string]chan relayMessage
	closing bool

	writeMu sync.Mutex
	events  chan Event
}

func NewRelay(endpoint, projectID string) *Relay {
	return &Relay{
		endpoint:  endpoint,
		projectID: projectID,
		dialer:    websocket.DefaultDialer,
		pending:   make(map[string]chan relayMessage),
		events:    make(chan Event, 8),
	}
}

func (r *Relay) Connect(ctx context.Context, chainIDs []int64) (Account, error) {
	u, err := url.Parse(r.endpoint)
	if err != nil {
		return Account{}, fmt.Errorf("relay endpoint: %w", err)
	}
	if r.projectID != "" {
		q := u.Query()
		q.Set("projectId", r.projectID)
		u.RawQuery = q.Encode()
	}

	r.close()
	conn, _, err := r.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return Account{}, fmt.Errorf("dial relay: %w", err)
	}
	if err := ctx.Err(); err != nil {
		_ = conn.Close()
		return Account{}, err
	}
	r.mu.Lock()
	r.conn = conn
	r.closing = false
	r.mu.Unlock()
	go r.readLoop(conn)

	reply, err := r.request(ctx, relayMessage{Type: msgSessionRequest, Chains: chainIDs})
	if err != nil {
		r.abandon(conn)
		return Account{}, err
	}
	switch reply.Type {
	case msgSessionApprove:
		if len(reply.Accounts) == 0 {
			r.abandon(conn)
			return Account{}, errs.New(errs.CodeHandshakeRejected, "wallet approved without accounts")
		}
		return Account{Address: reply.Accounts[0], ChainID: reply.ChainID}, nil
	default:
		r.abandon(conn)
		return Account{}, rejection(errs.CodeHandshakeRejected, "wallet rejected the session", reply.Reason)
	}
}

func (r *Relay) SwitchChain(ctx context.Context, chainID int64) error {
	reply, err := r.request(ctx, relayMessage{Type: msgSwitchChain, ChainID: chainID})
	if err != nil {
		return err
	}
	if reply.Type != msgSwitchChainResult || !reply.OK {
		return rejection(errs.CodeChainSwitchRejected, "wallet rejected the chain switch", reply.Reason)
	}
	return nil
}

func (r *Relay) Disconnect(ctx context.Context) error {
	r.mu.Lock()
	conn := r.conn
	r.mu.Unlock()
	if conn == nil {
		return nil
	}
	err := r.send(relayMessage{Type: msgSessionDelete})
	r.close()
	return err
}

func (r *Relay) Events() <-chan Event {
	return r.events
}

func (r *Relay) request(ctx context.Context, msg relayMessage) (relayMessage, error) {
	msg.ID = strconv.FormatUint(r.nextID.Add(1), 10)
	reply := make(chan relayMessage, 1)

	r.mu.Lock()
	if r.conn == nil {
		r.mu.Unlock()
		return relayMessage{}, errs.ErrNotConnected
	}
	r.pending[msg.ID] = reply
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.pending, msg.ID)
		r.mu.Unlock()
	}()

	if err := r.send(msg); err != nil {
		return relayMessage{}, err
	}
	select {
	case m, ok := <-reply:
		if !ok {
			return relayMessage{}, errors.New("relay connection closed")
		}
		return m, nil
	case <-ctx.Done():
		return relayMessage{}, ctx.Err()
	}
}

func (r *Relay) send(msg relayMessage) error {
	r.mu.Lock()
	conn := r.conn
	r.mu.Unlock()
	if conn == nil {
		return errs.ErrNotConnected
	}
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	return conn.WriteJSON(msg)
}

func (r *Relay) readLoop(conn *websocket.Conn) {
	for {
		var msg relayMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if r.drop(conn) {
				r.emit(Event{Kind: EventDisconnect, Err: err})
			}
			return
		}
		switch msg.Type {
		case msgSessionDelete:
			if r.drop(conn) {
				r.emit(Event{Kind: EventDisconnect})
			}
			return
		case msgSessionError:
			r.emit(Event{Kind: EventError, Err: errors.New(msg.Reason)})
			continue
		}

		r.mu.Lock()
		if ch, ok := r.pending[msg.ID]; ok {
			ch <- msg
			delete(r.pending, msg.ID)
		}
		r.mu.Unlock()
	}
}

// drop detaches conn if it is still current and reports whether the loss was
// not initiated locally.
func (r *Relay) drop(conn *websocket.Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn != conn {
		return false
	}
	external := !r.closing
	r.conn = nil
	for id, ch := range r.pending {
		close(ch)
		delete(r.pending, id)
	}
	_ = conn.Close()
	return external
}

func (r *Relay) close() {
	r.mu.Lock()
	conn := r.conn
	r.closing = true
	r.mu.Unlock()
	if conn != nil {
		r.drop(conn)
	}
}

// abandon closes conn locally. A newer session that replaced conn is left
// untouched.
func (r *Relay) abandon(conn *websocket.Conn) {
	r.mu.Lock()
	current := r.conn == conn
	if current {
		r.closing = true
	}
	r.mu.Unlock()
	if current {
		r.drop(conn)
		return
	}
	_ = conn.Close()
}

func (r *Relay) emit(e Event) {
	select {
	case r.events <- e:
	default:
	}
}

func rejection(code errs.Code, msg, reason string) error {
	e := errs.New(code, msg)
	if reason != "" {
		e.Metadata = map[string]string{"reason": reason}
	}
	return e
}
