package connector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nftmarket/pkg/errs"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newRelayServer runs a fake relay. respond maps each inbound request to the
// replies written back; a nil reply leaves the request unanswered.
func newRelayServer(t *testing.T, respond func(conn *websocket.Conn, msg relayMessage) []relayMessage) (string, chan string) {
	t.Helper()
	queries := make(chan string, 4)
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries <- r.URL.RawQuery
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var msg relayMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			for _, reply := range respond(conn, msg) {
				if err := conn.WriteJSON(reply); err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http"), queries
}

func approveAll(conn *websocket.Conn, msg relayMessage) []relayMessage {
	switch msg.Type {
	case msgSessionRequest:
		return []relayMessage{{Type: msgSessionApprove, ID: msg.ID, Accounts: []string{"0xABCD"}, ChainID: msg.Chains[0]}}
	case msgSwitchChain:
		return []relayMessage{{Type: msgSwitchChainResult, ID: msg.ID, OK: msg.ChainID != 56, Reason: "unsupported"}}
	}
	return nil
}

func TestRelayConnectAndSwitch(t *testing.T) {
	endpoint, queries := newRelayServer(t, approveAll)

	r := NewRelay(endpoint, "proj-1")
	acc, err := r.Connect(context.Background(), []int64{1, 137})
	require.NoError(t, err)
	assert.Equal(t, Account{Address: "0xABCD", ChainID: 1}, acc)
	assert.Equal(t, "projectId=proj-1", <-queries)

	require.NoError(t, r.SwitchChain(context.Background(), 137))

	err = r.SwitchChain(context.Background(), 56)
	require.ErrorIs(t, err, errs.ErrChainSwitchRejected)
	var coded *errs.Error
	require.ErrorAs(t, err, &coded)
	assert.Equal(t, "unsupported", coded.Metadata["reason"])

	require.NoError(t, r.Disconnect(context.Background()))
	select {
	case e := <-r.Events():
		t.Fatalf("local disconnect must not emit an event, got %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRelayRejected(t *testing.T) {
	endpoint, _ := newRelayServer(t, func(conn *websocket.Conn, msg relayMessage) []relayMessage {
		return []relayMessage{{Type: msgSessionReject, ID: msg.ID, Reason: "user declined"}}
	})

	r := NewRelay(endpoint, "")
	_, err := r.Connect(context.Background(), []int64{1})
	assert.ErrorIs(t, err, errs.ErrHandshakeRejected)
	assert.ErrorIs(t, r.SwitchChain(context.Background(), 1), errs.ErrNotConnected)
}

func TestRelayExternalDisconnect(t *testing.T) {
	endpoint, _ := newRelayServer(t, func(conn *websocket.Conn, msg relayMessage) []relayMessage {
		if msg.Type == msgSessionRequest {
			return []relayMessage{
				{Type: msgSessionApprove, ID: msg.ID, Accounts: []string{"0xABCD"}, ChainID: 1},
				{Type: msgSessionDelete},
			}
		}
		return nil
	})

	r := NewRelay(endpoint, "")
	_, err := r.Connect(context.Background(), []int64{1})
	require.NoError(t, err)

	select {
	case e := <-r.Events():
		assert.Equal(t, EventDisconnect, e.Kind)
	case <-time.After(time.Second):
		t.Fatal("expected external disconnect event")
	}
	assert.ErrorIs(t, r.SwitchChain(context.Background(), 1), errs.ErrNotConnected)
}

func TestRelayUnansweredHonoursContext(t *testing.T) {
	endpoint, _ := newRelayServer(t, func(conn *websocket.Conn, msg relayMessage) []relayMessage {
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := NewRelay(endpoint, "").Connect(ctx, []int64{1})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRelayFailedHandshakeLeavesNewerSession(t *testing.T) {
	endpoint, _ := newRelayServer(t, approveAll)

	r := NewRelay(endpoint, "")
	_, err := r.Connect(context.Background(), []int64{1})
	require.NoError(t, err)

	// A connection dialed by an older, superseded Connect.
	stale, _, err := websocket.DefaultDialer.Dial(endpoint, nil)
	require.NoError(t, err)
	r.abandon(stale)

	require.NoError(t, r.SwitchChain(context.Background(), 137))
	select {
	case e := <-r.Events():
		t.Fatalf("abandoning an old connection must not emit an event, got %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
	require.NoError(t, r.Disconnect(context.Background()))
}
