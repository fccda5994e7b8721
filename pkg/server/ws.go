package server

import (
	"context"
	"net/http"

	"nftmarket/pkg/events"

	"github.com/gorilla/websocket"
)

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	// Register and send the initial state under the lock so a broadcast
	// cannot interleave with the first write.
	s.mu.Lock()
	s.clients[conn] = true
	err = conn.WriteJSON(map[string]interface{}{
		"type": "initial",
		"data": map[string]interface{}{
			"wallet": s.svc.Session.Snapshot(),
			"cache":  s.svc.Market.Cache().Entries(),
		},
	})
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
	}()
	if err != nil {
		return
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (s *Server) listen(ctx context.Context) {
	sub := s.svc.Hub.Subscribe()
	defer s.svc.Hub.Unsubscribe(sub)

	for {
		select {
		case event, ok := <-sub:
			if !ok {
				return
			}
			s.broadcast(event)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) broadcast(event events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for client := range s.clients {
		if err := client.WriteJSON(event); err != nil {
			_ = client.Close()
			delete(s.clients, client)
		}
	}
}

func (s *Server) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for client := range s.clients {
		_ = client.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		_ = client.Close()
		delete(s.clients, client)
	}
}
