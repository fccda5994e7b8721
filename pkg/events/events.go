// Package events fans out state changes from the wallet session, the entity
// cache and the mutation coordinator to the server and the terminal UI.
package events

import "sync"

// Type defines the type of event being broadcast.
type Type string

const (
	WalletStateChanged Type = "wallet_state_changed"
	AccountChanged     Type = "account_changed"
	CacheInvalidated   Type = "cache_invalidated"
	MutationCompleted  Type = "mutation_completed"
	ListingsRefreshed  Type = "listings_refreshed"
)

// Event represents a state change notification.
type Event struct {
	Type Type        `json:"type"`
	Data interface{} `json:"data"`
}

// Subscriber is a channel that receives events.
type Subscriber chan Event

// Hub delivers events to subscribers without blocking the publisher. A slow
// subscriber misses events rather than stalling the session. The zero value
// is ready to use.
type Hub struct {
	mu          sync.RWMutex
	subscribers []Subscriber
}

// Subscribe adds a new subscriber and returns a channel to receive events.
func (h *Hub) Subscribe() Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(Subscriber, 100)
	h.subscribers = append(h.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(ch Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, sub := range h.subscribers {
		if sub == ch {
			h.subscribers = append(h.subscribers[:i], h.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

func (h *Hub) Publish(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subscribers {
		select {
		case sub <- event:
		default:
		}
	}
}

// Len reports the number of subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
