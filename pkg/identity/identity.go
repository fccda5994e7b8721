// Package identity issues the per-installation token that scopes ownership
// queries when no wallet is in charge of them.
package identity

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// StorageKey is the key the token is persisted under.
const StorageKey = "nft_marketplace_owner_id"

const suffixLen = 9

// Storage is a durable string key-value store.
type Storage interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Identity reads, creates and clears the local owner token.
type Identity struct {
	store Storage
	now   func() time.Time

	mu         sync.Mutex
	lastMillis int64
}

func New(store Storage) *Identity {
	return &Identity{store: store, now: time.Now}
}

// GetOrCreate returns the stored token, generating and persisting one the
// first time.
func (i *Identity) GetOrCreate(ctx context.Context) (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	token, ok, err := i.store.Get(ctx, StorageKey)
	if err != nil {
		return "", fmt.Errorf("read identity: %w", err)
	}
	if ok && token != "" {
		return token, nil
	}

	token, err = i.generate()
	if err != nil {
		return "", err
	}
	if err := i.store.Set(ctx, StorageKey, token); err != nil {
		return "", fmt.Errorf("persist identity: %w", err)
	}
	return token, nil
}

// Clear forgets the token; the next GetOrCreate issues a new one.
func (i *Identity) Clear(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.store.Delete(ctx, StorageKey); err != nil {
		return fmt.Errorf("clear identity: %w", err)
	}
	return nil
}

// generate builds user_{unix-millis}_{9 base36 chars}. Millis never repeat
// within a process, so consecutive tokens differ even if the random part
// collided.
func (i *Identity) generate() (string, error) {
	millis := i.now().UnixMilli()
	if millis <= i.lastMillis {
		millis = i.lastMillis + 1
	}
	i.lastMillis = millis

	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate identity: %w", err)
	}
	suffix := new(big.Int).SetBytes(id[:]).Text(36)
	if len(suffix) > suffixLen {
		suffix = suffix[len(suffix)-suffixLen:]
	} else {
		suffix = strings.Repeat("0", suffixLen-len(suffix)) + suffix
	}
	return fmt.Sprintf("user_%d_%s", millis, suffix), nil
}
