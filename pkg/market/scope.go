package market

import (
	"context"
	"strings"

	"nftmarket/pkg/config"
)

// IdentitySource yields the local per-installation owner token.
type IdentitySource interface {
	GetOrCreate(ctx context.Context) (string, error)
}

// AddressSource yields the connected wallet address, or "".
type AddressSource interface {
	Address() string
}

// OwnerScope decides which identity owns things: the local token, or the
// connected wallet address when configured for wallet scope.
type OwnerScope struct {
	mode     string
	identity IdentitySource
	wallet   AddressSource
}

func NewOwnerScope(mode string, identity IdentitySource, wallet AddressSource) *OwnerScope {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "" {
		mode = config.OwnerScopeLocal
	}
	return &OwnerScope{mode: mode, identity: identity, wallet: wallet}
}

func (o *OwnerScope) Mode() string {
	return o.mode
}

// Owner resolves the current caller identity.
func (o *OwnerScope) Owner(ctx context.Context) (string, error) {
	var addr string
	if o.wallet != nil {
		addr = o.wallet.Address()
	}
	return o.OwnerFor(ctx, addr)
}

// FollowsWallet reports whether owner-keyed queries change with the wallet.
func (o *OwnerScope) FollowsWallet() bool {
	return o.mode == config.OwnerScopeWallet
}

// OwnerFor returns the owner identity that applies while address is the
// connected wallet ("" meaning none).
func (o *OwnerScope) OwnerFor(ctx context.Context, address string) (string, error) {
	if o.mode == config.OwnerScopeWallet && address != "" {
		return address, nil
	}
	return o.identity.GetOrCreate(ctx)
}
