// Package chains holds the static table of EVM chains the marketplace can
// connect to.
package chains

import (
	"fmt"
	"strings"

	"nftmarket/pkg/config"
)

// Chain is an immutable chain definition.
type Chain struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	RPCURL      string `json:"rpc_url"`
	ExplorerURL string `json:"explorer_url,omitempty"`
}

// Registry is an ordered, read-only set of chains keyed by id.
type Registry struct {
	chains []Chain
	byID   map[int64]int
}

// New builds a registry preserving the given order.
func New(list []Chain) (*Registry, error) {
	r := &Registry{
		chains: make([]Chain, 0, len(list)),
		byID:   make(map[int64]int, len(list)),
	}
	for i, c := range list {
		if strings.TrimSpace(c.Name) == "" {
			return nil, fmt.Errorf("chain at index %d has no name", i)
		}
		if _, dup := r.byID[c.ID]; dup {
			return nil, fmt.Errorf("duplicate chain id %d (%s)", c.ID, c.Name)
		}
		r.byID[c.ID] = len(r.chains)
		r.chains = append(r.chains, c)
	}
	return r, nil
}

// FromConfig builds a registry from configured chains. Chains without a
// chain id cannot be addressed by a wallet and are skipped; run check-config
// to discover their ids.
func FromConfig(cfgs []config.ChainConfig) (*Registry, error) {
	if len(cfgs) == 0 {
		return Default(), nil
	}
	list := make([]Chain, 0, len(cfgs))
	for _, c := range cfgs {
		if c.ChainID == 0 {
			continue
		}
		rpcURL := ""
		if len(c.RPCURLs) > 0 {
			rpcURL = c.RPCURLs[0]
		}
		list = append(list, Chain{
			ID:          c.ChainID,
			Name:        c.Name,
			Symbol:      c.Symbol,
			RPCURL:      rpcURL,
			ExplorerURL: c.ExplorerURL,
		})
	}
	return New(list)
}

// List returns the chains in registry order.
func (r *Registry) List() []Chain {
	out := make([]Chain, len(r.chains))
	copy(out, r.chains)
	return out
}

// IDs returns the chain ids in registry order.
func (r *Registry) IDs() []int64 {
	ids := make([]int64, len(r.chains))
	for i, c := range r.chains {
		ids[i] = c.ID
	}
	return ids
}

func (r *Registry) Lookup(id int64) (Chain, bool) {
	idx, ok := r.byID[id]
	if !ok {
		return Chain{}, false
	}
	return r.chains[idx], true
}

func (r *Registry) Contains(id int64) bool {
	_, ok := r.byID[id]
	return ok
}

// ResolveName returns the display name for id, or "Chain {id}" when unknown.
func (r *Registry) ResolveName(id int64) string {
	if c, ok := r.Lookup(id); ok {
		return c.Name
	}
	return fmt.Sprintf("Chain %d", id)
}
