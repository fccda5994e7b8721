package models

import (
	"math/big"
)

// EntityID identifies an NFT in the backend actor.
type EntityID = string

// NFT is a marketplace entity as returned by the backend actor.
type NFT struct {
	ID          EntityID `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Metadata    string   `json:"metadata,omitempty"`
	Image       []byte   `json:"image,omitempty"`
	Owner       string   `json:"owner"`
	ForSale     bool     `json:"forSale"`
	Price       *big.Int `json:"price"`
	CreatedAt   int64    `json:"createdAt"`
}

// Clone returns a deep copy so cached values are never shared with callers.
func (n *NFT) Clone() *NFT {
	if n == nil {
		return nil
	}
	cp := *n
	if n.Image != nil {
		cp.Image = append([]byte(nil), n.Image...)
	}
	if n.Price != nil {
		cp.Price = new(big.Int).Set(n.Price)
	}
	return &cp
}

// NFTInput is the payload for minting.
type NFTInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Metadata    string `json:"metadata,omitempty"`
	Image       []byte `json:"image"`
}

// SaleStatus is the payload for listing or unlisting an NFT.
type SaleStatus struct {
	ID      EntityID `json:"id"`
	ForSale bool     `json:"forSale"`
	Price   *big.Int `json:"price,omitempty"`
}

// ChainResult holds test results for a specific chain.
type ChainResult struct {
	Name            string      `json:"name"`
	ConfigChainID   int64       `json:"config_chain_id"`
	RPCs            []RPCResult `json:"rpcs"`
	Inconsistent    bool        `json:"inconsistent"`
	ChainIDUpdated  bool        `json:"chain_id_updated"`
	ObservedChainID int64       `json:"observed_chain_id,omitempty"`
}

// RPCResult holds test results for a specific RPC URL.
type RPCResult struct {
	URL     string `json:"url"`
	Status  string `json:"status"` // "ok" or "error"
	ChainID int64  `json:"chain_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// TestReport holds the results of the configuration test.
type TestReport struct {
	ConfigPath         string        `json:"config_path"`
	ValidStructure     bool          `json:"valid_structure"`
	StructureErrors    []string      `json:"structure_errors,omitempty"`
	ChainCount         int           `json:"chain_count"`
	ConnectorCount     int           `json:"connector_count"`
	Chains             []ChainResult `json:"chains,omitempty"`
	InconsistentChains []string      `json:"inconsistent_chains,omitempty"`
	ConfigUpdated      bool          `json:"config_updated"`
	SaveError          string        `json:"save_error,omitempty"`
	DryRun             bool          `json:"dry_run"`
}
