package connector

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"nftmarket/pkg/errs"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// EIP-1193 provider error codes.
const (
	codeUserRejected      = 4001
	codeUnauthorized      = 4100
	codeUnrecognizedChain = 4902
)

// Provider speaks EIP-1193 JSON-RPC to a wallet that exposes an HTTP
// endpoint (a browser extension bridge or a desktop wallet such as Frame).
type Provider struct {
	endpoint string

	mu     sync.Mutex
	client *rpc.Client
	events chan Event
}

func NewProvider(endpoint string) *Provider {
	return &Provider{
		endpoint: endpoint,
		events:   make(chan Event, 8),
	}
}

func (p *Provider) Connect(ctx context.Context, chainIDs []int64) (Account, error) {
	client, err := rpc.DialContext(ctx, p.endpoint)
	if err != nil {
		return Account{}, fmt.Errorf("dial %s: %w", p.endpoint, err)
	}

	var accounts []string
	if err := client.CallContext(ctx, &accounts, "eth_requestAccounts"); err != nil {
		client.Close()
		return Account{}, providerError(errs.CodeHandshakeRejected, "wallet rejected the connection", err)
	}
	if len(accounts) == 0 || !common.IsHexAddress(accounts[0]) {
		client.Close()
		return Account{}, errs.New(errs.CodeHandshakeRejected, "wallet returned no accounts")
	}

	var chainID hexutil.Uint64
	if err := client.CallContext(ctx, &chainID, "eth_chainId"); err != nil {
		client.Close()
		return Account{}, fmt.Errorf("eth_chainId: %w", err)
	}

	p.mu.Lock()
	if p.client != nil {
		p.client.Close()
	}
	p.client = client
	p.mu.Unlock()

	return Account{
		Address: common.HexToAddress(accounts[0]).Hex(),
		ChainID: int64(chainID),
	}, nil
}

func (p *Provider) SwitchChain(ctx context.Context, chainID int64) error {
	client, err := p.current()
	if err != nil {
		return err
	}
	params := map[string]string{"chainId": hexutil.EncodeUint64(uint64(chainID))}
	if err := client.CallContext(ctx, nil, "wallet_switchEthereumChain", params); err != nil {
		return providerError(errs.CodeChainSwitchRejected, "wallet rejected the chain switch", err)
	}
	return nil
}

func (p *Provider) Disconnect(ctx context.Context) error {
	p.mu.Lock()
	client := p.client
	p.client = nil
	p.mu.Unlock()
	if client == nil {
		return nil
	}
	defer client.Close()

	params := map[string]any{"eth_accounts": map[string]any{}}
	err := client.CallContext(ctx, nil, "wallet_revokePermissions", params)
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		// Older wallets do not implement permission revocation.
		return nil
	}
	return err
}

// Events never fires: an HTTP bridge has no push channel.
func (p *Provider) Events() <-chan Event {
	return p.events
}

func (p *Provider) current() (*rpc.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client == nil {
		return nil, errs.ErrNotConnected
	}
	return p.client, nil
}

// providerError maps the EIP-1193 refusal codes onto code and leaves any
// other failure untouched.
func providerError(code errs.Code, msg string, err error) error {
	var rpcErr rpc.Error
	if !errors.As(err, &rpcErr) {
		return err
	}
	switch rpcErr.ErrorCode() {
	case codeUserRejected, codeUnauthorized, codeUnrecognizedChain:
		return errs.Wrap(code, msg, err)
	}
	return err
}
