// Package rpc holds the read-only chain calls the marketplace makes directly:
// chain id probes for check-config, endpoint latency for the chains view and
// ENS reverse resolution for wallet display names.
package rpc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ENSRegistry is the ENS registry address on Ethereum mainnet.
const ENSRegistry = "0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e"

var (
	// resolver(bytes32) selector: 0x0178b8bf
	resolverSelector = []byte{0x01, 0x78, 0xb8, 0xbf}
	// name(bytes32) selector: 0x691f3431
	nameSelector = []byte{0x69, 0x1f, 0x34, 0x31}
)

// ErrNoName is returned when an address has no reverse record.
var ErrNoName = errors.New("no reverse record")

// ProbeChainID dials rpcURL and returns the chain id it reports.
func ProbeChainID(ctx context.Context, rpcURL string) (int64, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return 0, err
	}
	defer client.Close()

	id, err := client.ChainID(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get ChainID: %w", err)
	}
	return id.Int64(), nil
}

// FetchRPCLatency pings an RPC URL and measures the round trip of a header
// request.
func FetchRPCLatency(ctx context.Context, rpcURL string) (time.Duration, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return 0, err
	}
	defer client.Close()

	if _, err := client.HeaderByNumber(ctx, nil); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

// ReverseResolver looks up the primary ENS name of an address.
type ReverseResolver struct {
	rpcURLs  []string
	registry common.Address
	timeout  time.Duration
}

func NewReverseResolver(rpcURLs ...string) *ReverseResolver {
	return &ReverseResolver{
		rpcURLs:  rpcURLs,
		registry: common.HexToAddress(ENSRegistry),
		timeout:  5 * time.Second,
	}
}

// ResolveName returns the reverse record for address, trying each endpoint in
// turn. ErrNoName means the lookup succeeded but nothing is registered.
func (r *ReverseResolver) ResolveName(ctx context.Context, address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("invalid address %q", address)
	}
	node := Namehash(strings.ToLower(common.HexToAddress(address).Hex()[2:]) + ".addr.reverse")

	var lastErr error = errors.New("no rpc endpoints")
	for _, rpcURL := range r.rpcURLs {
		name, err := r.resolveVia(ctx, rpcURL, node)
		if err == nil || errors.Is(err, ErrNoName) {
			return name, err
		}
		lastErr = err
	}
	return "", lastErr
}

func (r *ReverseResolver) resolveVia(ctx context.Context, rpcURL string, node common.Hash) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return "", err
	}
	defer client.Close()

	data := append(append([]byte{}, resolverSelector...), node.Bytes()...)
	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &r.registry, Data: data}, nil)
	if err != nil {
		return "", err
	}
	if len(res) < 32 {
		return "", ErrNoName
	}
	resolver := common.BytesToAddress(res[12:32])
	if resolver == (common.Address{}) {
		return "", ErrNoName
	}

	data = append(append([]byte{}, nameSelector...), node.Bytes()...)
	res, err = client.CallContract(ctx, ethereum.CallMsg{To: &resolver, Data: data}, nil)
	if err != nil {
		return "", err
	}
	name := decodeString(res)
	if name == "" {
		return "", ErrNoName
	}
	return name, nil
}

// Namehash implements the ENS name hashing algorithm.
func Namehash(name string) common.Hash {
	var node common.Hash
	if name == "" {
		return node
	}
	labels := strings.Split(name, ".")
	for i := len(labels) - 1; i >= 0; i-- {
		label := crypto.Keccak256([]byte(labels[i]))
		node = common.BytesToHash(crypto.Keccak256(node.Bytes(), label))
	}
	return node
}

// decodeString reads an ABI encoded string return value.
func decodeString(res []byte) string {
	if len(res) == 32 {
		return string(bytes.TrimRight(res, "\x00"))
	}
	if len(res) < 64 {
		return ""
	}
	offset := new(big.Int).SetBytes(res[:32])
	if !offset.IsInt64() || offset.Int64()+32 > int64(len(res)) {
		return ""
	}
	start := int(offset.Int64())
	length := new(big.Int).SetBytes(res[start : start+32]).Int64()
	if length <= 0 || start+32+int(length) > len(res) {
		return ""
	}
	return string(res[start+32 : start+32+int(length)])
}
