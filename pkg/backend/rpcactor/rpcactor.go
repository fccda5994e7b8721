// Package rpcactor talks to the marketplace actor over JSON-RPC. Methods live
// in the "market" namespace; mutations carry the caller as their first param.
package rpcactor

import (
	"context"
	"fmt"
	"time"

	"nftmarket/pkg/market"
	"nftmarket/pkg/models"

	"github.com/ethereum/go-ethereum/rpc"
)

const Namespace = "market"

// Client implements market.Backend against a remote actor.
type Client struct {
	rpc     *rpc.Client
	timeout time.Duration
}

var _ market.Backend = (*Client)(nil)

// Dial connects to the actor at url (http, https, ws or wss).
func Dial(ctx context.Context, url string) (*Client, error) {
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial actor %s: %w", url, err)
	}
	return NewClient(c), nil
}

func NewClient(c *rpc.Client) *Client {
	return &Client{rpc: c, timeout: 30 * time.Second}
}

func (c *Client) Close() {
	c.rpc.Close()
}

func (c *Client) call(ctx context.Context, result any, method string, args ...any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.rpc.CallContext(ctx, result, Namespace+"_"+method, args...)
}

func (c *Client) MintNFT(ctx context.Context, input models.NFTInput) (models.EntityID, error) {
	var id models.EntityID
	if err := c.call(ctx, &id, "mintNFT", market.CallerFrom(ctx), input); err != nil {
		return "", err
	}
	return id, nil
}

func (c *Client) GetNFT(ctx context.Context, id models.EntityID) (*models.NFT, error) {
	var nft *models.NFT
	if err := c.call(ctx, &nft, "getNFT", id); err != nil {
		return nil, err
	}
	return nft, nil
}

func (c *Client) GetAllNFTs(ctx context.Context) ([]models.NFT, error) {
	return c.list(ctx, "getAllNFTs")
}

func (c *Client) GetNFTsForSale(ctx context.Context) ([]models.NFT, error) {
	return c.list(ctx, "getNFTsForSale")
}

func (c *Client) GetNFTsByOwner(ctx context.Context, owner string) ([]models.NFT, error) {
	return c.list(ctx, "getNFTsByOwner", owner)
}

func (c *Client) SetSaleStatus(ctx context.Context, status models.SaleStatus) error {
	return c.call(ctx, nil, "setSaleStatus", market.CallerFrom(ctx), status)
}

func (c *Client) PurchaseNFT(ctx context.Context, id models.EntityID) error {
	return c.call(ctx, nil, "purchaseNFT", market.CallerFrom(ctx), id)
}

func (c *Client) list(ctx context.Context, method string, args ...any) ([]models.NFT, error) {
	var out []models.NFT
	if err := c.call(ctx, &out, method, args...); err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.NFT{}
	}
	return out, nil
}
