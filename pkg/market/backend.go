// Package market coordinates marketplace mutations with the entity cache:
// every successful mint, listing change or purchase invalidates exactly the
// queries whose results it could have changed.
package market

import (
	"context"

	"nftmarket/pkg/models"
)

// Backend is the remote marketplace actor. GetNFT returns nil without error
// when the id is unknown. The caller identity travels in the context, see
// WithCaller.
type Backend interface {
	MintNFT(ctx context.Context, input models.NFTInput) (models.EntityID, error)
	GetNFT(ctx context.Context, id models.EntityID) (*models.NFT, error)
	GetAllNFTs(ctx context.Context) ([]models.NFT, error)
	GetNFTsForSale(ctx context.Context) ([]models.NFT, error)
	GetNFTsByOwner(ctx context.Context, owner string) ([]models.NFT, error)
	SetSaleStatus(ctx context.Context, status models.SaleStatus) error
	PurchaseNFT(ctx context.Context, id models.EntityID) error
}

type callerKey struct{}

// WithCaller attaches the acting owner identity to ctx.
func WithCaller(ctx context.Context, caller string) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFrom returns the identity attached by WithCaller, or "".
func CallerFrom(ctx context.Context) string {
	caller, _ := ctx.Value(callerKey{}).(string)
	return caller
}
