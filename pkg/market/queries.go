package market

import (
	"context"

	"nftmarket/pkg/cache"
	"nftmarket/pkg/models"
)

// All returns every NFT.
func (co *Coordinator) All(ctx context.Context) ([]models.NFT, error) {
	return co.list(ctx, cache.AllNFTs(), co.backend.GetAllNFTs)
}

// ForSale returns the NFTs currently listed.
func (co *Coordinator) ForSale(ctx context.Context) ([]models.NFT, error) {
	return co.list(ctx, cache.ForSale(), co.backend.GetNFTsForSale)
}

func (co *Coordinator) ByOwner(ctx context.Context, owner string) ([]models.NFT, error) {
	if owner == "" {
		return nil, nil
	}
	return co.list(ctx, cache.ByOwner(owner), func(ctx context.Context) ([]models.NFT, error) {
		return co.backend.GetNFTsByOwner(ctx, owner)
	})
}

// Mine returns the NFTs owned by the current caller identity.
func (co *Coordinator) Mine(ctx context.Context) ([]models.NFT, error) {
	owner, err := co.scope.Owner(ctx)
	if err != nil {
		return nil, err
	}
	return co.ByOwner(WithCaller(ctx, owner), owner)
}

// NFT returns one NFT, or nil when the id is unknown.
func (co *Coordinator) NFT(ctx context.Context, id models.EntityID) (*models.NFT, error) {
	nft, err := cache.Fetch(ctx, co.cache, cache.ByID(id), func(ctx context.Context) (*models.NFT, error) {
		return co.backend.GetNFT(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return nft.Clone(), nil
}

// Owner returns the identity the coordinator acts as.
func (co *Coordinator) Owner(ctx context.Context) (string, error) {
	return co.scope.Owner(ctx)
}

func (co *Coordinator) list(ctx context.Context, d cache.Descriptor, load func(context.Context) ([]models.NFT, error)) ([]models.NFT, error) {
	nfts, err := cache.Fetch(ctx, co.cache, d, load)
	if err != nil {
		return nil, err
	}
	out := make([]models.NFT, len(nfts))
	for i := range nfts {
		out[i] = *nfts[i].Clone()
	}
	return out, nil
}
