// Package memory is an in-process marketplace actor used for development and
// tests. It enforces the ownership rules a real actor would.
package memory

import (
	"context"
	"errors"
	"math/big"
	"sort"
	"strconv"
	"sync"
	"time"

	"nftmarket/pkg/market"
	"nftmarket/pkg/models"
)

var (
	ErrNotFound     = errors.New("nft not found")
	ErrNotOwner     = errors.New("caller is not the owner")
	ErrNotForSale   = errors.New("nft is not for sale")
	ErrOwnPurchase  = errors.New("cannot purchase your own nft")
	ErrNoCaller     = errors.New("anonymous caller")
	ErrInvalidPrice = errors.New("price must be greater than zero")
)

// Backend implements market.Backend in memory.
type Backend struct {
	mu     sync.RWMutex
	nfts   map[models.EntityID]*models.NFT
	nextID uint64
	now    func() time.Time
}

func New() *Backend {
	return &Backend{
		nfts: make(map[models.EntityID]*models.NFT),
		now:  time.Now,
	}
}

var _ market.Backend = (*Backend)(nil)

func (b *Backend) MintNFT(ctx context.Context, input models.NFTInput) (models.EntityID, error) {
	caller := market.CallerFrom(ctx)
	if caller == "" {
		return "", ErrNoCaller
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := strconv.FormatUint(b.nextID, 10)
	b.nfts[id] = &models.NFT{
		ID:          id,
		Name:        input.Name,
		Description: input.Description,
		Metadata:    input.Metadata,
		Image:       append([]byte(nil), input.Image...),
		Owner:       caller,
		Price:       new(big.Int),
		CreatedAt:   b.now().UnixNano(),
	}
	return id, nil
}

func (b *Backend) GetNFT(_ context.Context, id models.EntityID) (*models.NFT, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.nfts[id].Clone(), nil
}

func (b *Backend) GetAllNFTs(context.Context) ([]models.NFT, error) {
	return b.filter(func(*models.NFT) bool { return true }), nil
}

func (b *Backend) GetNFTsForSale(context.Context) ([]models.NFT, error) {
	return b.filter(func(n *models.NFT) bool { return n.ForSale }), nil
}

func (b *Backend) GetNFTsByOwner(_ context.Context, owner string) ([]models.NFT, error) {
	return b.filter(func(n *models.NFT) bool { return n.Owner == owner }), nil
}

func (b *Backend) SetSaleStatus(ctx context.Context, status models.SaleStatus) error {
	caller := market.CallerFrom(ctx)
	b.mu.Lock()
	defer b.mu.Unlock()
	nft, ok := b.nfts[status.ID]
	if !ok {
		return ErrNotFound
	}
	if nft.Owner != caller {
		return ErrNotOwner
	}
	if status.ForSale && (status.Price == nil || status.Price.Sign() <= 0) {
		return ErrInvalidPrice
	}
	nft.ForSale = status.ForSale
	if status.ForSale {
		nft.Price = new(big.Int).Set(status.Price)
	} else {
		nft.Price = new(big.Int)
	}
	return nil
}

func (b *Backend) PurchaseNFT(ctx context.Context, id models.EntityID) error {
	caller := market.CallerFrom(ctx)
	if caller == "" {
		return ErrNoCaller
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	nft, ok := b.nfts[id]
	switch {
	case !ok:
		return ErrNotFound
	case !nft.ForSale:
		return ErrNotForSale
	case nft.Owner == caller:
		return ErrOwnPurchase
	}
	nft.Owner = caller
	nft.ForSale = false
	nft.Price = new(big.Int)
	return nil
}

// filter returns matching NFTs ordered by numeric id.
func (b *Backend) filter(keep func(*models.NFT) bool) []models.NFT {
	b.mu.RLock()
	out := make([]models.NFT, 0, len(b.nfts))
	for _, n := range b.nfts {
		if keep(n) {
			out = append(out, *n.Clone())
		}
	}
	b.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		a, _ := strconv.ParseUint(out[i].ID, 10, 64)
		c, _ := strconv.ParseUint(out[j].ID, 10, 64)
		return a < c
	})
	return out
}
