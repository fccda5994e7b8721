package rpcactor

import (
	"context"

	"nftmarket/pkg/market"
	"nftmarket/pkg/models"

	"github.com/ethereum/go-ethereum/rpc"
)

// Service exposes a market.Backend in the "market" namespace, so a Client can
// reach a backend hosted by another process.
type Service struct {
	backend market.Backend
}

func NewService(b market.Backend) *Service {
	return &Service{backend: b}
}

// NewServer returns an rpc.Server with the service registered. It serves HTTP
// and, through WebsocketHandler, websockets.
func NewServer(b market.Backend) (*rpc.Server, error) {
	srv := rpc.NewServer()
	if err := srv.RegisterName(Namespace, NewService(b)); err != nil {
		return nil, err
	}
	return srv, nil
}

func (s *Service) MintNFT(ctx context.Context, caller string, input models.NFTInput) (models.EntityID, error) {
	return s.backend.MintNFT(market.WithCaller(ctx, caller), input)
}

func (s *Service) GetNFT(ctx context.Context, id models.EntityID) (*models.NFT, error) {
	return s.backend.GetNFT(ctx, id)
}

func (s *Service) GetAllNFTs(ctx context.Context) ([]models.NFT, error) {
	return s.backend.GetAllNFTs(ctx)
}

func (s *Service) GetNFTsForSale(ctx context.Context) ([]models.NFT, error) {
	return s.backend.GetNFTsForSale(ctx)
}

func (s *Service) GetNFTsByOwner(ctx context.Context, owner string) ([]models.NFT, error) {
	return s.backend.GetNFTsByOwner(ctx, owner)
}

func (s *Service) SetSaleStatus(ctx context.Context, caller string, status models.SaleStatus) error {
	return s.backend.SetSaleStatus(market.WithCaller(ctx, caller), status)
}

func (s *Service) PurchaseNFT(ctx context.Context, caller string, id models.EntityID) error {
	return s.backend.PurchaseNFT(market.WithCaller(ctx, caller), id)
}
