package memory

import (
	"context"
	"math/big"
	"testing"

	"nftmarket/pkg/market"
	"nftmarket/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func as(caller string) context.Context {
	return market.WithCaller(context.Background(), caller)
}

func TestMintAndQuery(t *testing.T) {
	b := New()
	_, err := b.MintNFT(context.Background(), models.NFTInput{Name: "x"})
	assert.ErrorIs(t, err, ErrNoCaller)

	id1, err := b.MintNFT(as("alice"), models.NFTInput{Name: "a", Description: "d", Image: []byte{1}})
	require.NoError(t, err)
	id2, err := b.MintNFT(as("bob"), models.NFTInput{Name: "b", Description: "d", Image: []byte{2}})
	require.NoError(t, err)
	assert.Equal(t, "1", id1)
	assert.Equal(t, "2", id2)

	nft, err := b.GetNFT(context.Background(), id1)
	require.NoError(t, err)
	assert.Equal(t, "alice", nft.Owner)
	assert.False(t, nft.ForSale)
	assert.NotZero(t, nft.CreatedAt)

	missing, err := b.GetNFT(context.Background(), "99")
	require.NoError(t, err)
	assert.Nil(t, missing)

	all, _ := b.GetAllNFTs(context.Background())
	assert.Len(t, all, 2)
	mine, _ := b.GetNFTsByOwner(context.Background(), "bob")
	require.Len(t, mine, 1)
	assert.Equal(t, id2, mine[0].ID)
}

func TestSaleAndPurchase(t *testing.T) {
	b := New()
	id, err := b.MintNFT(as("alice"), models.NFTInput{Name: "a", Description: "d", Image: []byte{1}})
	require.NoError(t, err)

	assert.ErrorIs(t, b.SetSaleStatus(as("bob"), models.SaleStatus{ID: id, ForSale: true, Price: big.NewInt(5)}), ErrNotOwner)
	assert.ErrorIs(t, b.SetSaleStatus(as("alice"), models.SaleStatus{ID: id, ForSale: true}), ErrInvalidPrice)
	assert.ErrorIs(t, b.SetSaleStatus(as("alice"), models.SaleStatus{ID: "7"}), ErrNotFound)
	assert.ErrorIs(t, b.PurchaseNFT(as("bob"), id), ErrNotForSale)

	require.NoError(t, b.SetSaleStatus(as("alice"), models.SaleStatus{ID: id, ForSale: true, Price: big.NewInt(5)}))
	sale, _ := b.GetNFTsForSale(context.Background())
	require.Len(t, sale, 1)
	assert.Equal(t, int64(5), sale[0].Price.Int64())

	assert.ErrorIs(t, b.PurchaseNFT(as("alice"), id), ErrOwnPurchase)
	require.NoError(t, b.PurchaseNFT(as("bob"), id))

	nft, _ := b.GetNFT(context.Background(), id)
	assert.Equal(t, "bob", nft.Owner)
	assert.False(t, nft.ForSale)
	assert.Equal(t, int64(0), nft.Price.Int64())
	sale, _ = b.GetNFTsForSale(context.Background())
	assert.Empty(t, sale)
}

func TestReturnsCopies(t *testing.T) {
	b := New()
	id, _ := b.MintNFT(as("alice"), models.NFTInput{Name: "a", Description: "d", Image: []byte{1}})
	nft, _ := b.GetNFT(context.Background(), id)
	nft.Owner = "mallory"
	again, _ := b.GetNFT(context.Background(), id)
	assert.Equal(t, "alice", again.Owner)
}
