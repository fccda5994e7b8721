package market

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"nftmarket/pkg/cache"
	"nftmarket/pkg/config"
	"nftmarket/pkg/errs"
	"nftmarket/pkg/events"
	"nftmarket/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) MintNFT(ctx context.Context, input models.NFTInput) (models.EntityID, error) {
	args := m.Called(ctx, input)
	return args.String(0), args.Error(1)
}

func (m *MockBackend) GetNFT(ctx context.Context, id models.EntityID) (*models.NFT, error) {
	args := m.Called(ctx, id)
	nft, _ := args.Get(0).(*models.NFT)
	return nft, args.Error(1)
}

func (m *MockBackend) GetAllNFTs(ctx context.Context) ([]models.NFT, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.NFT), args.Error(1)
}

func (m *MockBackend) GetNFTsForSale(ctx context.Context) ([]models.NFT, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.NFT), args.Error(1)
}

func (m *MockBackend) GetNFTsByOwner(ctx context.Context, owner string) ([]models.NFT, error) {
	args := m.Called(ctx, owner)
	return args.Get(0).([]models.NFT), args.Error(1)
}

func (m *MockBackend) SetSaleStatus(ctx context.Context, status models.SaleStatus) error {
	args := m.Called(ctx, status)
	return args.Error(0)
}

func (m *MockBackend) PurchaseNFT(ctx context.Context, id models.EntityID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type staticIdentity string

func (s staticIdentity) GetOrCreate(context.Context) (string, error) { return string(s), nil }

type staticWallet string

func (s staticWallet) Address() string { return string(s) }

type recordingSink struct {
	mu      sync.Mutex
	records []MutationRecord
}

func (r *recordingSink) Publish(_ context.Context, rec MutationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

func (r *recordingSink) Close() error { return nil }

const me = "user_1700000000000_abcdefghi"

func newCoordinator(t *testing.T, backend *MockBackend, opts ...Option) *Coordinator {
	t.Helper()
	scope := NewOwnerScope(config.OwnerScopeLocal, staticIdentity(me), nil)
	return NewCoordinator(backend, cache.New(), scope, opts...)
}

// prime fills the cache with fresh entries for ds.
func prime(t *testing.T, c *cache.Cache, ds ...cache.Descriptor) {
	t.Helper()
	for _, d := range ds {
		_, err := cache.Fetch(context.Background(), c, d, func(context.Context) ([]models.NFT, error) {
			return nil, nil
		})
		require.NoError(t, err)
	}
}

func primeNFT(t *testing.T, c *cache.Cache, nft *models.NFT) {
	t.Helper()
	_, err := cache.Fetch(context.Background(), c, cache.ByID(nft.ID), func(context.Context) (*models.NFT, error) {
		return nft, nil
	})
	require.NoError(t, err)
}

func stale(c *cache.Cache) []string {
	var out []string
	for _, e := range c.Entries() {
		if e.Status == cache.StatusStale {
			out = append(out, e.Descriptor.String())
		}
	}
	return out
}

func validInput() models.NFTInput {
	return models.NFTInput{Name: "Sunset", Description: "Orange sky", Image: []byte{0x89, 0x50, 0x4e, 0x47}}
}

func TestMintPreconditions(t *testing.T) {
	tests := []struct {
		name  string
		input models.NFTInput
		field string
	}{
		{"missing name", models.NFTInput{Description: "d", Image: []byte{1}}, "name"},
		{"blank name", models.NFTInput{Name: "  ", Description: "d", Image: []byte{1}}, "name"},
		{"missing description", models.NFTInput{Name: "n", Image: []byte{1}}, "description"},
		{"missing image", models.NFTInput{Name: "n", Description: "d"}, "image"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := new(MockBackend)
			co := newCoordinator(t, backend)

			_, err := co.Mint(context.Background(), tt.input)
			require.ErrorIs(t, err, errs.ErrPreconditionViolation)
			var coded *errs.Error
			require.ErrorAs(t, err, &coded)
			assert.Equal(t, tt.field, coded.Field())
			backend.AssertNotCalled(t, "MintNFT", mock.Anything, mock.Anything)
		})
	}
}

func TestMintInvalidates(t *testing.T) {
	backend := new(MockBackend)
	sink := &recordingSink{}
	co := newCoordinator(t, backend, WithSink(sink))
	prime(t, co.Cache(),
		cache.AllNFTs(), cache.ForSale(),
		cache.ByOwner(me), cache.ByOwner("someone-else"),
		cache.ByID("42"), cache.ByID("7"),
	)

	backend.On("MintNFT", mock.MatchedBy(func(ctx context.Context) bool {
		return CallerFrom(ctx) == me
	}), validInput()).Return("42", nil).Once()

	id, err := co.Mint(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, "42", id)
	backend.AssertExpectations(t)

	assert.Equal(t, []string{"all:all", "by-id:42", "by-owner:" + me, "for-sale:all"}, stale(co.Cache()))

	require.Len(t, sink.records, 1)
	rec := sink.records[0]
	assert.Equal(t, MutationMint, rec.Kind)
	assert.Equal(t, "42", rec.TargetID)
	assert.Equal(t, me, rec.Caller)
	assert.Empty(t, rec.Error)
	assert.Len(t, rec.Invalidated, 4)
}

func TestMintFailureInvalidatesNothing(t *testing.T) {
	backend := new(MockBackend)
	sink := &recordingSink{}
	co := newCoordinator(t, backend, WithSink(sink))
	prime(t, co.Cache(), cache.AllNFTs(), cache.ByOwner(me))

	boom := errors.New("canister trapped")
	backend.On("MintNFT", mock.Anything, mock.Anything).Return("", boom).Once()

	_, err := co.Mint(context.Background(), validInput())
	require.ErrorIs(t, err, errs.ErrRemoteCallFailed)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, stale(co.Cache()))

	// Never retried.
	backend.AssertNumberOfCalls(t, "MintNFT", 1)
	require.Len(t, sink.records, 1)
	assert.NotEmpty(t, sink.records[0].Error)
}

func TestMutationSurvivesCallerCancel(t *testing.T) {
	backend := new(MockBackend)
	co := newCoordinator(t, backend)
	prime(t, co.Cache(), cache.AllNFTs())

	ctx, cancel := context.WithCancel(context.Background())
	backend.On("MintNFT", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		cancel()
		assert.NoError(t, args.Get(0).(context.Context).Err())
	}).Return("1", nil)

	_, err := co.Mint(ctx, validInput())
	require.NoError(t, err)
	assert.Contains(t, stale(co.Cache()), "all:all")
}

func TestSetSaleStatusPreconditions(t *testing.T) {
	backend := new(MockBackend)
	co := newCoordinator(t, backend)

	for _, price := range []*big.Int{nil, big.NewInt(0), big.NewInt(-5)} {
		err := co.SetSaleStatus(context.Background(), "1", true, price)
		var coded *errs.Error
		require.ErrorAs(t, err, &coded)
		assert.Equal(t, errs.CodePreconditionViolation, coded.Code)
		assert.Equal(t, "price", coded.Field())
	}
	err := co.SetSaleStatus(context.Background(), "", false, nil)
	assert.ErrorIs(t, err, errs.ErrPreconditionViolation)
	backend.AssertNotCalled(t, "SetSaleStatus", mock.Anything, mock.Anything)
}

func TestSetSaleStatusKnownOwner(t *testing.T) {
	backend := new(MockBackend)
	co := newCoordinator(t, backend)
	prime(t, co.Cache(), cache.AllNFTs(), cache.ForSale(), cache.ByOwner(me), cache.ByOwner("bob"))
	primeNFT(t, co.Cache(), &models.NFT{ID: "5", Owner: me})

	backend.On("SetSaleStatus", mock.Anything, models.SaleStatus{ID: "5", ForSale: true, Price: big.NewInt(100)}).Return(nil)

	require.NoError(t, co.SetSaleStatus(context.Background(), "5", true, big.NewInt(100)))
	assert.Equal(t, []string{"all:all", "by-id:5", "by-owner:" + me, "for-sale:all"}, stale(co.Cache()))
}

func TestSetSaleStatusUnknownOwner(t *testing.T) {
	backend := new(MockBackend)
	co := newCoordinator(t, backend)
	prime(t, co.Cache(), cache.ByOwner(me), cache.ByOwner("bob"), cache.ByID("9"))

	backend.On("SetSaleStatus", mock.Anything, models.SaleStatus{ID: "5"}).Return(nil)

	require.NoError(t, co.SetSaleStatus(context.Background(), "5", false, big.NewInt(100)))
	assert.Equal(t, []string{"by-owner:bob", "by-owner:" + me}, stale(co.Cache()))
}

func TestSetSaleStatusFailure(t *testing.T) {
	backend := new(MockBackend)
	co := newCoordinator(t, backend)
	prime(t, co.Cache(), cache.ForSale())

	backend.On("SetSaleStatus", mock.Anything, mock.Anything).Return(errors.New("not owner"))
	err := co.SetSaleStatus(context.Background(), "5", false, nil)
	assert.ErrorIs(t, err, errs.ErrRemoteCallFailed)
	assert.Empty(t, stale(co.Cache()))
}

func TestPurchasePreconditions(t *testing.T) {
	tests := []struct {
		name  string
		nft   *models.NFT
		field string
	}{
		{"missing", nil, "id"},
		{"not for sale", &models.NFT{ID: "3", Owner: "alice"}, "for_sale"},
		{"own nft", &models.NFT{ID: "3", Owner: me, ForSale: true, Price: big.NewInt(1)}, "owner"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := new(MockBackend)
			co := newCoordinator(t, backend)
			backend.On("GetNFT", mock.Anything, "3").Return(tt.nft, nil)

			err := co.Purchase(context.Background(), "3")
			var coded *errs.Error
			require.ErrorAs(t, err, &coded)
			assert.Equal(t, errs.CodePreconditionViolation, coded.Code)
			assert.Equal(t, tt.field, coded.Field())
			backend.AssertNotCalled(t, "PurchaseNFT", mock.Anything, mock.Anything)
		})
	}
}

func TestPurchaseInvalidates(t *testing.T) {
	backend := new(MockBackend)
	co := newCoordinator(t, backend)
	prime(t, co.Cache(),
		cache.AllNFTs(), cache.ForSale(),
		cache.ByOwner("alice"), cache.ByOwner(me), cache.ByOwner("carol"),
	)
	backend.On("GetNFT", mock.Anything, "3").Return(&models.NFT{ID: "3", Owner: "alice", ForSale: true, Price: big.NewInt(10)}, nil).Once()
	backend.On("PurchaseNFT", mock.MatchedBy(func(ctx context.Context) bool {
		return CallerFrom(ctx) == me
	}), "3").Return(nil).Once()

	require.NoError(t, co.Purchase(context.Background(), "3"))
	backend.AssertExpectations(t)
	assert.Equal(t, []string{
		"all:all", "by-id:3", "by-owner:alice", "by-owner:" + me, "for-sale:all",
	}, stale(co.Cache()))

	// The detail view refetches after the purchase.
	backend.On("GetNFT", mock.Anything, "3").Return(&models.NFT{ID: "3", Owner: me}, nil).Once()
	nft, err := co.NFT(context.Background(), "3")
	require.NoError(t, err)
	assert.Equal(t, me, nft.Owner)
}

func TestPurchaseFailure(t *testing.T) {
	backend := new(MockBackend)
	co := newCoordinator(t, backend)
	backend.On("GetNFT", mock.Anything, "3").Return(&models.NFT{ID: "3", Owner: "alice", ForSale: true, Price: big.NewInt(10)}, nil)
	boom := errors.New("insufficient funds")
	backend.On("PurchaseNFT", mock.Anything, "3").Return(boom)

	err := co.Purchase(context.Background(), "3")
	assert.ErrorIs(t, err, errs.ErrRemoteCallFailed)
	assert.ErrorIs(t, err, boom)
	e, ok := co.Cache().Peek(cache.ByID("3"))
	require.True(t, ok)
	assert.Equal(t, cache.StatusFresh, e.Status)
}

func TestMintThenMineRefetches(t *testing.T) {
	backend := new(MockBackend)
	co := newCoordinator(t, backend)

	backend.On("GetNFTsByOwner", mock.Anything, me).Return([]models.NFT{}, nil).Once()
	mine, err := co.Mine(context.Background())
	require.NoError(t, err)
	assert.Empty(t, mine)

	backend.On("MintNFT", mock.Anything, mock.Anything).Return("1", nil)
	_, err = co.Mint(context.Background(), validInput())
	require.NoError(t, err)

	backend.On("GetNFTsByOwner", mock.Anything, me).Return([]models.NFT{{ID: "1", Owner: me}}, nil).Once()
	mine, err = co.Mine(context.Background())
	require.NoError(t, err)
	require.Len(t, mine, 1)
	backend.AssertNumberOfCalls(t, "GetNFTsByOwner", 2)
}

func TestQueriesReturnCopies(t *testing.T) {
	backend := new(MockBackend)
	co := newCoordinator(t, backend)
	backend.On("GetAllNFTs", mock.Anything).Return([]models.NFT{{ID: "1", Name: "a", Price: big.NewInt(5)}}, nil).Once()

	all, err := co.All(context.Background())
	require.NoError(t, err)
	all[0].Name = "mutated"
	all[0].Price.SetInt64(99)

	again, err := co.All(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", again[0].Name)
	assert.Equal(t, int64(5), again[0].Price.Int64())
	backend.AssertNumberOfCalls(t, "GetAllNFTs", 1)
}

func TestForSaleAndByOwner(t *testing.T) {
	backend := new(MockBackend)
	co := newCoordinator(t, backend)
	backend.On("GetNFTsForSale", mock.Anything).Return([]models.NFT{{ID: "2", ForSale: true}}, nil)
	backend.On("GetNFTsByOwner", mock.Anything, "bob").Return([]models.NFT{{ID: "4", Owner: "bob"}}, nil)

	sale, err := co.ForSale(context.Background())
	require.NoError(t, err)
	assert.Len(t, sale, 1)

	bobs, err := co.ByOwner(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, "4", bobs[0].ID)

	none, err := co.ByOwner(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestOwnerScope(t *testing.T) {
	local := NewOwnerScope("", staticIdentity(me), staticWallet("0xABCD"))
	owner, err := local.Owner(context.Background())
	require.NoError(t, err)
	assert.Equal(t, me, owner)
	assert.False(t, local.FollowsWallet())

	wallet := NewOwnerScope("Wallet", staticIdentity(me), staticWallet("0xABCD"))
	owner, err = wallet.Owner(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0xABCD", owner)
	assert.True(t, wallet.FollowsWallet())

	disconnected := NewOwnerScope(config.OwnerScopeWallet, staticIdentity(me), staticWallet(""))
	owner, err = disconnected.Owner(context.Background())
	require.NoError(t, err)
	assert.Equal(t, me, owner)

	owner, err = wallet.OwnerFor(context.Background(), "0x1234")
	require.NoError(t, err)
	assert.Equal(t, "0x1234", owner)
	owner, err = local.OwnerFor(context.Background(), "0x1234")
	require.NoError(t, err)
	assert.Equal(t, me, owner)
}

func TestMutationEventsPublished(t *testing.T) {
	backend := new(MockBackend)
	hub := &events.Hub{}
	co := newCoordinator(t, backend, WithHub(hub))
	sub := hub.Subscribe()
	defer hub.Unsubscribe(sub)

	backend.On("MintNFT", mock.Anything, mock.Anything).Return("8", nil)
	_, err := co.Mint(context.Background(), validInput())
	require.NoError(t, err)

	ev := <-sub
	assert.Equal(t, events.MutationCompleted, ev.Type)
	assert.Equal(t, "8", ev.Data.(MutationRecord).TargetID)
}

func TestCallerContext(t *testing.T) {
	assert.Equal(t, "", CallerFrom(context.Background()))
	assert.Equal(t, "x", CallerFrom(WithCaller(context.Background(), "x")))
}
