package server

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nftmarket/pkg/backend/memory"
	"nftmarket/pkg/cache"
	"nftmarket/pkg/chains"
	"nftmarket/pkg/config"
	"nftmarket/pkg/connector"
	"nftmarket/pkg/events"
	"nftmarket/pkg/identity"
	"nftmarket/pkg/market"
	"nftmarket/pkg/models"
	"nftmarket/pkg/wallet"
	"nftmarket/pkg/watcher"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWallet struct {
	address string
	events  chan connector.Event
}

func (f *fakeWallet) Connect(_ context.Context, _ []int64) (connector.Account, error) {
	return connector.Account{Address: f.address, ChainID: 1}, nil
}

func (f *fakeWallet) SwitchChain(context.Context, int64) error { return nil }
func (f *fakeWallet) Disconnect(context.Context) error         { return nil }
func (f *fakeWallet) Events() <-chan connector.Event           { return f.events }

type fixture struct {
	srv     *Server
	hub     *events.Hub
	backend *memory.Backend
	owner   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	hub := &events.Hub{}
	registry := chains.Default()
	set, err := connector.NewSet(registry.IDs(), connector.Connector{
		ID:         "injected",
		Handshaker: &fakeWallet{address: "0x00000000000000000000000000000000000000Aa", events: make(chan connector.Event)},
	})
	require.NoError(t, err)

	session := wallet.NewSession(set, registry, wallet.WithHub(hub))
	id := identity.New(identity.NewMemoryStorage())
	owner, err := id.GetOrCreate(context.Background())
	require.NoError(t, err)

	backend := memory.New()
	c := cache.New(cache.WithHub(hub))
	scope := market.NewOwnerScope(config.OwnerScopeLocal, id, session)
	co := market.NewCoordinator(backend, c, scope, market.WithHub(hub))

	s := NewServer(Services{
		Session:    session,
		Market:     co,
		Chains:     registry,
		Connectors: set,
		Watcher:    watcher.NewWatcher(c, 0, watcher.WithHub(hub)),
		Hub:        hub,
	})
	return &fixture{srv: s, hub: hub, backend: backend, owner: owner}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rr := httptest.NewRecorder()
	f.srv.mux.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v))
	return v
}

func TestHandleStatus(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodGet, "/api/status", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	resp := decodeBody[map[string]interface{}](t, rr)
	assert.Contains(t, resp, "wallet")
	assert.Equal(t, f.owner, resp["owner"])
	assert.Equal(t, "local", resp["owner_scope"])
}

func TestChainsAndConnectors(t *testing.T) {
	f := newFixture(t)
	list := decodeBody[[]chains.Chain](t, f.do(t, http.MethodGet, "/api/chains", nil))
	require.NotEmpty(t, list)
	assert.Equal(t, "Ethereum", list[0].Name)

	conns := decodeBody[[]map[string]string](t, f.do(t, http.MethodGet, "/api/connectors", nil))
	require.Len(t, conns, 1)
	assert.Equal(t, "injected", conns[0]["id"])
}

func TestWalletLifecycle(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, http.MethodPost, "/api/wallet/connect", connectRequest{})
	require.Equal(t, http.StatusOK, rr.Code)
	snap := decodeBody[wallet.Snapshot](t, rr)
	assert.Equal(t, "connected", snap.Status)
	assert.Equal(t, "0x0000...00Aa", snap.DisplayName)

	rr = f.do(t, http.MethodPost, "/api/wallet/switch", switchRequest{ChainID: 137})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Polygon", decodeBody[wallet.Snapshot](t, rr).ChainName)

	rr = f.do(t, http.MethodPost, "/api/wallet/switch", switchRequest{ChainID: 424242})
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "CHAIN_SWITCH_REJECTED", decodeBody[errorResponse](t, rr).Code)

	rr = f.do(t, http.MethodPost, "/api/wallet/disconnect", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "disconnected", decodeBody[wallet.Snapshot](t, rr).Status)

	rr = f.do(t, http.MethodPost, "/api/wallet/connect", connectRequest{Connector: "ledger"})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = f.do(t, http.MethodGet, "/api/wallet", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	snap := decodeBody[wallet.Snapshot](t, rr)
	assert.Equal(t, "disconnected", snap.Status)
	assert.NotEmpty(t, snap.Error)
}

func TestMintValidationNamesField(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodPost, "/api/nfts", models.NFTInput{Name: "x", Image: []byte{1}})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	resp := decodeBody[errorResponse](t, rr)
	assert.Equal(t, "PRECONDITION_VIOLATION", resp.Code)
	assert.Equal(t, "description", resp.Field)
}

func TestMarketFlow(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, http.MethodPost, "/api/nfts", models.NFTInput{Name: "Dawn", Description: "first light", Image: []byte{1, 2}})
	require.Equal(t, http.StatusCreated, rr.Code)
	id := decodeBody[map[string]string](t, rr)["id"]
	require.NotEmpty(t, id)

	mine := decodeBody[[]models.NFT](t, f.do(t, http.MethodGet, "/api/nfts/mine", nil))
	require.Len(t, mine, 1)
	assert.Equal(t, f.owner, mine[0].Owner)

	rr = f.do(t, http.MethodPost, "/api/nfts/"+id+"/sale", saleRequest{ForSale: true, Price: "0"})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "price", decodeBody[errorResponse](t, rr).Field)

	rr = f.do(t, http.MethodPost, "/api/nfts/"+id+"/sale", saleRequest{ForSale: true, Price: "abc"})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = f.do(t, http.MethodPost, "/api/nfts/"+id+"/sale", saleRequest{ForSale: true, Price: "1000"})
	require.Equal(t, http.StatusNoContent, rr.Code)

	sale := decodeBody[[]models.NFT](t, f.do(t, http.MethodGet, "/api/nfts/for-sale", nil))
	require.Len(t, sale, 1)
	assert.Equal(t, int64(1000), sale[0].Price.Int64())

	// Buying your own listing is refused before reaching the backend.
	rr = f.do(t, http.MethodPost, "/api/nfts/"+id+"/purchase", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "owner", decodeBody[errorResponse](t, rr).Field)

	nft := decodeBody[models.NFT](t, f.do(t, http.MethodGet, "/api/nfts/"+id, nil))
	assert.Equal(t, "Dawn", nft.Name)

	byOwner := decodeBody[[]models.NFT](t, f.do(t, http.MethodGet, "/api/owners/"+f.owner+"/nfts", nil))
	assert.Len(t, byOwner, 1)

	all := decodeBody[[]models.NFT](t, f.do(t, http.MethodGet, "/api/nfts", nil))
	assert.Len(t, all, 1)
}

func TestPurchaseFromAnotherOwner(t *testing.T) {
	f := newFixture(t)
	seller := market.WithCaller(context.Background(), "seller")
	id, err := f.backend.MintNFT(seller, models.NFTInput{Name: "a", Description: "b", Image: []byte{1}})
	require.NoError(t, err)

	rr := f.do(t, http.MethodPost, "/api/nfts/"+id+"/purchase", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "for_sale", decodeBody[errorResponse](t, rr).Field)

	require.NoError(t, f.backend.SetSaleStatus(seller, models.SaleStatus{ID: id, ForSale: true, Price: bigOne()}))
	// The cached by-id entry still says not for sale.
	f.srv.svc.Market.Cache().Invalidate(cache.Exact(cache.ByID(id)))

	rr = f.do(t, http.MethodPost, "/api/nfts/"+id+"/purchase", nil)
	require.Equal(t, http.StatusNoContent, rr.Code)
	nft := decodeBody[models.NFT](t, f.do(t, http.MethodGet, "/api/nfts/"+id, nil))
	assert.Equal(t, f.owner, nft.Owner)
}

func TestNFTNotFound(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodGet, "/api/nfts/999", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestBadJSON(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/api/nfts", strings.NewReader("{"))
	rr := httptest.NewRecorder()
	f.srv.mux.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCacheAndRefresh(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodGet, "/api/nfts/for-sale", nil)

	entries := decodeBody[[]map[string]interface{}](t, f.do(t, http.MethodGet, "/api/cache", nil))
	require.Len(t, entries, 1)
	assert.Equal(t, "for-sale:all", entries[0]["descriptor"])
	assert.Equal(t, "fresh", entries[0]["status"])

	refresh := decodeBody[watcher.Refresh](t, f.do(t, http.MethodPost, "/api/cache/refresh", nil))
	assert.Equal(t, 1, refresh.Count)
}

func TestHandleWS(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.srv.listen(ctx)
	require.Eventually(t, func() bool { return f.hub.Len() == 1 }, time.Second, time.Millisecond)

	server := httptest.NewServer(f.srv.mux)
	defer server.Close()

	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	defer func() { _ = ws.Close() }()

	var msg map[string]interface{}
	require.NoError(t, ws.ReadJSON(&msg))
	assert.Equal(t, "initial", msg["type"])

	f.do(t, http.MethodPost, "/api/wallet/connect", nil)

	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	seen := map[string]bool{}
	for !seen[string(events.AccountChanged)] {
		var ev map[string]interface{}
		require.NoError(t, ws.ReadJSON(&ev))
		seen[ev["type"].(string)] = true
	}
	assert.True(t, seen[string(events.WalletStateChanged)])
}

func bigOne() *big.Int { return big.NewInt(1) }
