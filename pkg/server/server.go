// Package server exposes the wallet session and the marketplace over HTTP,
// and pushes session, cache and mutation events to websocket clients.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"sync"
	"time"

	"nftmarket/pkg/cache"
	"nftmarket/pkg/chains"
	"nftmarket/pkg/connector"
	"nftmarket/pkg/errs"
	"nftmarket/pkg/events"
	"nftmarket/pkg/market"
	"nftmarket/pkg/models"
	"nftmarket/pkg/wallet"
	"nftmarket/pkg/watcher"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Services are the components the API serves.
type Services struct {
	Session    *wallet.Session
	Market     *market.Coordinator
	Chains     *chains.Registry
	Connectors *connector.Set
	Watcher    *watcher.Watcher
	Hub        *events.Hub
	Logger     *slog.Logger
}

type Server struct {
	svc     Services
	logger  *slog.Logger
	clients map[*websocket.Conn]bool
	mu      sync.Mutex
	mux     *http.ServeMux
}

func NewServer(svc Services) *Server {
	if svc.Hub == nil {
		svc.Hub = &events.Hub{}
	}
	logger := svc.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		svc:     svc,
		logger:  logger,
		clients: make(map[*websocket.Conn]bool),
		mux:     http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/chains", s.handleChains)
	s.mux.HandleFunc("GET /api/connectors", s.handleConnectors)

	s.mux.HandleFunc("GET /api/wallet", s.handleWallet)
	s.mux.HandleFunc("POST /api/wallet/connect", s.handleConnect)
	s.mux.HandleFunc("POST /api/wallet/switch", s.handleSwitch)
	s.mux.HandleFunc("POST /api/wallet/disconnect", s.handleDisconnect)

	s.mux.HandleFunc("GET /api/nfts", s.handleAll)
	s.mux.HandleFunc("POST /api/nfts", s.handleMint)
	s.mux.HandleFunc("GET /api/nfts/for-sale", s.handleForSale)
	s.mux.HandleFunc("GET /api/nfts/mine", s.handleMine)
	s.mux.HandleFunc("GET /api/nfts/{id}", s.handleNFT)
	s.mux.HandleFunc("POST /api/nfts/{id}/sale", s.handleSale)
	s.mux.HandleFunc("POST /api/nfts/{id}/purchase", s.handlePurchase)
	s.mux.HandleFunc("GET /api/owners/{owner}/nfts", s.handleByOwner)

	s.mux.HandleFunc("GET /api/cache", s.handleCache)
	s.mux.HandleFunc("POST /api/cache/refresh", s.handleRefresh)

	s.mux.HandleFunc("/ws", s.handleWS)
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves on addr until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	go s.listen(ctx)

	srv := &http.Server{Addr: addr, Handler: s.mux, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("API server listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.closeClients()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

type statusResponse struct {
	Wallet     wallet.Snapshot `json:"wallet"`
	Owner      string          `json:"owner,omitempty"`
	OwnerScope string          `json:"owner_scope"`
	Cached     int             `json:"cached_queries"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Wallet:     s.svc.Session.Snapshot(),
		OwnerScope: s.svc.Market.Scope().Mode(),
		Cached:     len(s.svc.Market.Cache().Entries()),
	}
	if owner, err := s.svc.Market.Owner(r.Context()); err == nil {
		resp.Owner = owner
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleChains(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Chains.List())
}

func (s *Server) handleConnectors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Connectors.List())
}

func (s *Server) handleWallet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Session.Snapshot())
}

type connectRequest struct {
	Connector string `json:"connector"`
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if !decode(w, r, &req) {
		return
	}
	if _, err := s.svc.Session.Connect(r.Context(), req.Connector); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Session.Snapshot())
}

type switchRequest struct {
	ChainID int64 `json:"chain_id"`
}

func (s *Server) handleSwitch(w http.ResponseWriter, r *http.Request) {
	var req switchRequest
	if !decode(w, r, &req) {
		return
	}
	if _, err := s.svc.Session.SwitchNetwork(r.Context(), req.ChainID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Session.Snapshot())
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	s.svc.Session.Disconnect(r.Context())
	writeJSON(w, http.StatusOK, s.svc.Session.Snapshot())
}

func (s *Server) handleAll(w http.ResponseWriter, r *http.Request) {
	s.writeList(w)(s.svc.Market.All(r.Context()))
}

func (s *Server) handleForSale(w http.ResponseWriter, r *http.Request) {
	s.writeList(w)(s.svc.Market.ForSale(r.Context()))
}

func (s *Server) handleMine(w http.ResponseWriter, r *http.Request) {
	s.writeList(w)(s.svc.Market.Mine(r.Context()))
}

func (s *Server) handleByOwner(w http.ResponseWriter, r *http.Request) {
	s.writeList(w)(s.svc.Market.ByOwner(r.Context(), r.PathValue("owner")))
}

func (s *Server) writeList(w http.ResponseWriter) func([]models.NFT, error) {
	return func(nfts []models.NFT, err error) {
		if err != nil {
			writeError(w, err)
			return
		}
		if nfts == nil {
			nfts = []models.NFT{}
		}
		writeJSON(w, http.StatusOK, nfts)
	}
}

func (s *Server) handleNFT(w http.ResponseWriter, r *http.Request) {
	nft, err := s.svc.Market.NFT(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if nft == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Code: "NOT_FOUND", Message: "nft not found"})
		return
	}
	writeJSON(w, http.StatusOK, nft)
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	var input models.NFTInput
	if !decode(w, r, &input) {
		return
	}
	id, err := s.svc.Market.Mint(r.Context(), input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

type saleRequest struct {
	ForSale bool   `json:"for_sale"`
	Price   string `json:"price,omitempty"`
}

func (s *Server) handleSale(w http.ResponseWriter, r *http.Request) {
	var req saleRequest
	if !decode(w, r, &req) {
		return
	}
	var price *big.Int
	if req.Price != "" {
		p, ok := new(big.Int).SetString(req.Price, 10)
		if !ok {
			writeError(w, errs.Precondition("price", "price must be an integer"))
			return
		}
		price = p
	}
	if err := s.svc.Market.SetSaleStatus(r.Context(), r.PathValue("id"), req.ForSale, price); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Market.Purchase(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCache(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Market.Cache().Entries())
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.svc.Watcher == nil {
		n := s.svc.Market.Cache().Invalidate(cache.Exact(cache.AllNFTs(), cache.ForSale()))
		writeJSON(w, http.StatusOK, map[string]int{"count": n})
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Watcher.Refresh())
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func writeError(w http.ResponseWriter, err error) {
	code := errs.CodeOf(err)
	resp := errorResponse{Code: string(code), Message: err.Error()}
	var e *errs.Error
	if errors.As(err, &e) {
		resp.Field = e.Field()
	}
	writeJSON(w, errs.HTTPStatus(code), resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "BAD_REQUEST", Message: err.Error()})
		return false
	}
	return true
}
