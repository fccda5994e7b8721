package market

import (
	"context"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"nftmarket/pkg/cache"
	"nftmarket/pkg/errs"
	"nftmarket/pkg/events"
	"nftmarket/pkg/models"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Option func(*Coordinator)

func WithSink(s EventSink) Option {
	return func(c *Coordinator) { c.sink = s }
}

func WithHub(h *events.Hub) Option {
	return func(c *Coordinator) { c.hub = h }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// Coordinator validates and issues mutations against the backend and keeps
// the cache consistent with their outcome. Failed mutations are reported,
// never retried, and invalidate nothing.
type Coordinator struct {
	backend Backend
	cache   *cache.Cache
	scope   *OwnerScope
	sink    EventSink
	hub     *events.Hub
	logger  *slog.Logger
	tracer  trace.Tracer
}

func NewCoordinator(backend Backend, c *cache.Cache, scope *OwnerScope, opts ...Option) *Coordinator {
	co := &Coordinator{
		backend: backend,
		cache:   c,
		scope:   scope,
		tracer:  otel.Tracer("nftmarket/market"),
	}
	for _, opt := range opts {
		opt(co)
	}
	if co.sink == nil {
		co.sink = NopSink{}
	}
	if co.hub == nil {
		co.hub = &events.Hub{}
	}
	if co.logger == nil {
		co.logger = slog.Default()
	}
	return co
}

func (co *Coordinator) Cache() *cache.Cache {
	return co.cache
}

// Mint creates an NFT owned by the caller and returns its id.
func (co *Coordinator) Mint(ctx context.Context, input models.NFTInput) (models.EntityID, error) {
	if strings.TrimSpace(input.Name) == "" {
		return "", errs.Precondition("name", "name is required")
	}
	if strings.TrimSpace(input.Description) == "" {
		return "", errs.Precondition("description", "description is required")
	}
	if len(input.Image) == 0 {
		return "", errs.Precondition("image", "image is required")
	}

	rec, ctx, span, err := co.begin(ctx, MutationMint, "")
	if err != nil {
		return "", err
	}
	defer span.End()
	rec.Payload = map[string]any{"name": input.Name, "image_bytes": len(input.Image)}

	id, err := co.backend.MintNFT(ctx, input)
	if err != nil {
		return "", co.fail(ctx, span, rec, "mint failed", err)
	}
	rec.TargetID = id
	span.SetAttributes(attribute.String("nft.id", id))
	co.succeed(ctx, rec, cache.Exact(
		cache.AllNFTs(),
		cache.ForSale(),
		cache.ByOwner(rec.Caller),
		cache.ByID(id),
	))
	return id, nil
}

// SetSaleStatus lists (forSale with a positive price) or unlists id.
func (co *Coordinator) SetSaleStatus(ctx context.Context, id models.EntityID, forSale bool, price *big.Int) error {
	if strings.TrimSpace(id) == "" {
		return errs.Precondition("id", "nft id is required")
	}
	if forSale && (price == nil || price.Sign() <= 0) {
		return errs.Precondition("price", "price must be greater than zero")
	}

	kind := MutationUnlist
	if forSale {
		kind = MutationList
	}
	rec, ctx, span, err := co.begin(ctx, kind, id)
	if err != nil {
		return err
	}
	defer span.End()
	status := models.SaleStatus{ID: id, ForSale: forSale}
	if forSale {
		status.Price = new(big.Int).Set(price)
	}
	rec.Payload = status

	if err := co.backend.SetSaleStatus(ctx, status); err != nil {
		return co.fail(ctx, span, rec, "set sale status failed", err)
	}

	owners := cache.OfKind(cache.KindByOwner)
	if owner, ok := co.cachedOwner(id); ok {
		owners = cache.Exact(cache.ByOwner(owner))
	}
	co.succeed(ctx, rec, cache.Or(
		cache.Exact(cache.AllNFTs(), cache.ForSale(), cache.ByID(id)),
		owners,
	))
	return nil
}

// Purchase buys id for the caller. The target must exist, be for sale and
// belong to someone else.
func (co *Coordinator) Purchase(ctx context.Context, id models.EntityID) error {
	if strings.TrimSpace(id) == "" {
		return errs.Precondition("id", "nft id is required")
	}
	rec, ctx, span, err := co.begin(ctx, MutationPurchase, id)
	if err != nil {
		return err
	}
	defer span.End()

	nft, err := co.NFT(ctx, id)
	if err != nil {
		return co.fail(ctx, span, rec, "load nft failed", err)
	}
	switch {
	case nft == nil:
		return errs.Precondition("id", "nft not found")
	case !nft.ForSale:
		return errs.Precondition("for_sale", "nft is not for sale")
	case nft.Owner == rec.Caller:
		return errs.Precondition("owner", "you cannot purchase your own nft")
	}
	oldOwner := nft.Owner
	rec.Payload = map[string]any{"seller": oldOwner, "price": nft.Price}

	if err := co.backend.PurchaseNFT(ctx, id); err != nil {
		return co.fail(ctx, span, rec, "purchase failed", err)
	}
	co.succeed(ctx, rec, cache.Exact(
		cache.AllNFTs(),
		cache.ForSale(),
		cache.ByOwner(oldOwner),
		cache.ByOwner(rec.Caller),
		cache.ByID(id),
	))
	return nil
}

// begin resolves the caller and detaches the mutation from ctx cancellation:
// once issued, its outcome must still drive invalidation.
func (co *Coordinator) begin(ctx context.Context, kind MutationKind, target string) (*MutationRecord, context.Context, trace.Span, error) {
	caller, err := co.scope.Owner(ctx)
	if err != nil {
		return nil, ctx, nil, err
	}
	rec := &MutationRecord{
		ID:        uuid.NewString(),
		Kind:      kind,
		TargetID:  target,
		Caller:    caller,
		StartedAt: time.Now(),
	}
	ctx = WithCaller(context.WithoutCancel(ctx), caller)
	ctx, span := co.tracer.Start(ctx, "market."+string(kind))
	span.SetAttributes(
		attribute.String("mutation.id", rec.ID),
		attribute.String("caller", caller),
	)
	if target != "" {
		span.SetAttributes(attribute.String("nft.id", target))
	}
	return rec, ctx, span, nil
}

func (co *Coordinator) fail(ctx context.Context, span trace.Span, rec *MutationRecord, msg string, cause error) error {
	err := errs.Wrap(errs.CodeRemoteCallFailed, msg, cause)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	rec.Error = err.Error()
	rec.CompletedAt = time.Now()
	co.logger.Warn("mutation failed", "kind", rec.Kind, "id", rec.ID, "target", rec.TargetID, "error", cause)
	co.emit(ctx, rec)
	return err
}

func (co *Coordinator) succeed(ctx context.Context, rec *MutationRecord, pred cache.Predicate) {
	co.cache.Invalidate(pred)
	for _, d := range co.cache.Descriptors(pred) {
		rec.Invalidated = append(rec.Invalidated, d.String())
	}
	rec.CompletedAt = time.Now()
	co.logger.Info("mutation completed", "kind", rec.Kind, "id", rec.ID, "target", rec.TargetID)
	co.emit(ctx, rec)
}

func (co *Coordinator) emit(ctx context.Context, rec *MutationRecord) {
	co.hub.Publish(events.Event{Type: events.MutationCompleted, Data: *rec})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := co.sink.Publish(ctx, *rec); err != nil {
		co.logger.Warn("mutation event not published", "id", rec.ID, "error", err)
	}
}

// cachedOwner returns the owner of id as last seen by the cache.
func (co *Coordinator) cachedOwner(id models.EntityID) (string, bool) {
	e, ok := co.cache.Peek(cache.ByID(id))
	if !ok || !e.HasValue {
		return "", false
	}
	nft, ok := e.Value.(*models.NFT)
	if !ok || nft == nil {
		return "", false
	}
	return nft.Owner, true
}

func (co *Coordinator) Scope() *OwnerScope {
	return co.scope
}
