package core

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nikolaydubina/fpdecimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/numena-dex/bookd/pkg/otel"
)

// Config holds the per-book engine limits.
type Config struct {
	// ExpiryHorizon bounds how far in the future an order may expire.
	ExpiryHorizon time.Duration
	// NonceWindow bounds the allowed skew between the order nonce and the
	// engine clock, in both directions.
	NonceWindow time.Duration
	// MaxSlippageBps bounds how far a market order may walk the book past
	// its first match price, in basis points. Zero disables the bound.
	MaxSlippageBps int64
	// SnapshotDepth is the number of levels per side in published deltas.
	// Zero publishes the full book.
	SnapshotDepth int
}

// DefaultConfig returns the default engine limits.
func DefaultConfig() Config {
	return Config{
		ExpiryHorizon:  24 * time.Hour,
		NonceWindow:    60 * time.Second,
		MaxSlippageBps: 0,
		SnapshotDepth:  20,
	}
}

// Book is one independent order matching domain: a pair of price level
// indexes, an order store, and the matching algorithm. All mutations
// against one book are serialized by its lock; distinct books run in
// parallel. Matching inside Submit is synchronous: it either completes or
// rejects, never partially applies.
type Book struct {
	mu     sync.RWMutex
	id     string
	cfg    Config
	bids   *sideIndex
	asks   *sideIndex
	store  *OrderStore
	events EventSink
	now    func() time.Time
	seq    uint64
	// offline is set when an internal invariant trips; the book then
	// rejects every operation instead of serving corrupted state.
	offline bool
}

// NewBook creates an empty book. A nil sink discards events.
func NewBook(id string, cfg Config, events EventSink) *Book {
	if events == nil {
		events = NopSink{}
	}
	if cfg.ExpiryHorizon <= 0 {
		cfg.ExpiryHorizon = DefaultConfig().ExpiryHorizon
	}
	if cfg.NonceWindow <= 0 {
		cfg.NonceWindow = DefaultConfig().NonceWindow
	}
	return &Book{
		id:     id,
		cfg:    cfg,
		bids:   newSideIndex(Buy),
		asks:   newSideIndex(Sell),
		store:  NewOrderStore(),
		events: events,
		now:    time.Now,
	}
}

// ID returns the book identifier.
func (b *Book) ID() string { return b.id }

// SetClock replaces the engine clock. Intended for tests.
func (b *Book) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}

// Submit validates the request, matches it against resting liquidity and
// rests any limit remainder. Validation failures return a typed error
// with no state mutation. Market remainders are rejected, never rested.
func (b *Book) Submit(ctx context.Context, req SubmitRequest) (result *ExecutionResult, err error) {
	_, span := otel.StartOrderSpan(ctx, otel.SpanSubmitOrder,
		attribute.String(otel.AttributeBookID, b.id),
		attribute.String(otel.AttributeOrderSide, req.Side.String()),
		attribute.String(otel.AttributeOrderKind, string(req.Kind)),
		attribute.Int64(otel.AttributeQuantity, req.Quantity),
		attribute.String(otel.AttributePrice, req.Price.String()),
	)
	defer span.End()

	b.mu.Lock()
	defer b.mu.Unlock()
	defer b.recoverInvariant(&err)

	if b.offline {
		span.SetStatus(codes.Error, "book offline")
		return nil, ErrBookOffline
	}

	now := b.now()
	if err := b.validate(req, now); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	result, err = b.submitLocked(req, now)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	otel.AddAttributes(span,
		attribute.String(otel.AttributeOrderID, result.Order.ID()),
		attribute.Int64(otel.AttributeExecutedQuantity, result.Executed),
		attribute.Int64(otel.AttributeRemainingQuantity, result.Remaining),
		attribute.Int(otel.AttributeTradeCount, len(result.Trades)),
	)
	span.SetStatus(codes.Ok, "order processed")
	return result, nil
}

// submitLocked runs the matching step for an already-validated request.
// The caller holds the write lock.
func (b *Book) submitLocked(req SubmitRequest, now time.Time) (*ExecutionResult, error) {
	b.seq++
	order := &Order{
		id:        uuid.NewString(),
		bookID:    b.id,
		side:      req.Side,
		kind:      req.Kind,
		trader:    req.Trader,
		price:     req.Price,
		quantity:  req.Quantity,
		remaining: req.Quantity,
		nonce:     req.Nonce,
		expiry:    req.Expiry,
		status:    StatusOpen,
		seq:       b.seq,
		createdAt: now,
		updatedAt: now,
	}
	if order.IsMarketOrder() {
		order.price = fpdecimal.Zero
	}

	trades := b.match(order, now)

	if order.IsMarketOrder() && order.Remaining() > 0 {
		if len(trades) == 0 {
			// Nothing matched and market orders never rest.
			return nil, ErrNoLiquidity
		}
		// Remainder past available liquidity (or past the slippage
		// bound) is discarded, never rested at an implicit price.
		order.transition(StatusCancelled, now)
	}

	if order.IsLimitOrder() && order.Remaining() > 0 {
		b.side(order.Side()).Add(order)
	}

	b.store.Put(order)

	delta := b.snapshotLocked(b.cfg.SnapshotDepth, now)
	b.events.PublishDelta(delta)
	if len(trades) > 0 {
		b.events.PublishTrades(b.id, trades)
	}

	return &ExecutionResult{
		Order:     order,
		Trades:    trades,
		Executed:  order.Quantity() - order.Remaining(),
		Remaining: order.Remaining(),
		Rested:    !order.IsTerminal() && order.IsLimitOrder(),
	}, nil
}

// match walks the opposite side best-price-first, FIFO within each level,
// producing one Trade per maker matched. The taker always receives the
// maker's price. Expired makers encountered on the way are swept.
func (b *Book) match(order *Order, now time.Time) []Trade {
	opp := b.side(order.Side().Opposite())
	var trades []Trade
	var firstPrice fpdecimal.Decimal

	for order.Remaining() > 0 {
		lvl := opp.best()
		if lvl == nil {
			break
		}
		if order.IsLimitOrder() && !crosses(order.Side(), order.Price(), lvl.price) {
			break
		}
		if order.IsMarketOrder() && len(trades) > 0 &&
			b.slippageExceeded(order.Side(), firstPrice, lvl.price) {
			break
		}

		entry := lvl.head
		for entry != nil && order.Remaining() > 0 {
			maker := entry.order
			next := entry.next

			if maker.ExpiredAt(now) {
				b.expireLocked(maker, now)
				entry = next
				continue
			}

			qty := order.Remaining()
			if maker.Remaining() < qty {
				qty = maker.Remaining()
			}
			if len(trades) == 0 {
				firstPrice = lvl.price
			}

			maker.fill(qty, now)
			order.fill(qty, now)
			opp.Reduce(maker, qty)
			if maker.IsTerminal() {
				b.store.Retire(maker)
			}

			buyID, sellID := order.ID(), maker.ID()
			if order.Side() == Sell {
				buyID, sellID = maker.ID(), order.ID()
			}
			trades = append(trades, Trade{
				ID:          uuid.NewString(),
				BookID:      b.id,
				Price:       lvl.price,
				Quantity:    qty,
				BuyOrderID:  buyID,
				SellOrderID: sellID,
				Timestamp:   now,
			})

			entry = next
		}
	}

	return trades
}

// Cancel removes a resting order. Only the owning trader may cancel; the
// engine re-checks ownership even though the gateway authorizes upstream.
// Cancelling a terminal order returns ErrAlreadyTerminal with no side
// effects, so retries are harmless.
func (b *Book) Cancel(ctx context.Context, orderID, trader string) (order *Order, err error) {
	_, span := otel.StartOrderSpan(ctx, otel.SpanCancelOrder,
		attribute.String(otel.AttributeBookID, b.id),
		attribute.String(otel.AttributeOrderID, orderID),
	)
	defer span.End()

	b.mu.Lock()
	defer b.mu.Unlock()
	defer b.recoverInvariant(&err)

	if b.offline {
		span.SetStatus(codes.Error, "book offline")
		return nil, ErrBookOffline
	}

	now := b.now()
	o := b.store.Get(orderID)
	if o == nil {
		span.SetStatus(codes.Error, "order not found")
		return nil, ErrUnknownOrder
	}
	if o.Trader() != trader {
		span.SetStatus(codes.Error, "not owner")
		return nil, ErrNotOwner
	}
	if o.IsTerminal() {
		span.SetStatus(codes.Ok, "already terminal")
		return o, ErrAlreadyTerminal
	}
	if o.ExpiredAt(now) {
		b.expireLocked(o, now)
		b.events.PublishDelta(b.snapshotLocked(b.cfg.SnapshotDepth, now))
		span.SetStatus(codes.Ok, "already expired")
		return o, ErrAlreadyTerminal
	}

	b.side(o.Side()).Remove(o)
	o.transition(StatusCancelled, now)
	b.store.Retire(o)
	b.events.PublishDelta(b.snapshotLocked(b.cfg.SnapshotDepth, now))

	span.SetStatus(codes.Ok, "order cancelled")
	return o, nil
}

// Amend replaces a resting order's price and/or quantity as an atomic
// cancel-plus-resubmit. The new order goes to the back of its price
// level's queue; keeping time priority across an amend would let traders
// jump the line.
func (b *Book) Amend(ctx context.Context, orderID, trader string, newPrice *fpdecimal.Decimal, newQuantity *int64) (result *ExecutionResult, err error) {
	_, span := otel.StartOrderSpan(ctx, otel.SpanAmendOrder,
		attribute.String(otel.AttributeBookID, b.id),
		attribute.String(otel.AttributeOrderID, orderID),
	)
	defer span.End()

	b.mu.Lock()
	defer b.mu.Unlock()
	defer b.recoverInvariant(&err)

	if b.offline {
		span.SetStatus(codes.Error, "book offline")
		return nil, ErrBookOffline
	}

	now := b.now()
	o := b.store.Get(orderID)
	if o == nil {
		span.SetStatus(codes.Error, "order not found")
		return nil, ErrUnknownOrder
	}
	if o.Trader() != trader {
		span.SetStatus(codes.Error, "not owner")
		return nil, ErrNotOwner
	}
	if o.IsTerminal() {
		span.SetStatus(codes.Error, "already terminal")
		return nil, ErrAlreadyTerminal
	}
	if !o.IsLimitOrder() {
		span.SetStatus(codes.Error, "not a limit order")
		return nil, ErrInvalidKind
	}
	if o.ExpiredAt(now) {
		b.expireLocked(o, now)
		b.events.PublishDelta(b.snapshotLocked(b.cfg.SnapshotDepth, now))
		span.SetStatus(codes.Error, "already expired")
		return nil, ErrAlreadyTerminal
	}

	price := o.Price()
	if newPrice != nil {
		price = *newPrice
	}
	quantity := o.Remaining()
	if newQuantity != nil {
		quantity = *newQuantity
	}
	if !price.GreaterThan(fpdecimal.Zero) {
		span.SetStatus(codes.Error, "invalid price")
		return nil, ErrInvalidPrice
	}
	if quantity <= 0 {
		span.SetStatus(codes.Error, "invalid quantity")
		return nil, ErrInvalidQuantity
	}

	// Cancel leg.
	b.side(o.Side()).Remove(o)
	o.transition(StatusCancelled, now)
	b.store.Retire(o)

	// Resubmit leg. Nonce and expiry carry over from the engine clock and
	// the original order; the request was validated on first submission.
	result, err = b.submitLocked(SubmitRequest{
		BookID:   b.id,
		Side:     o.Side(),
		Kind:     KindLimit,
		Price:    price,
		Quantity: quantity,
		Trader:   trader,
		Nonce:    now.Unix(),
		Expiry:   o.Expiry(),
	}, now)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "order amended")
	return result, nil
}

// SweepExpired expires every resting order whose expiry has passed and
// returns how many were swept. A delta is published when anything moved.
func (b *Book) SweepExpired() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.offline {
		return 0
	}

	now := b.now()
	swept := 0
	for _, o := range b.store.Open() {
		if o.ExpiredAt(now) {
			b.expireLocked(o, now)
			swept++
		}
	}
	if swept > 0 {
		b.events.PublishDelta(b.snapshotLocked(b.cfg.SnapshotDepth, now))
	}
	return swept
}

// GetOrder returns an order by ID, historical orders included.
func (b *Book) GetOrder(orderID string) *Order {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.store.Get(orderID)
}

// OpenOrders returns the trader's resting orders.
func (b *Book) OpenOrders(trader string) []*Order {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.store.OpenByTrader(trader)
}

// OpenOrderCount returns the number of resting orders across both sides.
func (b *Book) OpenOrderCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.store.OpenCount()
}

// BestBid returns the highest bid price, false when the side is empty.
func (b *Book) BestBid() (fpdecimal.Decimal, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.bids.BestPrice()
}

// BestAsk returns the lowest ask price, false when the side is empty.
func (b *Book) BestAsk() (fpdecimal.Decimal, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.asks.BestPrice()
}

// Snapshot returns up to depth aggregated levels per side, best first.
// depth <= 0 returns the whole book. Subscribers resynchronize through
// this at any time.
func (b *Book) Snapshot(depth int) *BookDelta {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snapshotLocked(depth, b.now())
}

// Offline reports whether the book was taken out of service after an
// internal invariant violation.
func (b *Book) Offline() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.offline
}

// private methods

func (b *Book) side(s Side) *sideIndex {
	if s == Buy {
		return b.bids
	}
	return b.asks
}

func (b *Book) validate(req SubmitRequest, now time.Time) error {
	if req.Side != Buy && req.Side != Sell {
		return ErrInvalidSide
	}
	if req.Kind != KindMarket && req.Kind != KindLimit {
		return ErrInvalidKind
	}
	if req.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if req.Kind == KindLimit && !req.Price.GreaterThan(fpdecimal.Zero) {
		return ErrInvalidPrice
	}
	if !IsTraderAddress(req.Trader) {
		return ErrInvalidTrader
	}
	window := int64(b.cfg.NonceWindow / time.Second)
	if skew := now.Unix() - req.Nonce; skew > window || skew < -window {
		return ErrStaleNonce
	}
	if req.Expiry <= now.Unix() {
		return ErrExpiryInPast
	}
	if req.Expiry > now.Add(b.cfg.ExpiryHorizon).Unix() {
		return ErrExpiryTooFar
	}
	return nil
}

func (b *Book) expireLocked(o *Order, now time.Time) {
	b.side(o.Side()).Remove(o)
	o.transition(StatusExpired, now)
	b.store.Retire(o)
}

func (b *Book) snapshotLocked(depth int, now time.Time) *BookDelta {
	return &BookDelta{
		BookID:    b.id,
		Seq:       b.seq,
		Bids:      b.bids.Snapshot(depth),
		Asks:      b.asks.Snapshot(depth),
		Timestamp: now.UnixMilli(),
	}
}

// slippageExceeded reports whether a market order walking from its first
// match price to the candidate level would exceed the configured bound.
func (b *Book) slippageExceeded(side Side, firstPrice, levelPrice fpdecimal.Decimal) bool {
	if b.cfg.MaxSlippageBps <= 0 {
		return false
	}
	var drift fpdecimal.Decimal
	if side == Buy {
		drift = levelPrice.Sub(firstPrice)
	} else {
		drift = firstPrice.Sub(levelPrice)
	}
	if !drift.GreaterThan(fpdecimal.Zero) {
		return false
	}
	return drift.Mul(fpdecimal.FromInt(10000)).GreaterThan(firstPrice.Mul(fpdecimal.FromInt(b.cfg.MaxSlippageBps)))
}

// recoverInvariant converts an invariant panic into an offline book. The
// panic means engine state can no longer be trusted; refusing further
// traffic beats serving a corrupted book.
func (b *Book) recoverInvariant(err *error) {
	if r := recover(); r != nil {
		b.offline = true
		*err = ErrBookOffline
	}
}

// crosses checks if the order price satisfies the book price
func crosses(side Side, orderPrice, bookPrice fpdecimal.Decimal) bool {
	if side == Buy {
		return bookPrice.LessThanOrEqual(orderPrice)
	}
	return bookPrice.GreaterThanOrEqual(orderPrice)
}
