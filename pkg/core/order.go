package core

import (
	"encoding/json"
	"time"

	"github.com/nikolaydubina/fpdecimal"
)

// Side represents buy or sell side of the order
type Side int

// Order sides
const (
	Sell Side = iota
	Buy
)

// String returns side as string
func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// Opposite returns the counter side
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// OrderKind represents the kind of the order
type OrderKind string

// Order kinds
const (
	KindMarket OrderKind = "MARKET"
	KindLimit  OrderKind = "LIMIT"
)

// Status is the lifecycle state of an order. Once a terminal status is
// reached it never changes again.
type Status string

// Order statuses
const (
	StatusOpen            Status = "OPEN"
	StatusPartiallyFilled Status = "PARTIALLY_FILLED"
	StatusFilled          Status = "FILLED"
	StatusCancelled       Status = "CANCELLED"
	StatusExpired         Status = "EXPIRED"
	StatusRejected        Status = "REJECTED"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	switch s {
	case StatusFilled, StatusCancelled, StatusExpired, StatusRejected:
		return true
	default:
		return false
	}
}

// Order stores information about a single order. Prices are always kept
// as positive magnitudes; the side carries the sign. Quantities are
// integer base units.
type Order struct {
	id        string
	bookID    string
	side      Side
	kind      OrderKind
	trader    string
	price     fpdecimal.Decimal
	quantity  int64
	remaining int64
	nonce     int64
	expiry    int64
	status    Status
	seq       uint64
	createdAt time.Time
	updatedAt time.Time
}

// ID returns the engine-assigned order ID
func (o *Order) ID() string { return o.id }

// BookID returns the book the order belongs to
func (o *Order) BookID() string { return o.bookID }

// Side returns side of the Order
func (o *Order) Side() Side { return o.side }

// Kind returns the order kind
func (o *Order) Kind() OrderKind { return o.kind }

// Trader returns the trader address that placed the order
func (o *Order) Trader() string { return o.trader }

// Price returns the limit price magnitude. Zero for market orders.
func (o *Order) Price() fpdecimal.Decimal { return o.price }

// Quantity returns the original quantity in base units
func (o *Order) Quantity() int64 { return o.quantity }

// Remaining returns the unfilled quantity in base units
func (o *Order) Remaining() int64 { return o.remaining }

// Nonce returns the client nonce (unix seconds)
func (o *Order) Nonce() int64 { return o.nonce }

// Expiry returns the absolute expiry (unix seconds)
func (o *Order) Expiry() int64 { return o.expiry }

// Status returns the current lifecycle status
func (o *Order) Status() Status { return o.status }

// Seq returns the arrival sequence number within the book
func (o *Order) Seq() uint64 { return o.seq }

// CreatedAt returns the creation timestamp
func (o *Order) CreatedAt() time.Time { return o.createdAt }

// UpdatedAt returns the last mutation timestamp
func (o *Order) UpdatedAt() time.Time { return o.updatedAt }

// IsMarketOrder returns true if the order is MARKET
func (o *Order) IsMarketOrder() bool { return o.kind == KindMarket }

// IsLimitOrder returns true if the order is LIMIT
func (o *Order) IsLimitOrder() bool { return o.kind == KindLimit }

// IsTerminal reports whether the order reached a final status
func (o *Order) IsTerminal() bool { return o.status.Terminal() }

// ExpiredAt reports whether the order's expiry has passed at now.
// Matching must never touch an expired order even if not yet swept.
func (o *Order) ExpiredAt(now time.Time) bool {
	return o.expiry > 0 && o.expiry <= now.Unix()
}

// fill reduces the remaining quantity and advances the status. The book
// lock is held by the caller.
func (o *Order) fill(qty int64, now time.Time) {
	if qty <= 0 || qty > o.remaining {
		panic("core: fill quantity out of range")
	}
	o.remaining -= qty
	if o.remaining == 0 {
		o.status = StatusFilled
	} else {
		o.status = StatusPartiallyFilled
	}
	o.updatedAt = now
}

// transition moves the order into a terminal status. Transitions out of a
// terminal status are invariant violations.
func (o *Order) transition(status Status, now time.Time) {
	if o.status.Terminal() {
		panic("core: transition from terminal status")
	}
	o.status = status
	o.updatedAt = now
}

// MarshalJSON implements custom JSON marshaling for Order
func (o *Order) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID        string    `json:"order_id"`
		BookID    string    `json:"book_id"`
		Side      string    `json:"side"`
		Kind      OrderKind `json:"kind"`
		Trader    string    `json:"trader"`
		Price     float64   `json:"price"`
		Quantity  int64     `json:"quantity"`
		Remaining int64     `json:"remaining_quantity"`
		Status    Status    `json:"status"`
		CreatedAt int64     `json:"created_at"`
		UpdatedAt int64     `json:"updated_at"`
	}{
		ID:        o.id,
		BookID:    o.bookID,
		Side:      o.side.String(),
		Kind:      o.kind,
		Trader:    o.trader,
		Price:     o.price.Float64(),
		Quantity:  o.quantity,
		Remaining: o.remaining,
		Status:    o.status,
		CreatedAt: o.createdAt.Unix(),
		UpdatedAt: o.updatedAt.Unix(),
	})
}
