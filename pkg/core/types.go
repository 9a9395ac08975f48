package core

import (
	"encoding/json"
	"time"

	"github.com/nikolaydubina/fpdecimal"
)

// SubmitRequest is the immutable, already-authenticated order request the
// engine accepts. The gateway is responsible for signature verification;
// the engine only validates fields.
type SubmitRequest struct {
	BookID   string
	Side     Side
	Kind     OrderKind
	Price    fpdecimal.Decimal // magnitude; ignored for market orders
	Quantity int64             // base units
	Trader   string
	Nonce    int64 // unix seconds, replay protection
	Expiry   int64 // unix seconds, absolute
}

// Trade is a single execution record. Immutable once created.
type Trade struct {
	ID          string
	BookID      string
	Price       fpdecimal.Decimal
	Quantity    int64
	BuyOrderID  string
	SellOrderID string
	Timestamp   time.Time
}

// MarshalJSON implements Marshaler interface
func (t Trade) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID          string  `json:"trade_id"`
		BookID      string  `json:"book_id"`
		Price       float64 `json:"price"`
		Quantity    int64   `json:"quantity"`
		BuyOrderID  string  `json:"buy_order_id"`
		SellOrderID string  `json:"sell_order_id"`
		Timestamp   int64   `json:"timestamp"`
	}{
		ID:          t.ID,
		BookID:      t.BookID,
		Price:       t.Price.Float64(),
		Quantity:    t.Quantity,
		BuyOrderID:  t.BuyOrderID,
		SellOrderID: t.SellOrderID,
		Timestamp:   t.Timestamp.UnixMilli(),
	})
}

// UnmarshalJSON implements Unmarshaler interface
func (t *Trade) UnmarshalJSON(data []byte) error {
	var wire struct {
		ID          string  `json:"trade_id"`
		BookID      string  `json:"book_id"`
		Price       float64 `json:"price"`
		Quantity    int64   `json:"quantity"`
		BuyOrderID  string  `json:"buy_order_id"`
		SellOrderID string  `json:"sell_order_id"`
		Timestamp   int64   `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	t.ID = wire.ID
	t.BookID = wire.BookID
	t.Price = fpdecimal.FromFloat(wire.Price)
	t.Quantity = wire.Quantity
	t.BuyOrderID = wire.BuyOrderID
	t.SellOrderID = wire.SellOrderID
	t.Timestamp = time.UnixMilli(wire.Timestamp)
	return nil
}

// ExecutionResult contains the outcome of a submit or amend: the trades
// produced and the final state of the incoming order.
type ExecutionResult struct {
	Order     *Order
	Trades    []Trade
	Executed  int64
	Remaining int64
	Rested    bool
}

// Level is one aggregated price level as exposed to subscribers. Price is
// a positive magnitude on both sides of the book.
type Level struct {
	Price fpdecimal.Decimal
	Size  int64
}

// MarshalJSON implements Marshaler interface
func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Price float64 `json:"price"`
		Size  int64   `json:"size"`
	}{
		Price: l.Price.Float64(),
		Size:  l.Size,
	})
}

// BookDelta is a snapshot-shaped view of the book published after every
// mutation. Bids are descending, asks ascending, prices positive.
type BookDelta struct {
	BookID    string  `json:"book_id"`
	Seq       uint64  `json:"seq"`
	Bids      []Level `json:"bids"`
	Asks      []Level `json:"asks"`
	Timestamp int64   `json:"timestamp"`
}

// EventSink receives committed book events. Publishing must not block the
// matching path; implementations hand off to subscribers asynchronously.
type EventSink interface {
	PublishDelta(delta *BookDelta)
	PublishTrades(bookID string, trades []Trade)
}

// NopSink discards all events.
type NopSink struct{}

// PublishDelta does nothing.
func (NopSink) PublishDelta(*BookDelta) {}

// PublishTrades does nothing.
func (NopSink) PublishTrades(string, []Trade) {}
