package marketmaker

import "context"

// Quote is one order the strategy wants resting on the book.
type Quote struct {
	Side     string // "buy" or "sell"
	Price    float64
	Quantity int64
}

// PriceFetcher returns the current external market price for the
// configured symbol.
type PriceFetcher interface {
	FetchPrice(ctx context.Context) (float64, error)
	Close() error
}

// OrderPlacer places and cancels orders against the matching engine.
type OrderPlacer interface {
	// PlaceOrder submits a quote and returns the engine-assigned order id.
	PlaceOrder(ctx context.Context, q Quote) (string, error)
	// CancelOrder cancels by order id. Cancelling an order that is
	// already filled or cancelled is not an error.
	CancelOrder(ctx context.Context, orderID string) error
	Close() error
}

// Strategy turns the current market price into the set of quotes that
// should be live on the book.
type Strategy interface {
	Quotes(currentPrice float64) []Quote
}
