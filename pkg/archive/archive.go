// Package archive retains recent trade prints per book so the API can
// serve trade history without touching the matching path.
package archive

import (
	"context"

	"github.com/numena-dex/bookd/pkg/core"
)

// TradeArchive stores and serves recent trades for each book.
// Implementations also satisfy core.EventSink so a book can record
// trades as a side effect of matching.
type TradeArchive interface {
	core.EventSink

	// RecentTrades returns up to limit trades for the book, most recent
	// first. A missing book yields an empty slice, not an error.
	RecentTrades(ctx context.Context, bookID string, limit int) ([]core.Trade, error)

	Close() error
}
