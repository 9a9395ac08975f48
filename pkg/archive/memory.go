package archive

import (
	"context"
	"sync"

	"github.com/numena-dex/bookd/pkg/core"
)

// DefaultCapacity is the per-book ring size for the in-memory archive.
const DefaultCapacity = 1000

// MemoryArchive keeps the most recent trades per book in a fixed-size
// ring buffer.
type MemoryArchive struct {
	mu       sync.RWMutex
	capacity int
	books    map[string]*ring
}

type ring struct {
	trades []core.Trade
	next   int
	full   bool
}

// NewMemoryArchive creates an archive retaining up to capacity trades
// per book. A capacity of zero falls back to DefaultCapacity.
func NewMemoryArchive(capacity int) *MemoryArchive {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemoryArchive{
		capacity: capacity,
		books:    make(map[string]*ring),
	}
}

// PublishDelta implements core.EventSink. Depth changes are not archived.
func (a *MemoryArchive) PublishDelta(*core.BookDelta) {}

// PublishTrades implements core.EventSink.
func (a *MemoryArchive) PublishTrades(bookID string, trades []core.Trade) {
	if len(trades) == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	r, ok := a.books[bookID]
	if !ok {
		r = &ring{trades: make([]core.Trade, a.capacity)}
		a.books[bookID] = r
	}
	for _, t := range trades {
		r.trades[r.next] = t
		r.next++
		if r.next == len(r.trades) {
			r.next = 0
			r.full = true
		}
	}
}

// RecentTrades implements TradeArchive.
func (a *MemoryArchive) RecentTrades(_ context.Context, bookID string, limit int) ([]core.Trade, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	r, ok := a.books[bookID]
	if !ok || limit <= 0 {
		return []core.Trade{}, nil
	}

	size := r.next
	if r.full {
		size = len(r.trades)
	}
	if limit > size {
		limit = size
	}

	// Walk backwards from the most recent write.
	out := make([]core.Trade, 0, limit)
	idx := r.next
	for i := 0; i < limit; i++ {
		idx--
		if idx < 0 {
			idx = len(r.trades) - 1
		}
		out = append(out, r.trades[idx])
	}
	return out, nil
}

// Close implements TradeArchive.
func (a *MemoryArchive) Close() error {
	return nil
}

var _ TradeArchive = (*MemoryArchive)(nil)
