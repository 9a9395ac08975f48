package server

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nikolaydubina/fpdecimal"
	"github.com/rs/zerolog/log"

	"github.com/numena-dex/bookd/pkg/core"
	"github.com/numena-dex/bookd/pkg/logging"
)

// BookInfo contains metadata about a book.
type BookInfo struct {
	ID         string    `json:"book_id"`
	CreatedAt  time.Time `json:"created_at"`
	OpenOrders int       `json:"open_orders"`
	Offline    bool      `json:"offline"`
}

// BookRegistry manages the set of live books. Creation is idempotent:
// concurrent GetOrCreate calls for the same id observe a single book
// instance. The registry also routes order ids to their book so order
// level operations do not need a book id.
type BookRegistry struct {
	mu     sync.RWMutex
	books  map[string]*core.Book
	info   map[string]*BookInfo
	orders map[string]string // order id -> book id

	cfg    core.Config
	events core.EventSink

	sweepOnce sync.Once
	stopSweep chan struct{}
}

// NewBookRegistry creates an empty registry. Every book it creates uses
// the given engine limits and publishes into the given sink.
func NewBookRegistry(cfg core.Config, events core.EventSink) *BookRegistry {
	return &BookRegistry{
		books:     make(map[string]*core.Book),
		info:      make(map[string]*BookInfo),
		orders:    make(map[string]string),
		cfg:       cfg,
		events:    events,
		stopSweep: make(chan struct{}),
	}
}

// GetOrCreate returns the book for the id, creating it when missing.
// The second return reports whether this call created it.
func (r *BookRegistry) GetOrCreate(ctx context.Context, bookID string) (*core.Book, bool) {
	logger := logging.FromContext(ctx).With().Str("book_id", bookID).Logger()

	r.mu.RLock()
	book, exists := r.books[bookID]
	r.mu.RUnlock()
	if exists {
		return book, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Re-check under the write lock: another goroutine may have won.
	if book, exists := r.books[bookID]; exists {
		return book, false
	}

	book = core.NewBook(bookID, r.cfg, r.events)
	r.books[bookID] = book
	r.info[bookID] = &BookInfo{
		ID:        bookID,
		CreatedAt: time.Now(),
	}

	logger.Info().Msg("Created new book")
	return book, true
}

// Get retrieves a book by id.
func (r *BookRegistry) Get(ctx context.Context, bookID string) (*core.Book, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	book, exists := r.books[bookID]
	if !exists {
		logger := logging.FromContext(ctx)
		logger.Debug().Str("book_id", bookID).Msg("Book not found")
		return nil, core.ErrUnknownBook
	}
	return book, nil
}

// List returns metadata for all books, sorted by id.
func (r *BookRegistry) List(ctx context.Context) []*BookInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*BookInfo, 0, len(r.info))
	for id, info := range r.info {
		book := r.books[id]
		result = append(result, &BookInfo{
			ID:         info.ID,
			CreatedAt:  info.CreatedAt,
			OpenOrders: book.OpenOrderCount(),
			Offline:    book.Offline(),
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })

	logger := logging.FromContext(ctx)
	logger.Debug().Int("count", len(result)).Msg("Listed books")
	return result
}

// SubmitOrder routes a submit to its book and indexes the resulting
// order id for later order level lookups.
func (r *BookRegistry) SubmitOrder(ctx context.Context, req core.SubmitRequest) (*core.ExecutionResult, error) {
	book, err := r.Get(ctx, req.BookID)
	if err != nil {
		return nil, err
	}

	result, err := book.Submit(ctx, req)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.orders[result.Order.ID()] = req.BookID
	r.mu.Unlock()
	return result, nil
}

// CancelOrder routes a cancel through the order index.
func (r *BookRegistry) CancelOrder(ctx context.Context, orderID, trader string) (*core.Order, error) {
	book, err := r.bookForOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return book.Cancel(ctx, orderID, trader)
}

// AmendOrder routes an amend through the order index. The replacement
// order gets a fresh id, which is indexed in turn.
func (r *BookRegistry) AmendOrder(ctx context.Context, orderID, trader string, newPrice *fpdecimal.Decimal, newQuantity *int64) (*core.ExecutionResult, error) {
	book, err := r.bookForOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	result, err := book.Amend(ctx, orderID, trader, newPrice, newQuantity)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.orders[result.Order.ID()] = book.ID()
	r.mu.Unlock()
	return result, nil
}

// GetOrder returns any known order by id, terminal orders included.
func (r *BookRegistry) GetOrder(ctx context.Context, orderID string) (*core.Order, error) {
	book, err := r.bookForOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	order := book.GetOrder(orderID)
	if order == nil {
		return nil, core.ErrUnknownOrder
	}
	return order, nil
}

func (r *BookRegistry) bookForOrder(ctx context.Context, orderID string) (*core.Book, error) {
	r.mu.RLock()
	bookID, exists := r.orders[orderID]
	r.mu.RUnlock()
	if !exists {
		logger := logging.FromContext(ctx)
		logger.Debug().Str("order_id", orderID).Msg("Order not found")
		return nil, core.ErrUnknownOrder
	}
	return r.Get(ctx, bookID)
}

// StartSweeper launches a background loop that expires overdue resting
// orders across all books at the given interval. Safe to call once.
func (r *BookRegistry) StartSweeper(interval time.Duration) {
	if interval <= 0 {
		return
	}
	r.sweepOnce.Do(func() {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					r.sweepAll()
				case <-r.stopSweep:
					return
				}
			}
		}()
	})
}

func (r *BookRegistry) sweepAll() {
	r.mu.RLock()
	books := make([]*core.Book, 0, len(r.books))
	for _, b := range r.books {
		books = append(books, b)
	}
	r.mu.RUnlock()

	for _, b := range books {
		if swept := b.SweepExpired(); swept > 0 {
			log.Debug().Str("book_id", b.ID()).Int("swept", swept).Msg("Expired resting orders")
		}
	}
}

// Close stops the sweeper and drops all books.
func (r *BookRegistry) Close() {
	close(r.stopSweep)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.books = make(map[string]*core.Book)
	r.info = make(map[string]*BookInfo)
	r.orders = make(map[string]string)
}
