package server

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nikolaydubina/fpdecimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numena-dex/bookd/pkg/core"
)

const (
	testTrader      = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	testOtherTrader = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

func testSubmitRequest(bookID string, side core.Side, price float64, qty int64) core.SubmitRequest {
	now := time.Now()
	return core.SubmitRequest{
		BookID:   bookID,
		Side:     side,
		Kind:     core.KindLimit,
		Price:    fpdecimal.FromFloat(price),
		Quantity: qty,
		Trader:   testTrader,
		Nonce:    now.Unix(),
		Expiry:   now.Add(time.Hour).Unix(),
	}
}

func TestRegistryGetOrCreateIdempotent(t *testing.T) {
	registry := NewBookRegistry(core.DefaultConfig(), nil)
	defer registry.Close()

	ctx := context.Background()
	book1, created := registry.GetOrCreate(ctx, "ETH-USD")
	require.True(t, created)
	book2, created := registry.GetOrCreate(ctx, "ETH-USD")
	require.False(t, created)
	assert.Same(t, book1, book2)
}

func TestRegistryConcurrentCreation(t *testing.T) {
	registry := NewBookRegistry(core.DefaultConfig(), nil)
	defer registry.Close()

	const goroutines = 64
	var created int64
	books := make([]*core.Book, goroutines)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			book, wasCreated := registry.GetOrCreate(context.Background(), "ETH-USD")
			books[idx] = book
			if wasCreated {
				atomic.AddInt64(&created, 1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), created, "exactly one goroutine creates the book")
	for i := 1; i < goroutines; i++ {
		assert.Same(t, books[0], books[i], "all goroutines observe the same instance")
	}
}

func TestRegistryGetUnknown(t *testing.T) {
	registry := NewBookRegistry(core.DefaultConfig(), nil)
	defer registry.Close()

	_, err := registry.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, core.ErrUnknownBook)
}

func TestRegistryList(t *testing.T) {
	registry := NewBookRegistry(core.DefaultConfig(), nil)
	defer registry.Close()

	ctx := context.Background()
	registry.GetOrCreate(ctx, "ETH-USD")
	registry.GetOrCreate(ctx, "BTC-USD")

	infos := registry.List(ctx)
	require.Len(t, infos, 2)
	assert.Equal(t, "BTC-USD", infos[0].ID)
	assert.Equal(t, "ETH-USD", infos[1].ID)
}

func TestRegistryOrderRouting(t *testing.T) {
	registry := NewBookRegistry(core.DefaultConfig(), nil)
	defer registry.Close()

	ctx := context.Background()
	registry.GetOrCreate(ctx, "ETH-USD")

	result, err := registry.SubmitOrder(ctx, testSubmitRequest("ETH-USD", core.Buy, 100, 5))
	require.NoError(t, err)
	orderID := result.Order.ID()

	// Lookup and cancel route through the order index without a book id.
	order, err := registry.GetOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, orderID, order.ID())

	cancelled, err := registry.CancelOrder(ctx, orderID, testTrader)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCancelled, cancelled.Status())

	_, err = registry.GetOrder(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrUnknownOrder)
}

func TestRegistrySubmitUnknownBook(t *testing.T) {
	registry := NewBookRegistry(core.DefaultConfig(), nil)
	defer registry.Close()

	_, err := registry.SubmitOrder(context.Background(), testSubmitRequest("missing", core.Buy, 100, 5))
	assert.ErrorIs(t, err, core.ErrUnknownBook)
}

func TestRegistryAmendReindexes(t *testing.T) {
	registry := NewBookRegistry(core.DefaultConfig(), nil)
	defer registry.Close()

	ctx := context.Background()
	registry.GetOrCreate(ctx, "ETH-USD")

	result, err := registry.SubmitOrder(ctx, testSubmitRequest("ETH-USD", core.Buy, 100, 5))
	require.NoError(t, err)

	newQty := int64(3)
	amended, err := registry.AmendOrder(ctx, result.Order.ID(), testTrader, nil, &newQty)
	require.NoError(t, err)
	require.NotEqual(t, result.Order.ID(), amended.Order.ID())

	// Both the original and the replacement stay queryable.
	original, err := registry.GetOrder(ctx, result.Order.ID())
	require.NoError(t, err)
	assert.Equal(t, core.StatusCancelled, original.Status())

	replacement, err := registry.GetOrder(ctx, amended.Order.ID())
	require.NoError(t, err)
	assert.Equal(t, int64(3), replacement.Remaining())
}

func TestRegistrySweeper(t *testing.T) {
	registry := NewBookRegistry(core.DefaultConfig(), nil)
	defer registry.Close()

	ctx := context.Background()
	book, _ := registry.GetOrCreate(ctx, "ETH-USD")

	base := time.Now()
	clock := base
	var clockMu sync.Mutex
	book.SetClock(func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		return clock
	})

	req := testSubmitRequest("ETH-USD", core.Buy, 100, 5)
	req.Nonce = base.Unix()
	req.Expiry = base.Add(time.Second).Unix()
	_, err := registry.SubmitOrder(ctx, req)
	require.NoError(t, err)

	clockMu.Lock()
	clock = base.Add(2 * time.Second)
	clockMu.Unlock()

	registry.StartSweeper(10 * time.Millisecond)

	assert.Eventually(t, func() bool {
		return book.OpenOrderCount() == 0
	}, time.Second, 10*time.Millisecond)
}
