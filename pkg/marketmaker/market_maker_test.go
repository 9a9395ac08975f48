package marketmaker

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlacer struct {
	mu        sync.Mutex
	nextID    int
	placed    []Quote
	cancelled []string
}

func (p *fakePlacer) PlaceOrder(_ context.Context, q Quote) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	p.placed = append(p.placed, q)
	return "order-" + strconv.Itoa(p.nextID), nil
}

func (p *fakePlacer) CancelOrder(_ context.Context, orderID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelled = append(p.cancelled, orderID)
	return nil
}

func (p *fakePlacer) Close() error { return nil }

type fakeFetcher struct{ price float64 }

func (f *fakeFetcher) FetchPrice(context.Context) (float64, error) { return f.price, nil }
func (f *fakeFetcher) Close() error                                { return nil }

func TestMarketMakerRefreshesLadder(t *testing.T) {
	cfg := testConfig()
	cfg.UpdateInterval = 10 * time.Millisecond
	cfg.NumLevels = 2

	placer := &fakePlacer{}
	strategy := NewLayeredSymmetricQuoting(cfg, zerolog.Nop())

	mm, err := NewMarketMaker(cfg, zerolog.Nop(), placer, &fakeFetcher{price: 1000}, strategy, "")
	require.NoError(t, err)
	assert.NotEmpty(t, mm.Trader())

	ctx := context.Background()
	require.NoError(t, mm.Start(ctx))

	// Wait for at least two quoting iterations.
	assert.Eventually(t, func() bool {
		placer.mu.Lock()
		defer placer.mu.Unlock()
		return len(placer.placed) >= 8
	}, time.Second, 5*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, mm.Stop(stopCtx))

	placer.mu.Lock()
	defer placer.mu.Unlock()
	// Every iteration after the first cancels the previous ladder, and
	// shutdown pulls the last one.
	assert.GreaterOrEqual(t, len(placer.cancelled), 4)
}
