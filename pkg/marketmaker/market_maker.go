package marketmaker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/numena-dex/bookd/pkg/core"
)

// MarketMaker keeps a ladder of quotes resting on one book, refreshed
// from an external price source on a fixed interval.
type MarketMaker struct {
	cfg          *Config
	logger       zerolog.Logger
	orderPlacer  OrderPlacer
	priceFetcher PriceFetcher
	strategy     Strategy

	mu           sync.Mutex
	activeOrders []string

	stopCh chan struct{}
	wg     sync.WaitGroup
	trader string
}

// NewMarketMaker creates the market maker quoting as trader. An empty
// trader gets a freshly generated address.
func NewMarketMaker(cfg *Config, logger zerolog.Logger, orderPlacer OrderPlacer, priceFetcher PriceFetcher, strategy Strategy, trader string) (*MarketMaker, error) {
	if trader == "" {
		var err error
		trader, err = core.GenerateTraderAddress()
		if err != nil {
			return nil, fmt.Errorf("failed to generate market maker address: %w", err)
		}
	}

	return &MarketMaker{
		cfg:          cfg,
		logger:       logger.With().Str("component", "MarketMaker").Logger(),
		orderPlacer:  orderPlacer,
		priceFetcher: priceFetcher,
		strategy:     strategy,
		stopCh:       make(chan struct{}),
		trader:       trader,
	}, nil
}

// Trader returns the maker's trader address.
func (m *MarketMaker) Trader() string {
	return m.trader
}

// Start begins the quoting loop.
func (m *MarketMaker) Start(ctx context.Context) error {
	m.logger.Info().
		Str("book_id", m.cfg.BookID).
		Dur("update_interval", m.cfg.UpdateInterval).
		Msg("Starting market maker")

	m.wg.Add(1)
	go m.run(ctx)
	return nil
}

// Stop shuts the loop down and pulls all resting quotes.
func (m *MarketMaker) Stop(ctx context.Context) error {
	m.logger.Info().Msg("Stopping market maker")
	close(m.stopCh)

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for market maker to stop: %w", ctx.Err())
	}

	if err := m.cancelAllOrders(ctx); err != nil {
		return fmt.Errorf("failed to cancel orders during shutdown: %w", err)
	}
	m.logger.Info().Msg("Market maker stopped")
	return nil
}

func (m *MarketMaker) run(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			if err := m.updateOrders(ctx); err != nil {
				// Keep quoting despite transient failures.
				m.logger.Error().Err(err).Msg("Failed to update quotes")
			}
		}
	}
}

// updateOrders is one quoting iteration: fetch the external price,
// cancel the previous ladder, place the new one.
func (m *MarketMaker) updateOrders(ctx context.Context) error {
	price, err := m.priceFetcher.FetchPrice(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch price: %w", err)
	}

	quotes := m.strategy.Quotes(price)

	if err := m.cancelAllOrders(ctx); err != nil {
		return fmt.Errorf("failed to cancel existing orders: %w", err)
	}

	placed := make([]string, 0, len(quotes))
	for _, q := range quotes {
		orderID, err := m.orderPlacer.PlaceOrder(ctx, q)
		if err != nil {
			m.logger.Error().
				Err(err).
				Str("side", q.Side).
				Float64("price", q.Price).
				Msg("Failed to place quote")
			continue
		}
		placed = append(placed, orderID)
	}

	m.mu.Lock()
	m.activeOrders = placed
	m.mu.Unlock()

	m.logger.Debug().
		Float64("mid_price", price).
		Int("quotes", len(placed)).
		Msg("Ladder refreshed")
	return nil
}

func (m *MarketMaker) cancelAllOrders(ctx context.Context) error {
	m.mu.Lock()
	orders := m.activeOrders
	m.activeOrders = nil
	m.mu.Unlock()

	var lastErr error
	for _, orderID := range orders {
		if err := m.orderPlacer.CancelOrder(ctx, orderID); err != nil {
			m.logger.Error().Err(err).Str("order_id", orderID).Msg("Failed to cancel order")
			lastErr = err
		}
	}
	return lastErr
}
