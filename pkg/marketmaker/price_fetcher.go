package marketmaker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// binancePriceFetcher implements PriceFetcher using the Binance public API.
type binancePriceFetcher struct {
	client  *http.Client
	cfg     *Config
	logger  zerolog.Logger
	baseURL string
}

type binanceTickerResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// NewPriceFetcher creates a PriceFetcher backed by the Binance ticker
// endpoint.
func NewPriceFetcher(cfg *Config, logger zerolog.Logger) (PriceFetcher, error) {
	client := &http.Client{
		Timeout: cfg.HTTPTimeout,
		Transport: &http.Transport{
			MaxIdleConns:       10,
			IdleConnTimeout:    30 * time.Second,
			DisableCompression: true,
		},
	}

	return &binancePriceFetcher{
		client:  client,
		cfg:     cfg,
		logger:  logger.With().Str("component", "binancePriceFetcher").Logger(),
		baseURL: cfg.PriceSourceURL,
	}, nil
}

// FetchPrice fetches the current price, retrying transient failures
// with linear backoff.
func (f *binancePriceFetcher) FetchPrice(ctx context.Context) (float64, error) {
	url := fmt.Sprintf("%s/api/v3/ticker/price?symbol=%s", f.baseURL, f.cfg.ExternalSymbol)

	var lastErr error
	for attempt := 1; attempt <= f.cfg.MaxRetries; attempt++ {
		price, err := f.fetchOnce(ctx, url)
		if err == nil {
			f.logger.Debug().
				Str("symbol", f.cfg.ExternalSymbol).
				Float64("price", price).
				Int("attempt", attempt).
				Msg("Fetched price")
			return price, nil
		}

		lastErr = err
		f.logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_retries", f.cfg.MaxRetries).
			Msg("Price fetch failed")

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
		}
	}
	return 0, fmt.Errorf("failed to fetch price after %d attempts: %w", f.cfg.MaxRetries, lastErr)
}

func (f *binancePriceFetcher) fetchOnce(ctx context.Context, url string) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var ticker binanceTickerResponse
	if err := json.NewDecoder(resp.Body).Decode(&ticker); err != nil {
		return 0, fmt.Errorf("decode ticker: %w", err)
	}

	price, err := strconv.ParseFloat(ticker.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", ticker.Price, err)
	}
	return price, nil
}

// Close implements PriceFetcher.
func (f *binancePriceFetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}
