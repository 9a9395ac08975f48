package marketmaker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

var _ OrderPlacer = (*restOrderPlacer)(nil)

// restOrderPlacer implements OrderPlacer against the engine's REST API.
type restOrderPlacer struct {
	client *http.Client
	cfg    *Config
	trader string
	logger zerolog.Logger
}

// NewRESTOrderPlacer returns an OrderPlacer that submits orders over
// HTTP, quoting as the given trader address.
func NewRESTOrderPlacer(cfg *Config, trader string, logger zerolog.Logger) OrderPlacer {
	return &restOrderPlacer{
		client: &http.Client{Timeout: cfg.RequestTimeout},
		cfg:    cfg,
		trader: trader,
		logger: logger.With().Str("component", "restOrderPlacer").Logger(),
	}
}

type orderEnvelope struct {
	Success bool `json:"success"`
	Order   struct {
		OrderID string `json:"order_id"`
		Status  string `json:"status"`
	} `json:"order"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// PlaceOrder implements OrderPlacer.
func (p *restOrderPlacer) PlaceOrder(ctx context.Context, q Quote) (string, error) {
	now := time.Now().Unix()
	body, err := json.Marshal(map[string]interface{}{
		"book_id":   p.cfg.BookID,
		"side":      q.Side,
		"price":     q.Price,
		"quantity":  q.Quantity,
		"trader":    p.trader,
		"nonce":     now,
		"expiry":    now + int64(2*p.cfg.UpdateInterval.Seconds()) + 60,
		"signature": "marketmaker",
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.cfg.ServerAddr+"/api/orders", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("place order: %w", err)
	}
	defer resp.Body.Close()

	var env orderEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return "", fmt.Errorf("decode order response: %w", err)
	}
	if !env.Success {
		code := "unknown"
		if env.Error != nil {
			code = env.Error.Code
		}
		return "", fmt.Errorf("order rejected: %s", code)
	}

	p.logger.Debug().
		Str("order_id", env.Order.OrderID).
		Str("side", q.Side).
		Float64("price", q.Price).
		Int64("quantity", q.Quantity).
		Msg("Order placed")
	return env.Order.OrderID, nil
}

// CancelOrder implements OrderPlacer. Orders that are already gone
// count as cancelled.
func (p *restOrderPlacer) CancelOrder(ctx context.Context, orderID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		p.cfg.ServerAddr+"/api/orders/"+orderID, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Trader", p.trader)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("cancel order %s: %w", orderID, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		// Already filled or expired and retired. Goal achieved.
		p.logger.Debug().Str("order_id", orderID).Msg("Cancel skipped, order already gone")
		return nil
	default:
		return fmt.Errorf("cancel order %s: unexpected status %d", orderID, resp.StatusCode)
	}
}

// Close implements OrderPlacer.
func (p *restOrderPlacer) Close() error {
	p.client.CloseIdleConnections()
	return nil
}
