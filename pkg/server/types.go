package server

import (
	"math"

	"github.com/nikolaydubina/fpdecimal"

	"github.com/numena-dex/bookd/pkg/core"
)

// SubmitOrderRequest is the POST /api/orders body. Price follows the
// signed client convention: a negative price means the sell side and is
// stored as a positive magnitude. A zero price means a market order,
// which must carry an explicit side since the sign can no longer imply
// one. An explicit side field always wins over the sign.
type SubmitOrderRequest struct {
	BookID    string  `json:"book_id"`
	Side      string  `json:"side,omitempty"`
	Kind      string  `json:"kind,omitempty"`
	Price     float64 `json:"price"`
	Quantity  int64   `json:"quantity"`
	Trader    string  `json:"trader"`
	Nonce     int64   `json:"nonce"`
	Expiry    int64   `json:"expiry"`
	Signature string  `json:"signature"`
}

// AmendOrderRequest is the PUT /api/orders/{order_id} body. Nil fields
// keep the current value. Price here is always a positive magnitude.
type AmendOrderRequest struct {
	Price    *float64 `json:"price,omitempty"`
	Quantity *int64   `json:"quantity,omitempty"`
}

// CreateBookRequest is the POST /api/books body.
type CreateBookRequest struct {
	BookID string `json:"book_id"`
}

// APIError is the machine readable error shape.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// OrderResponse is the envelope for order mutations and queries.
type OrderResponse struct {
	Success   bool         `json:"success"`
	Order     *core.Order  `json:"order,omitempty"`
	Trades    []core.Trade `json:"trades,omitempty"`
	Executed  int64        `json:"executed_quantity,omitempty"`
	Remaining int64        `json:"remaining_quantity,omitempty"`
	Rested    bool         `json:"rested,omitempty"`
	Error     *APIError    `json:"error,omitempty"`
}

// BookListResponse is the GET /api/books shape.
type BookListResponse struct {
	Books []*BookInfo `json:"books"`
}

// toSubmitRequest maps the wire request onto the engine's request type,
// resolving the signed price convention.
func toSubmitRequest(req *SubmitOrderRequest) (core.SubmitRequest, error) {
	side, err := resolveSide(req)
	if err != nil {
		return core.SubmitRequest{}, err
	}

	kind := core.KindLimit
	switch req.Kind {
	case "", "limit":
		if req.Price == 0 {
			kind = core.KindMarket
		}
	case "market":
		kind = core.KindMarket
	default:
		return core.SubmitRequest{}, core.ErrInvalidKind
	}

	return core.SubmitRequest{
		BookID:   req.BookID,
		Side:     side,
		Kind:     kind,
		Price:    fpdecimal.FromFloat(math.Abs(req.Price)),
		Quantity: req.Quantity,
		Trader:   req.Trader,
		Nonce:    req.Nonce,
		Expiry:   req.Expiry,
	}, nil
}

func resolveSide(req *SubmitOrderRequest) (core.Side, error) {
	switch req.Side {
	case "buy":
		return core.Buy, nil
	case "sell":
		return core.Sell, nil
	case "":
		if req.Price > 0 {
			return core.Buy, nil
		}
		if req.Price < 0 {
			return core.Sell, nil
		}
		// Market order with no sign to read the side from.
		return core.Buy, core.ErrInvalidSide
	default:
		return core.Buy, core.ErrInvalidSide
	}
}
