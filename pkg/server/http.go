package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/nikolaydubina/fpdecimal"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/numena-dex/bookd/pkg/archive"
	"github.com/numena-dex/bookd/pkg/core"
	"github.com/numena-dex/bookd/pkg/logging"
	"github.com/numena-dex/bookd/pkg/messaging"
	"github.com/numena-dex/bookd/pkg/otel"
	"github.com/numena-dex/bookd/pkg/stream"
)

// Server is the REST and WebSocket surface over the book registry.
type Server struct {
	registry *BookRegistry
	hub      *stream.Hub
	trades   archive.TradeArchive
	sender   messaging.MessageSender
	verifier Verifier
}

// NewServer wires the API surface. hub, trades and sender may be nil;
// the corresponding endpoints then degrade gracefully.
func NewServer(registry *BookRegistry, hub *stream.Hub, trades archive.TradeArchive, sender messaging.MessageSender) *Server {
	return &Server{
		registry: registry,
		hub:      hub,
		trades:   trades,
		sender:   sender,
		verifier: AddressVerifier{},
	}
}

// SetVerifier swaps the request verifier. Intended for deployments with
// real signature schemes, and for tests.
func (s *Server) SetVerifier(v Verifier) {
	s.verifier = v
}

// Router builds the HTTP handler with logging and CORS applied.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/books", s.handleListBooks).Methods(http.MethodGet)
	api.HandleFunc("/books", s.handleCreateBook).Methods(http.MethodPost)
	api.HandleFunc("/books/{book_id}/orderbook", s.handleOrderBook).Methods(http.MethodGet)
	api.HandleFunc("/books/{book_id}/trades", s.handleRecentTrades).Methods(http.MethodGet)
	api.HandleFunc("/books/{book_id}/ws", s.handleWebSocket).Methods(http.MethodGet)
	api.HandleFunc("/orders", s.handleSubmitOrder).Methods(http.MethodPost)
	api.HandleFunc("/orders/{order_id}", s.handleGetOrder).Methods(http.MethodGet)
	api.HandleFunc("/orders/{order_id}", s.handleCancelOrder).Methods(http.MethodDelete)
	api.HandleFunc("/orders/{order_id}", s.handleAmendOrder).Methods(http.MethodPut)

	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", "X-Trader", "X-Request-Id"},
	}).Handler(logging.Middleware(r))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"books":  len(s.registry.List(r.Context())),
	})
}

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, BookListResponse{Books: s.registry.List(r.Context())})
}

func (s *Server) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	var req CreateBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "malformed JSON body")
		return
	}
	if req.BookID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "book_id is required")
		return
	}

	_, created := s.registry.GetOrCreate(r.Context(), req.BookID)
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]interface{}{
		"success": true,
		"book_id": req.BookID,
		"created": created,
	})
}

func (s *Server) handleOrderBook(w http.ResponseWriter, r *http.Request) {
	bookID := mux.Vars(r)["book_id"]
	book, err := s.registry.Get(r.Context(), bookID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	depth := 0
	if v := r.URL.Query().Get("depth"); v != "" {
		d, err := strconv.Atoi(v)
		if err != nil || d < 0 {
			writeError(w, http.StatusBadRequest, "bad_request", "depth must be a non-negative integer")
			return
		}
		depth = d
	}

	writeJSON(w, http.StatusOK, book.Snapshot(depth))
}

func (s *Server) handleRecentTrades(w http.ResponseWriter, r *http.Request) {
	bookID := mux.Vars(r)["book_id"]
	if _, err := s.registry.Get(r.Context(), bookID); err != nil {
		s.writeEngineError(w, err)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l <= 0 {
			writeError(w, http.StatusBadRequest, "bad_request", "limit must be a positive integer")
			return
		}
		limit = l
	}

	trades := []core.Trade{}
	if s.trades != nil {
		var err error
		trades, err = s.trades.RecentTrades(r.Context(), bookID, limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal", "failed to read trade history")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"book_id": bookID, "trades": trades})
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())

	var req SubmitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "malformed JSON body")
		return
	}

	if err := s.verifier.Verify(&req); err != nil {
		s.writeEngineError(w, err)
		return
	}

	engineReq, err := toSubmitRequest(&req)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	start := time.Now()
	result, err := s.registry.SubmitOrder(r.Context(), engineReq)
	otel.GetEngineMetrics().RecordMatchDuration(r.Context(), engineReq.BookID, time.Since(start))
	if err != nil {
		otel.GetEngineMetrics().RecordOrder(r.Context(), engineReq.BookID, "rejected")
		s.writeEngineError(w, err)
		return
	}

	otel.GetEngineMetrics().RecordOrder(r.Context(), engineReq.BookID, string(result.Order.Status()))
	otel.GetEngineMetrics().RecordTrades(r.Context(), engineReq.BookID, int64(len(result.Trades)))
	s.reportExecution(result)

	logger.Info().
		Str("book_id", engineReq.BookID).
		Str("order_id", result.Order.ID()).
		Int64("executed", result.Executed).
		Int64("remaining", result.Remaining).
		Int("trades", len(result.Trades)).
		Msg("Order processed")

	writeJSON(w, http.StatusOK, OrderResponse{
		Success:   true,
		Order:     result.Order,
		Trades:    result.Trades,
		Executed:  result.Executed,
		Remaining: result.Remaining,
		Rested:    result.Rested,
	})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["order_id"]
	order, err := s.registry.GetOrder(r.Context(), orderID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, OrderResponse{Success: true, Order: order})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["order_id"]
	trader := r.Header.Get("X-Trader")
	if trader == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "X-Trader header is required")
		return
	}

	order, err := s.registry.CancelOrder(r.Context(), orderID, trader)
	if err != nil {
		// Cancel is idempotent: a repeat cancel observes the terminal
		// order and succeeds.
		if errors.Is(err, core.ErrAlreadyTerminal) {
			writeJSON(w, http.StatusOK, OrderResponse{Success: true, Order: order})
			return
		}
		s.writeEngineError(w, err)
		return
	}

	logger := logging.FromContext(r.Context())
	logger.Info().
		Str("order_id", orderID).
		Msg("Order cancelled")
	writeJSON(w, http.StatusOK, OrderResponse{Success: true, Order: order})
}

func (s *Server) handleAmendOrder(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["order_id"]
	trader := r.Header.Get("X-Trader")
	if trader == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "X-Trader header is required")
		return
	}

	var req AmendOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "malformed JSON body")
		return
	}
	if req.Price == nil && req.Quantity == nil {
		writeError(w, http.StatusBadRequest, "bad_request", "nothing to amend")
		return
	}

	var newPrice *fpdecimal.Decimal
	if req.Price != nil {
		p := fpdecimal.FromFloat(*req.Price)
		newPrice = &p
	}

	result, err := s.registry.AmendOrder(r.Context(), orderID, trader, newPrice, req.Quantity)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	s.reportExecution(result)
	writeJSON(w, http.StatusOK, OrderResponse{
		Success:   true,
		Order:     result.Order,
		Trades:    result.Trades,
		Executed:  result.Executed,
		Remaining: result.Remaining,
		Rested:    result.Rested,
	})
}

// reportExecution publishes the execution report downstream without
// blocking the response.
func (s *Server) reportExecution(result *core.ExecutionResult) {
	if s.sender == nil {
		return
	}
	exec := executionMessage(result)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.sender.SendExecutionMessage(ctx, exec); err != nil {
			log.Error().Err(err).Str("order_id", exec.OrderID).Msg("Failed to publish execution report")
		}
	}()
}

func executionMessage(result *core.ExecutionResult) *messaging.ExecutionMessage {
	order := result.Order
	exec := &messaging.ExecutionMessage{
		OrderID:      order.ID(),
		BookID:       order.BookID(),
		Side:         order.Side().String(),
		Kind:         string(order.Kind()),
		Status:       string(order.Status()),
		ExecutedQty:  strconv.FormatInt(result.Executed, 10),
		RemainingQty: strconv.FormatInt(result.Remaining, 10),
	}
	for _, t := range result.Trades {
		exec.Trades = append(exec.Trades, messaging.Trade{
			ID:       t.ID,
			Price:    t.Price.String(),
			Quantity: strconv.FormatInt(t.Quantity, 10),
		})
	}
	return exec
}

// writeEngineError maps engine errors onto the REST error contract.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrUnknownBook):
		writeError(w, http.StatusNotFound, "unknown_book", err.Error())
	case errors.Is(err, core.ErrUnknownOrder):
		writeError(w, http.StatusNotFound, "unknown_order", err.Error())
	case errors.Is(err, core.ErrNotOwner):
		writeError(w, http.StatusForbidden, "not_owner", err.Error())
	case errors.Is(err, core.ErrNoLiquidity):
		// Business rejection of a well-formed request.
		writeJSON(w, http.StatusOK, OrderResponse{
			Success: false,
			Error:   &APIError{Code: "no_liquidity", Message: err.Error()},
		})
	case errors.Is(err, core.ErrAlreadyTerminal):
		writeJSON(w, http.StatusOK, OrderResponse{
			Success: false,
			Error:   &APIError{Code: "already_terminal", Message: err.Error()},
		})
	case errors.Is(err, core.ErrBookOffline):
		writeError(w, http.StatusServiceUnavailable, "book_offline", err.Error())
	case errors.Is(err, core.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, "invalid_quantity", err.Error())
	case errors.Is(err, core.ErrInvalidPrice):
		writeError(w, http.StatusBadRequest, "invalid_price", err.Error())
	case errors.Is(err, core.ErrInvalidSide):
		writeError(w, http.StatusBadRequest, "invalid_side", err.Error())
	case errors.Is(err, core.ErrInvalidKind):
		writeError(w, http.StatusBadRequest, "invalid_kind", err.Error())
	case errors.Is(err, core.ErrInvalidTrader):
		writeError(w, http.StatusBadRequest, "invalid_trader", err.Error())
	case errors.Is(err, core.ErrStaleNonce):
		writeError(w, http.StatusBadRequest, "stale_nonce", err.Error())
	case errors.Is(err, core.ErrExpiryInPast):
		writeError(w, http.StatusBadRequest, "expiry_in_past", err.Error())
	case errors.Is(err, core.ErrExpiryTooFar):
		writeError(w, http.StatusBadRequest, "expiry_too_far", err.Error())
	case errors.Is(err, ErrBadSignature):
		writeError(w, http.StatusBadRequest, "bad_signature", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, OrderResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: message},
	})
}
