package messaging

import "context"

// MessageSender defines an interface for publishing execution reports.
// This helps decouple the core package from specific implementations
// like Kafka in the queue package
type MessageSender interface {
	SendExecutionMessage(ctx context.Context, exec *ExecutionMessage) error
	Close() error
}

// ExecutionMessage is the downstream report emitted after an order is
// processed by a book. Quantities are serialized as decimal strings so
// consumers do not need to agree on a fixed-point representation.
type ExecutionMessage struct {
	OrderID      string  `json:"order_id"`
	BookID       string  `json:"book_id"`
	Side         string  `json:"side"`
	Kind         string  `json:"kind"`
	Status       string  `json:"status"`
	ExecutedQty  string  `json:"executed_qty"`
	RemainingQty string  `json:"remaining_qty"`
	Trades       []Trade `json:"trades,omitempty"`
}

// Trade represents a single trade execution
type Trade struct {
	ID       string `json:"id"`
	Price    string `json:"price"`
	Quantity string `json:"quantity"`
}
