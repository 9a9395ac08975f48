package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// Span names
	SpanSubmitOrder = "submit_order"
	SpanCancelOrder = "cancel_order"
	SpanAmendOrder  = "amend_order"
	SpanPublishFeed = "publish_feed"

	// Attribute keys
	AttributeBookID            = "book.id"
	AttributeOrderID           = "order.id"
	AttributeOrderSide         = "order.side"
	AttributeOrderKind         = "order.kind"
	AttributeQuantity          = "order.quantity"
	AttributePrice             = "order.price"
	AttributeExecutedQuantity  = "order.executed_quantity"
	AttributeRemainingQuantity = "order.remaining_quantity"
	AttributeTradeCount        = "trade.count"
)

// StartOrderSpan starts a new span for order processing
func StartOrderSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return GetEngineTracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// AddAttributes adds attributes to a span
func AddAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	if span == nil {
		return
	}
	span.SetAttributes(attrs...)
}
