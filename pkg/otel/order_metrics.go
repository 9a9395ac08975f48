package otel

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	engineMetrics     *EngineMetrics
	engineMetricsOnce sync.Once
	meter             = otel.GetMeterProvider().Meter(instrumentationName)
)

// EngineMetrics holds metrics for matching engine operations
type EngineMetrics struct {
	ordersTotal  metric.Int64Counter
	tradesTotal  metric.Int64Counter
	matchLatency metric.Float64Histogram
}

// GetEngineMetrics returns the EngineMetrics singleton. Safe for
// concurrent first use; instruments that fail to build stay nil and
// their Record methods become no-ops.
func GetEngineMetrics() *EngineMetrics {
	engineMetricsOnce.Do(func() {
		engineMetrics = &EngineMetrics{}

		ordersTotal, err := meter.Int64Counter(
			"engine.orders.total",
			metric.WithDescription("Total number of orders accepted for processing"),
			metric.WithUnit("{order}"),
		)
		if err != nil {
			return
		}
		tradesTotal, err := meter.Int64Counter(
			"engine.trades.total",
			metric.WithDescription("Total number of trades executed"),
			metric.WithUnit("{trade}"),
		)
		if err != nil {
			return
		}
		matchLatency, err := meter.Float64Histogram(
			"engine.match.duration",
			metric.WithDescription("Time spent matching one submit"),
			metric.WithUnit("ms"),
		)
		if err != nil {
			return
		}

		engineMetrics.ordersTotal = ordersTotal
		engineMetrics.tradesTotal = tradesTotal
		engineMetrics.matchLatency = matchLatency
	})
	return engineMetrics
}

// RecordOrder increments the order counter with the resulting status
func (m *EngineMetrics) RecordOrder(ctx context.Context, bookID, status string) {
	if m.ordersTotal == nil {
		return
	}
	m.ordersTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("book.id", bookID),
		attribute.String("order.status", status),
	))
}

// RecordTrades adds executed trades for a book
func (m *EngineMetrics) RecordTrades(ctx context.Context, bookID string, count int64) {
	if m.tradesTotal == nil || count == 0 {
		return
	}
	m.tradesTotal.Add(ctx, count, metric.WithAttributes(
		attribute.String("book.id", bookID),
	))
}

// RecordMatchDuration records the wall time of one submit
func (m *EngineMetrics) RecordMatchDuration(ctx context.Context, bookID string, d time.Duration) {
	if m.matchLatency == nil {
		return
	}
	m.matchLatency.Record(ctx, float64(d.Microseconds())/1000.0, metric.WithAttributes(
		attribute.String("book.id", bookID),
	))
}
