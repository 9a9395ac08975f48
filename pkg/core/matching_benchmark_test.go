package core

import (
	"context"
	"testing"
	"time"
)

func benchBook() *Book {
	book := NewBook("bench", DefaultConfig(), nil)
	book.SetClock(func() time.Time { return testClock })
	return book
}

// seedAsks fills the book with sell liquidity across 100 price levels.
func seedAsks(b *testing.B, book *Book) {
	b.Helper()
	for i := 0; i < 100; i++ {
		req := limitReq(Sell, 100.0+float64(i)*0.1, 1000000, testTrader)
		if _, err := book.Submit(context.Background(), req); err != nil {
			b.Fatalf("seed failed: %v", err)
		}
	}
}

// BenchmarkLimitOrderMatching measures a crossing limit order against a
// deep book.
func BenchmarkLimitOrderMatching(b *testing.B) {
	book := benchBook()
	seedAsks(b, book)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		// Small enough to not deplete the seeded liquidity.
		req := limitReq(Buy, 100.5, 2, testTraderTwo)
		_, _ = book.Submit(context.Background(), req)
	}
}

// BenchmarkMarketOrderMatching measures market order sweeps.
func BenchmarkMarketOrderMatching(b *testing.B) {
	book := benchBook()
	seedAsks(b, book)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req := marketReq(Buy, 3, testTraderTwo)
		_, _ = book.Submit(context.Background(), req)
	}
}

// BenchmarkRestingOrderInsert measures non-crossing inserts across many
// price levels.
func BenchmarkRestingOrderInsert(b *testing.B) {
	book := benchBook()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req := limitReq(Buy, 50.0+float64(i%500)*0.01, 1, testTrader)
		_, _ = book.Submit(context.Background(), req)
	}
}

// BenchmarkSnapshot measures depth snapshot generation on a populated
// book.
func BenchmarkSnapshot(b *testing.B) {
	book := benchBook()
	seedAsks(b, book)
	for i := 0; i < 100; i++ {
		req := limitReq(Buy, 99.0-float64(i)*0.1, 1000, testTrader)
		if _, err := book.Submit(context.Background(), req); err != nil {
			b.Fatalf("seed failed: %v", err)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = book.Snapshot(20)
	}
}
