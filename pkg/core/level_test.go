package core

import (
	"testing"
	"time"

	"github.com/nikolaydubina/fpdecimal"
)

func restingOrder(id string, side Side, price float64, qty int64) *Order {
	now := time.Now()
	return &Order{
		id:        id,
		bookID:    "test",
		side:      side,
		kind:      KindLimit,
		trader:    testTrader,
		price:     fpdecimal.FromFloat(price),
		quantity:  qty,
		remaining: qty,
		status:    StatusOpen,
		createdAt: now,
		updatedAt: now,
	}
}

func TestSideIndexOrdering(t *testing.T) {
	tests := []struct {
		name   string
		side   Side
		prices []float64
		want   []float64
	}{
		{"BidsDescending", Buy, []float64{100, 102, 99, 101}, []float64{102, 101, 100, 99}},
		{"AsksAscending", Sell, []float64{100, 98, 103, 99}, []float64{98, 99, 100, 103}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := newSideIndex(tt.side)
			for i, p := range tt.prices {
				idx.Add(restingOrder(string(rune('a'+i)), tt.side, p, 1))
			}

			snap := idx.Snapshot(0)
			if len(snap) != len(tt.want) {
				t.Fatalf("Expected %d levels, got %d", len(tt.want), len(snap))
			}
			for i, p := range tt.want {
				if !snap[i].Price.Equal(fpdecimal.FromFloat(p)) {
					t.Errorf("Level %d: expected %v, got %v", i, p, snap[i].Price)
				}
			}
		})
	}
}

func TestSideIndexAggregates(t *testing.T) {
	idx := newSideIndex(Buy)
	a := restingOrder("a", Buy, 100, 3)
	b := restingOrder("b", Buy, 100, 2)
	idx.Add(a)
	idx.Add(b)

	snap := idx.Snapshot(0)
	if len(snap) != 1 || snap[0].Size != 5 {
		t.Fatalf("Expected single level size 5, got %+v", snap)
	}

	// Partial fill of the first order.
	a.fill(1, time.Now())
	idx.Reduce(a, 1)
	if idx.Snapshot(0)[0].Size != 4 {
		t.Errorf("Expected size 4 after reduce, got %d", idx.Snapshot(0)[0].Size)
	}

	// Exhausting an order unlinks it but keeps the level.
	a.fill(2, time.Now())
	idx.Reduce(a, 2)
	if got := idx.Snapshot(0)[0].Size; got != 2 {
		t.Errorf("Expected size 2, got %d", got)
	}
	if idx.Depth() != 1 {
		t.Errorf("Expected depth 1, got %d", idx.Depth())
	}

	// Emptying the level removes it entirely.
	b.fill(2, time.Now())
	idx.Reduce(b, 2)
	if idx.Depth() != 0 {
		t.Errorf("Expected empty side, got depth %d", idx.Depth())
	}
	if _, ok := idx.BestPrice(); ok {
		t.Error("Expected no best price on empty side")
	}
}

func TestSideIndexRemove(t *testing.T) {
	idx := newSideIndex(Sell)
	a := restingOrder("a", Sell, 100, 3)
	b := restingOrder("b", Sell, 101, 2)
	idx.Add(a)
	idx.Add(b)

	if !idx.Remove(a) {
		t.Fatal("Expected remove to find the order")
	}
	if idx.Remove(a) {
		t.Error("Expected second remove to miss")
	}
	if best, ok := idx.BestPrice(); !ok || !best.Equal(fpdecimal.FromFloat(101.0)) {
		t.Errorf("Expected best 101 after removal, got %v (ok=%v)", best, ok)
	}
}

func TestSideIndexFIFO(t *testing.T) {
	idx := newSideIndex(Sell)
	for i := 0; i < 3; i++ {
		idx.Add(restingOrder(string(rune('a'+i)), Sell, 100, 1))
	}

	lvl := idx.best()
	got := make([]string, 0, 3)
	for e := lvl.head; e != nil; e = e.next {
		got = append(got, e.order.ID())
	}
	want := []string{"a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Expected FIFO order %v, got %v", want, got)
		}
	}
}

func TestSnapshotDepthAndEmpty(t *testing.T) {
	idx := newSideIndex(Buy)

	snap := idx.Snapshot(5)
	if snap == nil || len(snap) != 0 {
		t.Errorf("Expected empty non-nil snapshot, got %v", snap)
	}

	for i, p := range []float64{100, 99, 98} {
		idx.Add(restingOrder(string(rune('a'+i)), Buy, p, 1))
	}
	if got := len(idx.Snapshot(2)); got != 2 {
		t.Errorf("Expected 2 levels at depth 2, got %d", got)
	}
}
