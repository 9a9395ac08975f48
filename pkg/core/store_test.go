package core

import (
	"testing"
	"time"
)

func TestOrderStore(t *testing.T) {
	s := NewOrderStore()
	a := restingOrder("a", Buy, 100, 3)
	b := restingOrder("b", Sell, 101, 2)
	s.Put(a)
	s.Put(b)

	if got := s.Get("a"); got != a {
		t.Error("Expected to get order a back")
	}
	if got := s.Get("missing"); got != nil {
		t.Errorf("Expected nil for unknown id, got %v", got)
	}
	if s.OpenCount() != 2 {
		t.Errorf("Expected 2 open orders, got %d", s.OpenCount())
	}

	// Terminal orders stay queryable but leave the open set.
	a.transition(StatusCancelled, time.Now())
	s.Retire(a)
	if s.OpenCount() != 1 {
		t.Errorf("Expected 1 open order after retire, got %d", s.OpenCount())
	}
	if s.Get("a") == nil {
		t.Error("Expected retired order to stay queryable")
	}
}

func TestOrderStoreByTrader(t *testing.T) {
	s := NewOrderStore()
	a := restingOrder("a", Buy, 100, 3)
	b := restingOrder("b", Buy, 99, 2)
	c := restingOrder("c", Sell, 101, 1)
	c.trader = testTraderTwo
	s.Put(a)
	s.Put(b)
	s.Put(c)

	if got := len(s.OpenByTrader(testTrader)); got != 2 {
		t.Errorf("Expected 2 orders for trader, got %d", got)
	}
	if got := len(s.OpenByTrader(testTraderTwo)); got != 1 {
		t.Errorf("Expected 1 order for second trader, got %d", got)
	}
	if got := len(s.OpenByTrader("0x0000000000000000000000000000000000000000")); got != 0 {
		t.Errorf("Expected no orders for unknown trader, got %d", got)
	}

	a.transition(StatusCancelled, time.Now())
	s.Retire(a)
	if got := len(s.OpenByTrader(testTrader)); got != 1 {
		t.Errorf("Expected terminal order excluded, got %d", got)
	}
}
