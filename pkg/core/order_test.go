package core

import (
	"encoding/json"
	"testing"
	"time"
)

func TestSideString(t *testing.T) {
	tests := []struct {
		name string
		side Side
		want string
	}{
		{"Buy", Buy, "BUY"},
		{"Sell", Sell, "SELL"},
		{"Invalid", Side(999), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.side.String(); got != tt.want {
				t.Errorf("Side.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSideOpposite(t *testing.T) {
	if Buy.Opposite() != Sell {
		t.Error("Expected Buy.Opposite() == Sell")
	}
	if Sell.Opposite() != Buy {
		t.Error("Expected Sell.Opposite() == Buy")
	}
}

func TestStatusTerminal(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusOpen, false},
		{StatusPartiallyFilled, false},
		{StatusFilled, true},
		{StatusCancelled, true},
		{StatusExpired, true},
		{StatusRejected, true},
	}

	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.want {
			t.Errorf("%s.Terminal() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestOrderFill(t *testing.T) {
	o := restingOrder("a", Buy, 100, 5)
	now := time.Now()

	o.fill(2, now)
	if o.Status() != StatusPartiallyFilled || o.Remaining() != 3 {
		t.Errorf("Expected PARTIALLY_FILLED/3, got %s/%d", o.Status(), o.Remaining())
	}

	o.fill(3, now)
	if o.Status() != StatusFilled || o.Remaining() != 0 {
		t.Errorf("Expected FILLED/0, got %s/%d", o.Status(), o.Remaining())
	}
}

func TestOrderFillOutOfRangePanics(t *testing.T) {
	o := restingOrder("a", Buy, 100, 5)

	defer func() {
		if recover() == nil {
			t.Error("Expected panic on overfill")
		}
	}()
	o.fill(6, time.Now())
}

func TestTransitionFromTerminalPanics(t *testing.T) {
	o := restingOrder("a", Buy, 100, 5)
	o.transition(StatusCancelled, time.Now())

	defer func() {
		if recover() == nil {
			t.Error("Expected panic on transition from terminal status")
		}
	}()
	o.transition(StatusExpired, time.Now())
}

func TestExpiredAt(t *testing.T) {
	now := time.Now()
	o := restingOrder("a", Buy, 100, 5)
	o.expiry = now.Add(time.Hour).Unix()

	if o.ExpiredAt(now) {
		t.Error("Expected order not yet expired")
	}
	if !o.ExpiredAt(now.Add(2 * time.Hour)) {
		t.Error("Expected order expired after its expiry")
	}

	// Zero expiry never expires.
	o.expiry = 0
	if o.ExpiredAt(now.Add(1000 * time.Hour)) {
		t.Error("Expected zero expiry to never expire")
	}
}

func TestOrderMarshalJSON(t *testing.T) {
	o := restingOrder("a", Sell, 100.5, 5)

	data, err := json.Marshal(o)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var wire map[string]interface{}
	if err := json.Unmarshal(data, &wire); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if wire["order_id"] != "a" {
		t.Errorf("Expected order_id a, got %v", wire["order_id"])
	}
	if wire["side"] != "SELL" {
		t.Errorf("Expected side SELL, got %v", wire["side"])
	}
	// Wire prices are always positive magnitudes, even on the sell side.
	if wire["price"].(float64) != 100.5 {
		t.Errorf("Expected price 100.5, got %v", wire["price"])
	}
	if wire["status"] != "OPEN" {
		t.Errorf("Expected status OPEN, got %v", wire["status"])
	}
}
