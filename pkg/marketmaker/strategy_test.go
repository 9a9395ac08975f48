package marketmaker

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	return &Config{
		ServerAddr:        "http://localhost:8080",
		BookID:            "ETH-USD",
		ExternalSymbol:    "ETHUSDT",
		PriceSourceURL:    "https://api.binance.com",
		NumLevels:         3,
		BaseSpreadPercent: 0.2,
		PriceStepPercent:  0.1,
		OrderSize:         2,
	}
}

func TestLayeredSymmetricQuoting(t *testing.T) {
	s := NewLayeredSymmetricQuoting(testConfig(), zerolog.Nop())

	quotes := s.Quotes(1000)
	require.Len(t, quotes, 6)

	var bids, asks []Quote
	for _, q := range quotes {
		switch q.Side {
		case "buy":
			bids = append(bids, q)
		case "sell":
			asks = append(asks, q)
		default:
			t.Fatalf("unexpected side %q", q.Side)
		}
		assert.Equal(t, int64(2), q.Quantity)
	}
	require.Len(t, bids, 3)
	require.Len(t, asks, 3)

	// Innermost pair straddles the mid by half the base spread.
	assert.InDelta(t, 999, bids[0].Price, 1e-6)
	assert.InDelta(t, 1001, asks[0].Price, 1e-6)

	// Levels step away from the mid on both sides.
	for i := 1; i < len(bids); i++ {
		assert.Less(t, bids[i].Price, bids[i-1].Price)
		assert.Greater(t, asks[i].Price, asks[i-1].Price)
	}

	// The ladder never crosses itself.
	assert.Less(t, bids[0].Price, asks[0].Price)
}

func TestLayeredSymmetricQuotingSingleLevel(t *testing.T) {
	cfg := testConfig()
	cfg.NumLevels = 1
	s := NewLayeredSymmetricQuoting(cfg, zerolog.Nop())

	quotes := s.Quotes(500)
	require.Len(t, quotes, 2)
	assert.Equal(t, "buy", quotes[0].Side)
	assert.Equal(t, "sell", quotes[1].Side)
}
