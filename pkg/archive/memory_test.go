package archive

import (
	"context"
	"fmt"
	"testing"

	"github.com/nikolaydubina/fpdecimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numena-dex/bookd/pkg/core"
)

func makeTrades(bookID string, n int) []core.Trade {
	trades := make([]core.Trade, n)
	for i := range trades {
		trades[i] = core.Trade{
			ID:       fmt.Sprintf("trade-%d", i),
			BookID:   bookID,
			Price:    fpdecimal.FromInt(100 + i),
			Quantity: int64(i + 1),
		}
	}
	return trades
}

func TestMemoryArchiveMostRecentFirst(t *testing.T) {
	a := NewMemoryArchive(10)
	a.PublishTrades("ETH-USD", makeTrades("ETH-USD", 3))

	got, err := a.RecentTrades(context.Background(), "ETH-USD", 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "trade-2", got[0].ID)
	assert.Equal(t, "trade-1", got[1].ID)
	assert.Equal(t, "trade-0", got[2].ID)
}

func TestMemoryArchiveLimit(t *testing.T) {
	a := NewMemoryArchive(10)
	a.PublishTrades("ETH-USD", makeTrades("ETH-USD", 5))

	got, err := a.RecentTrades(context.Background(), "ETH-USD", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "trade-4", got[0].ID)

	got, err = a.RecentTrades(context.Background(), "ETH-USD", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryArchiveRingWraps(t *testing.T) {
	a := NewMemoryArchive(3)
	a.PublishTrades("ETH-USD", makeTrades("ETH-USD", 5))

	got, err := a.RecentTrades(context.Background(), "ETH-USD", 10)
	require.NoError(t, err)
	// Only the newest three survive, newest first.
	require.Len(t, got, 3)
	assert.Equal(t, "trade-4", got[0].ID)
	assert.Equal(t, "trade-3", got[1].ID)
	assert.Equal(t, "trade-2", got[2].ID)
}

func TestMemoryArchiveUnknownBook(t *testing.T) {
	a := NewMemoryArchive(10)

	got, err := a.RecentTrades(context.Background(), "missing", 10)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestMemoryArchiveBooksIsolated(t *testing.T) {
	a := NewMemoryArchive(10)
	a.PublishTrades("ETH-USD", makeTrades("ETH-USD", 2))
	a.PublishTrades("BTC-USD", makeTrades("BTC-USD", 1))

	eth, err := a.RecentTrades(context.Background(), "ETH-USD", 10)
	require.NoError(t, err)
	assert.Len(t, eth, 2)

	btc, err := a.RecentTrades(context.Background(), "BTC-USD", 10)
	require.NoError(t, err)
	assert.Len(t, btc, 1)
	assert.Equal(t, "BTC-USD", btc[0].BookID)
}

func TestMemoryArchiveIgnoresEmptyBatch(t *testing.T) {
	a := NewMemoryArchive(10)
	a.PublishTrades("ETH-USD", nil)

	got, err := a.RecentTrades(context.Background(), "ETH-USD", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}
