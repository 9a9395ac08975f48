package stream

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numena-dex/bookd/pkg/core"
)

func recvEnvelope(t *testing.T, c *Client) Envelope {
	t.Helper()
	select {
	case msg := <-c.Send():
		var env Envelope
		require.NoError(t, json.Unmarshal(msg, &env))
		return env
	default:
		t.Fatal("expected a queued message")
		return Envelope{}
	}
}

func TestHubBroadcastToSubscribers(t *testing.T) {
	hub := NewHub(4)
	defer hub.Close()

	subscribed := hub.Register("c1")
	subscribed.Subscribe(DeltaChannel("ETH-USD"))
	other := hub.Register("c2")
	other.Subscribe(DeltaChannel("BTC-USD"))

	hub.PublishDelta(&core.BookDelta{BookID: "ETH-USD", Seq: 7})

	env := recvEnvelope(t, subscribed)
	assert.Equal(t, "orderbook:ETH-USD", env.Channel)

	select {
	case <-other.Send():
		t.Fatal("unsubscribed client received a message")
	default:
	}
}

func TestHubPerBookOrdering(t *testing.T) {
	hub := NewHub(16)
	defer hub.Close()

	client := hub.Register("c1")
	client.Subscribe(DeltaChannel("ETH-USD"))

	for seq := uint64(1); seq <= 5; seq++ {
		hub.PublishDelta(&core.BookDelta{BookID: "ETH-USD", Seq: seq})
	}

	// Queued messages arrive in publish order.
	for seq := uint64(1); seq <= 5; seq++ {
		env := recvEnvelope(t, client)
		data, _ := json.Marshal(env.Data)
		var delta core.BookDelta
		require.NoError(t, json.Unmarshal(data, &delta))
		assert.Equal(t, seq, delta.Seq)
	}
}

func TestHubDisconnectsSlowSubscriber(t *testing.T) {
	hub := NewHub(1)
	defer hub.Close()

	slow := hub.Register("slow")
	slow.Subscribe(TradeChannel("ETH-USD"))
	active := hub.Register("active")
	active.Subscribe(TradeChannel("ETH-USD"))

	trades := []core.Trade{{ID: "t", BookID: "ETH-USD", Quantity: 1}}
	hub.PublishTrades("ETH-USD", trades)
	recvEnvelope(t, active)

	// The slow client never drains its buffer, so the next publish
	// overflows it and the hub must drop the subscriber itself.
	hub.PublishTrades("ETH-USD", trades)
	recvEnvelope(t, active)

	assert.Equal(t, uint64(1), hub.Dropped())
	assert.Equal(t, 1, hub.ClientCount())

	// The queued message is still delivered, then the channel closes so
	// the client knows to reconnect and resync from a snapshot.
	_, open := <-slow.Send()
	require.True(t, open)
	_, open = <-slow.Send()
	assert.False(t, open)

	// Unregister after the drop stays a no-op.
	hub.Unregister(slow)
}

func TestHubUnsubscribe(t *testing.T) {
	hub := NewHub(4)
	defer hub.Close()

	client := hub.Register("c1")
	channel := TradeChannel("ETH-USD")
	client.Subscribe(channel)
	client.Unsubscribe(channel)

	hub.PublishTrades("ETH-USD", []core.Trade{{ID: "t"}})

	select {
	case <-client.Send():
		t.Fatal("unsubscribed client received a message")
	default:
	}
}

func TestHubUnregisterClosesSendChannel(t *testing.T) {
	hub := NewHub(4)
	defer hub.Close()

	client := hub.Register("c1")
	require.Equal(t, 1, hub.ClientCount())

	hub.Unregister(client)
	assert.Equal(t, 0, hub.ClientCount())

	_, open := <-client.Send()
	assert.False(t, open)

	// A second unregister is a no-op.
	hub.Unregister(client)
}

func TestHubSkipsEmptyTradeBatch(t *testing.T) {
	hub := NewHub(4)
	defer hub.Close()

	client := hub.Register("c1")
	client.Subscribe(TradeChannel("ETH-USD"))

	hub.PublishTrades("ETH-USD", nil)

	select {
	case <-client.Send():
		t.Fatal("empty trade batch should not publish")
	default:
	}
}

func TestFanoutSink(t *testing.T) {
	hub1 := NewHub(4)
	hub2 := NewHub(4)
	defer hub1.Close()
	defer hub2.Close()

	c1 := hub1.Register("a")
	c1.Subscribe(DeltaChannel("ETH-USD"))
	c2 := hub2.Register("b")
	c2.Subscribe(DeltaChannel("ETH-USD"))

	sink := NewFanoutSink(hub1, hub2)
	sink.PublishDelta(&core.BookDelta{BookID: "ETH-USD", Seq: 1})

	assert.Len(t, c1.send, 1)
	assert.Len(t, c2.send, 1)
}
