// Package stream fans out book deltas and trade prints to WebSocket
// subscribers. Publishing never blocks the matching path: a client
// whose send buffer fills is disconnected and must reconnect, which
// hands it a fresh snapshot to resynchronize from.
package stream

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/numena-dex/bookd/pkg/core"
)

// DefaultSendBuffer is the per-client outbound queue size.
const DefaultSendBuffer = 256

// DeltaChannel names the order book depth channel for a book.
func DeltaChannel(bookID string) string {
	return fmt.Sprintf("orderbook:%s", bookID)
}

// TradeChannel names the trade print channel for a book.
func TradeChannel(bookID string) string {
	return fmt.Sprintf("trades:%s", bookID)
}

// Envelope wraps every outbound message with its channel so clients can
// demultiplex a single connection.
type Envelope struct {
	Channel string      `json:"channel"`
	Data    interface{} `json:"data"`
}

// Hub maintains active subscribers and broadcasts messages to them.
// It implements core.EventSink so books can publish through it directly.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	closed  bool

	sendBuffer int
	logger     zerolog.Logger

	dropped uint64 // subscribers disconnected due to full send buffers
}

// NewHub creates a hub with the given per-client buffer size. A size of
// zero falls back to DefaultSendBuffer.
func NewHub(sendBuffer int) *Hub {
	if sendBuffer <= 0 {
		sendBuffer = DefaultSendBuffer
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		sendBuffer: sendBuffer,
		logger:     log.With().Str("component", "stream").Logger(),
	}
}

// Register creates a client and adds it to the hub.
func (h *Hub) Register(id string) *Client {
	client := &Client{
		hub:           h,
		id:            id,
		send:          make(chan []byte, h.sendBuffer),
		subscriptions: make(map[string]bool),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(client.send)
		return client
	}
	h.clients[client] = true
	h.logger.Debug().Str("client", id).Int("total", len(h.clients)).Msg("client connected")
	return client
}

// Unregister removes a client and closes its send channel.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
		h.logger.Debug().Str("client", client.id).Int("total", len(h.clients)).Msg("client disconnected")
	}
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many subscribers were disconnected because their
// send buffer filled up.
func (h *Hub) Dropped() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}

// Broadcast sends a payload to every client subscribed to the channel.
// A client that cannot keep up is disconnected rather than silently
// skipped: a skipped message would leave it on a stale stream with no
// way to notice, while the closed connection forces a reconnect and a
// fresh snapshot.
func (h *Hub) Broadcast(channel string, data interface{}) {
	message, err := json.Marshal(Envelope{Channel: channel, Data: data})
	if err != nil {
		h.logger.Error().Err(err).Str("channel", channel).Msg("marshal error")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		if !client.IsSubscribed(channel) {
			continue
		}
		select {
		case client.send <- message:
		default:
			delete(h.clients, client)
			close(client.send)
			h.dropped++
			h.logger.Warn().Str("client", client.id).Str("channel", channel).Msg("slow subscriber dropped")
		}
	}
}

// PublishDelta implements core.EventSink.
func (h *Hub) PublishDelta(delta *core.BookDelta) {
	h.Broadcast(DeltaChannel(delta.BookID), delta)
}

// PublishTrades implements core.EventSink.
func (h *Hub) PublishTrades(bookID string, trades []core.Trade) {
	if len(trades) == 0 {
		return
	}
	h.Broadcast(TradeChannel(bookID), trades)
}

// Close disconnects all clients. Further broadcasts are no-ops.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
	}
}

// Client is a single subscriber attached to the hub.
type Client struct {
	hub  *Hub
	id   string
	send chan []byte

	subscriptions map[string]bool
	subsMu        sync.RWMutex
}

// ID returns the client identifier.
func (c *Client) ID() string {
	return c.id
}

// Send returns the outbound message queue for this client.
func (c *Client) Send() <-chan []byte {
	return c.send
}

// IsSubscribed checks if the client is subscribed to a channel.
func (c *Client) IsSubscribed(channel string) bool {
	c.subsMu.RLock()
	defer c.subsMu.RUnlock()
	return c.subscriptions[channel]
}

// Subscribe adds a channel subscription.
func (c *Client) Subscribe(channel string) {
	c.subsMu.Lock()
	c.subscriptions[channel] = true
	c.subsMu.Unlock()
}

// Unsubscribe removes a channel subscription.
func (c *Client) Unsubscribe(channel string) {
	c.subsMu.Lock()
	delete(c.subscriptions, channel)
	c.subsMu.Unlock()
}

var _ core.EventSink = (*Hub)(nil)

// FanoutSink forwards book events to multiple sinks in order.
type FanoutSink struct {
	sinks []core.EventSink
}

// NewFanoutSink builds a sink that publishes to each of the given sinks.
func NewFanoutSink(sinks ...core.EventSink) *FanoutSink {
	return &FanoutSink{sinks: sinks}
}

// PublishDelta implements core.EventSink.
func (f *FanoutSink) PublishDelta(delta *core.BookDelta) {
	for _, s := range f.sinks {
		s.PublishDelta(delta)
	}
}

// PublishTrades implements core.EventSink.
func (f *FanoutSink) PublishTrades(bookID string, trades []core.Trade) {
	for _, s := range f.sinks {
		s.PublishTrades(bookID, trades)
	}
}

var _ core.EventSink = (*FanoutSink)(nil)
