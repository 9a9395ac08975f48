package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/numena-dex/bookd/pkg/stream"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS is handled by the outer middleware.
		return true
	},
}

// WSSubscribeRequest is the inbound subscription control message.
type WSSubscribeRequest struct {
	Op       string   `json:"op"`
	Channels []string `json:"channels"`
}

// handleWebSocket upgrades the connection and streams the book's deltas
// and trades. The client starts subscribed to both channels of the book
// in the URL and receives one snapshot immediately, so it can always
// resynchronize by reconnecting.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		writeError(w, http.StatusNotImplemented, "streaming_disabled", "no stream hub configured")
		return
	}

	bookID := mux.Vars(r)["book_id"]
	book, err := s.registry.Get(r.Context(), bookID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := s.hub.Register(conn.RemoteAddr().String())
	client.Subscribe(stream.DeltaChannel(bookID))
	client.Subscribe(stream.TradeChannel(bookID))

	// Initial snapshot before any incremental delta.
	snapshot := stream.Envelope{
		Channel: stream.DeltaChannel(bookID),
		Data:    book.Snapshot(0),
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(snapshot); err != nil {
		s.hub.Unregister(client)
		conn.Close()
		return
	}

	go s.writePump(conn, client)
	go s.readPump(conn, client)
}

// readPump consumes subscription control messages until the connection
// drops, then unregisters the client.
func (s *Server) readPump(conn *websocket.Conn, client *stream.Client) {
	defer func() {
		s.hub.Unregister(client)
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Str("client", client.ID()).Msg("WebSocket read error")
			}
			return
		}

		var req WSSubscribeRequest
		if err := json.Unmarshal(message, &req); err != nil {
			log.Debug().Err(err).Str("client", client.ID()).Msg("Invalid WebSocket message")
			continue
		}

		switch req.Op {
		case "subscribe":
			for _, channel := range req.Channels {
				client.Subscribe(channel)
			}
		case "unsubscribe":
			for _, channel := range req.Channels {
				client.Unsubscribe(channel)
			}
		default:
			log.Debug().Str("op", req.Op).Msg("Unknown WebSocket op")
		}
	}
}

// writePump drains the client's queue to the connection and keeps the
// connection alive with pings.
func (s *Server) writePump(conn *websocket.Conn, client *stream.Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel.
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
