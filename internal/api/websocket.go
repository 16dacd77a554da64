package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/samuelsono/nelo-fms/internal/fanout"
	"github.com/samuelsono/nelo-fms/internal/infrastructure/config"
	"github.com/samuelsono/nelo-fms/internal/infrastructure/logging"
)

// WebSocket message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"

	// wsSendBufferSize is the per-client outbound buffer size used when
	// websocket.send_buffer_size is not configured.
	wsSendBufferSize = 256
)

// WSMessage represents a message sent to/from a WebSocket client.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	Channel   string `json:"channel,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload for subscribe/unsubscribe messages.
// Channels are "vehicle-data" for the full feed or "device:<imei>" for
// one unit.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// upgrader configures the WebSocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// wsClient bridges one WebSocket connection onto the fanout hub. Enriched
// readings arrive on the hub subscriber; subscribe/unsubscribe messages
// from the client map to channel joins and leaves.
type wsClient struct {
	hub    *fanout.Hub
	sub    *fanout.Subscriber
	conn   *websocket.Conn
	send   chan []byte
	logger *logging.Logger
}

// handleWebSocket upgrades the HTTP connection and binds it to the hub.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	buffer := s.wsCfg.SendBufferSize
	if buffer <= 0 {
		buffer = wsSendBufferSize
	}
	client := &wsClient{
		hub:    s.hub,
		sub:    s.hub.SubscribeBuffered(buffer),
		conn:   conn,
		send:   make(chan []byte, buffer),
		logger: s.logger,
	}
	s.logger.Debug("websocket client connected", "subscribers", s.hub.SubscriberCount())

	go client.writePump(s.wsCfg)
	go client.readPump(s.wsCfg)
}

// readPump reads messages from the WebSocket connection.
func (c *wsClient) readPump(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.Unsubscribe(c.sub)
		close(c.send)
		c.conn.Close()
		c.logger.Debug("websocket client disconnected", "subscribers", c.hub.SubscriberCount())
	}()

	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	pongWait := time.Duration(cfg.PongTimeout) * time.Second
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", "error", err)
			} else {
				c.logger.Debug("websocket closed", "error", err)
			}
			return
		}
		// Any client message resets the read deadline (keeps connection alive
		// even if browser doesn't respond to protocol-level pings).
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
		c.handleMessage(message)
	}
}

// writePump writes hub events and queued responses to the connection.
func (c *wsClient) writePump(cfg config.WebSocketConfig) {
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	pongWait := time.Duration(cfg.PongTimeout) * time.Second

	for {
		select {
		case event, ok := <-c.sub.Events():
			if !ok {
				// Hub shut down
				//nolint:errcheck // Best-effort close message
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			data, err := json.Marshal(WSMessage{
				Type:      WSTypeEvent,
				Channel:   string(event.Channel),
				Timestamp: time.Now().UTC().Format(time.RFC3339),
				Payload:   event.Reading,
			})
			if err != nil {
				c.logger.Error("failed to marshal websocket event", "error", err)
				continue
			}
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case message, ok := <-c.send:
			if !ok {
				// Client disconnected
				//nolint:errcheck // Best-effort close message
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes an incoming WebSocket message.
func (c *wsClient) handleMessage(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("", "invalid JSON message")
		return
	}

	switch msg.Type {
	case WSTypeSubscribe:
		c.handleSubscribe(msg)
	case WSTypeUnsubscribe:
		c.handleUnsubscribe(msg)
	case WSTypePing:
		c.sendResponse(msg.ID, WSTypePong, nil)
	default:
		c.sendError(msg.ID, "unknown message type: "+msg.Type)
	}
}

// handleSubscribe joins the client to the requested hub channels.
func (c *wsClient) handleSubscribe(msg WSMessage) {
	channels, ok := c.parseChannels(msg)
	if !ok {
		return
	}

	for _, ch := range channels {
		c.hub.Join(c.sub, fanout.Channel(ch))
	}
	c.logger.Info("websocket client subscribed", "channels", channels)

	c.sendResponse(msg.ID, WSTypeResponse, map[string]any{
		"subscribed": channels,
	})
}

// handleUnsubscribe removes the client from the requested hub channels.
func (c *wsClient) handleUnsubscribe(msg WSMessage) {
	channels, ok := c.parseChannels(msg)
	if !ok {
		return
	}

	for _, ch := range channels {
		c.hub.Leave(c.sub, fanout.Channel(ch))
	}

	c.sendResponse(msg.ID, WSTypeResponse, map[string]any{
		"unsubscribed": channels,
	})
}

// parseChannels extracts and validates the channel list from a message.
func (c *wsClient) parseChannels(msg WSMessage) ([]string, bool) {
	payloadBytes, err := json.Marshal(msg.Payload)
	if err != nil {
		c.sendError(msg.ID, "invalid payload")
		return nil, false
	}

	var sub WSSubscribePayload
	if err := json.Unmarshal(payloadBytes, &sub); err != nil {
		c.sendError(msg.ID, "invalid channel payload")
		return nil, false
	}
	if len(sub.Channels) == 0 {
		c.sendError(msg.ID, "channels list is empty")
		return nil, false
	}
	for _, ch := range sub.Channels {
		if !validChannel(ch) {
			c.sendError(msg.ID, "unknown channel: "+ch)
			return nil, false
		}
	}
	return sub.Channels, true
}

// validChannel reports whether a subscription channel name is recognised.
func validChannel(ch string) bool {
	if ch == string(fanout.BroadcastChannel()) {
		return true
	}
	imei, found := strings.CutPrefix(ch, "device:")
	return found && imei != ""
}

// trySend attempts to queue a response for the client, dropping it when
// the buffer is full or the client already disconnected.
func (c *wsClient) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // Absorb send-on-closed-channel panic
	}()

	select {
	case c.send <- data:
	default:
		// Client buffer full, skip
	}
}

// sendResponse sends a response message to the client.
func (c *wsClient) sendResponse(id, msgType string, payload any) {
	msg := WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.trySend(data)
}

// sendError sends an error message to the client.
func (c *wsClient) sendError(id, message string) {
	c.sendResponse(id, WSTypeError, map[string]string{"message": message})
}
