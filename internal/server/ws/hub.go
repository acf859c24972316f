// Package ws pushes bot events to dashboard clients over WebSocket.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/optimizeforall/polymarket-bot/internal/domain"
)

const (
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4096

	// sendBufferSize is the channel buffer for outgoing messages per client.
	sendBufferSize = 256
)

// busChannels are the SignalBus channels bridged to clients when a bus is
// configured. Loop events arrive through Broadcast instead.
var busChannels = []string{"prices", "orders", "positions"}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Envelope is the frame sent to clients.
type Envelope struct {
	Type    string          `json:"type"`
	Time    time.Time       `json:"ts"`
	Payload json.RawMessage `json:"payload"`
}

// StatusFunc returns the snapshot sent to a client on connect.
type StatusFunc func() any

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	subs map[string]bool // empty means everything
	mu   sync.RWMutex
}

// subscribeMsg is sent by clients to narrow or widen the event types they
// receive: {"action":"subscribe","types":["trade","halt"]}.
type subscribeMsg struct {
	Action string   `json:"action"`
	Types  []string `json:"types"`
}

// Hub fans events out to connected clients. Broadcast never blocks; a client
// whose buffer is full misses the message.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan broadcastMsg
	register   chan *client
	unregister chan *client
	bus        domain.SignalBus // optional
	status     StatusFunc       // optional
	mu         sync.RWMutex
	logger     *slog.Logger
}

type broadcastMsg struct {
	kind string
	data []byte
}

// NewHub creates a Hub. bus and status may be nil.
func NewHub(bus domain.SignalBus, status StatusFunc, logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan broadcastMsg, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		bus:        bus,
		status:     status,
		logger:     logger.With(slog.String("component", "ws_hub")),
	}
}

// Broadcast queues an event for every client subscribed to its type.
func (h *Hub) Broadcast(event string, payload any) {
	data, err := encode(event, payload, time.Now().UTC())
	if err != nil {
		h.logger.Warn("ws: encode event failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
		return
	}
	select {
	case h.broadcast <- broadcastMsg{kind: event, data: data}:
	default:
		h.logger.Warn("ws: broadcast queue full, dropping event", slog.String("event", event))
	}
}

func encode(event string, payload any, at time.Time) ([]byte, error) {
	raw, ok := payload.(json.RawMessage)
	if !ok {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return json.Marshal(Envelope{Type: event, Time: at, Payload: raw})
}

// Run is the hub event loop. It returns when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	if h.bus != nil {
		for _, ch := range busChannels {
			go h.subscribeToChannel(ctx, ch)
		}
	}

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws: client connected", slog.Int("total_clients", n))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws: client disconnected", slog.Int("total_clients", n))

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				if !c.wants(msg.kind) {
					continue
				}
				select {
				case c.send <- msg.data:
				default:
					h.logger.Warn("ws: dropping message for slow client")
				}
			}
			h.mu.RUnlock()
		}
	}
}

// subscribeToChannel forwards one SignalBus channel to clients. Messages are
// already JSON and are wrapped with the channel name as their type.
func (h *Hub) subscribeToChannel(ctx context.Context, channel string) {
	msgCh, err := h.bus.Subscribe(ctx, channel)
	if err != nil {
		h.logger.Error("ws: failed to subscribe to channel",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-msgCh:
			if !ok {
				h.logger.Warn("ws: channel subscription closed", slog.String("channel", channel))
				return
			}
			h.Broadcast(channel, json.RawMessage(data))
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWS upgrades the request and registers the client.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		subs: make(map[string]bool),
	}
	h.register <- c
	c.sendInitialStatus()

	go c.writePump()
	go c.readPump()
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws: unexpected close error", slog.String("error", err.Error()))
			}
			return
		}
		var sub subscribeMsg
		if json.Unmarshal(message, &sub) == nil && sub.Action != "" {
			c.handleSubscription(sub)
		}
	}
}

func (c *client) handleSubscription(msg subscribeMsg) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch strings.ToLower(msg.Action) {
	case "subscribe":
		for _, t := range msg.Types {
			c.subs[t] = true
		}
	case "unsubscribe":
		for _, t := range msg.Types {
			delete(c.subs, t)
		}
	case "reset":
		clear(c.subs)
	}
}

func (c *client) wants(kind string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subs) == 0 || c.subs[kind]
}

// sendInitialStatus pushes a status frame so clients can render before the
// next tick.
func (c *client) sendInitialStatus() {
	if c.hub.status == nil {
		return
	}
	msg, err := encode("status", c.hub.status(), time.Now().UTC())
	if err != nil {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
