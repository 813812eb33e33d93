package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/atomic"

	"mediadrop/portal/internal/service"
)

const (
	writeWait          = 10 * time.Second
	pongWait           = 60 * time.Second
	pingPeriod         = (pongWait * 9) / 10
	maxMessageSize     = 4 * 1024
	maxSendChannelSize = 256
)

// Outgoing event types for the operator dashboard.
const (
	EventTypeProgress = "upload_progress"
	EventTypeSnapshot = "snapshot"
	EventTypeError    = "error"
)

// OutEvent is one frame pushed to dashboard clients.
type OutEvent struct {
	Type      string    `json:"type"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub fans ledger updates out to every connected dashboard.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	closed  bool

	metrics Metrics
}

// Metrics counts hub traffic.
type Metrics struct {
	EventsSent  atomic.Int64
	Connections atomic.Int64
	Dropped     atomic.Int64
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
	}
}

// Register adds a dashboard connection and sends it the opening snapshot.
func (h *Hub) Register(client *Client, snapshot any) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		client.Close()
		return
	}
	h.clients[client] = true
	h.mu.Unlock()

	h.metrics.Connections.Inc()

	client.SendJSON(OutEvent{
		Type:      EventTypeSnapshot,
		Payload:   snapshot,
		Timestamp: time.Now(),
	})
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		client.Close()
	}
	h.mu.Unlock()
}

// Broadcast pushes one event to every connected dashboard. Slow clients drop
// the frame; the next update supersedes it anyway.
func (h *Hub) Broadcast(eventType string, payload any) {
	ev := OutEvent{
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("hub: failed to marshal broadcast event: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if !client.SendRaw(data) {
			h.metrics.Dropped.Inc()
		}
	}

	h.metrics.EventsSent.Inc()
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for client := range h.clients {
		client.Close()
	}
	h.clients = make(map[*Client]bool)
}

// Notifier adapts the hub to the ledger's notification channel.
type Notifier struct {
	hub *Hub
}

func NewNotifier(hub *Hub) *Notifier {
	return &Notifier{hub: hub}
}

func (n *Notifier) Notify(_ context.Context, notification service.Notification) error {
	n.hub.Broadcast(EventTypeProgress, notification)
	return nil
}

// Client is one dashboard WebSocket connection.
type Client struct {
	ctx      context.Context
	cancel   context.CancelFunc
	conn     *websocket.Conn
	send     chan []byte
	mu       sync.RWMutex
	isClosed bool
}

func NewClient(ctx context.Context, conn *websocket.Conn) *Client {
	ctx, cancel := context.WithCancel(ctx)

	return &Client{
		ctx:    ctx,
		cancel: cancel,
		conn:   conn,
		send:   make(chan []byte, maxSendChannelSize),
	}
}

// ReadPump drains the connection until it closes. Dashboards are
// listen-only; inbound frames are discarded but keep the pong handler fed.
func (c *Client) ReadPump() {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
			if _, _, err := c.conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err,
					websocket.CloseGoingAway,
					websocket.CloseAbnormalClosure) {
					log.Printf("ws: client read error: %v", err)
				}
				return
			}
		}
	}
}

// WritePump flushes the send channel to the wire and keeps the connection
// alive with pings.
func (c *Client) WritePump() error {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			return nil
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))

			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return nil
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return err
			}

			if _, err := w.Write(message); err != nil {
				return err
			}

			// Coalesce whatever else is queued into the same frame batch.
			n := len(c.send)
			for i := 0; i < n; i++ {
				if _, err := w.Write(<-c.send); err != nil {
					return err
				}
			}

			if err := w.Close(); err != nil {
				return err
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		}
	}
}

func (c *Client) SendJSON(v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("ws: client marshal error: %v", err)
		return false
	}

	return c.SendRaw(data)
}

func (c *Client) SendRaw(data []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.isClosed {
		return false
	}

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isClosed {
		return
	}

	c.isClosed = true
	c.cancel()
	close(c.send)
	c.conn.Close()
}
