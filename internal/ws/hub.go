// Package ws streams ride updates to websocket subscribers.
package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Message is the envelope written to every subscriber.
type Message struct {
	Type   string `json:"type"`
	RideID string `json:"ride_id"`
	Data   any    `json:"data,omitempty"`
}

type client struct {
	rideID string
	conn   *websocket.Conn
	send   chan []byte
}

// Hub fans ride updates out to the clients watching each ride.
type Hub struct {
	log *slog.Logger

	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
}

// NewHub creates an empty hub.
func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		log:     log.With("component", "ws_hub"),
		clients: make(map[string]map[*client]struct{}),
	}
}

// Subscribers returns how many clients are watching a ride.
func (h *Hub) Subscribers(rideID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[rideID])
}

// Broadcast sends msg to every subscriber of its ride. Clients whose buffer
// is full are dropped.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("marshal ws message", "ride_id", msg.RideID, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients[msg.RideID] {
		select {
		case c.send <- data:
		default:
			h.removeLocked(c)
		}
	}
}

// Serve upgrades the request and streams updates for rideID until the
// client disconnects.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, rideID string) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &client{rideID: rideID, conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	if h.clients[rideID] == nil {
		h.clients[rideID] = make(map[*client]struct{})
	}
	h.clients[rideID][c] = struct{}{}
	h.mu.Unlock()

	h.log.Debug("ws subscriber joined", "ride_id", rideID)

	go h.writePump(c)
	h.readPump(c)
	return nil
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.clients {
		for c := range set {
			h.removeLocked(c)
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	set, ok := h.clients[c.rideID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.rideID)
	}
	close(c.send)
}

// readPump discards client input and keeps the pong deadline fresh.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("ws read error", "ride_id", c.rideID, "error", err)
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
