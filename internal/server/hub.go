package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rogersnm/fieldsync/internal/event"
	"github.com/rogersnm/fieldsync/internal/id"
	"github.com/rogersnm/fieldsync/internal/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	clientSend = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API only listens on loopback by default; any local page may watch.
	CheckOrigin: func(*http.Request) bool { return true },
}

// envelope is the wire form of one sync event.
type envelope struct {
	Type      event.Type   `json:"type"`
	Source    event.Source `json:"source"`
	Pending   int          `json:"pending"`
	Delivered int          `json:"delivered,omitempty"`
	Failed    int          `json:"failed,omitempty"`
	Error     string       `json:"error,omitempty"`
	Timestamp int64        `json:"timestamp"`
}

type wsClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

// Hub fans sync events out to connected websocket clients. A client that
// falls behind is disconnected.
type Hub struct {
	mu          sync.RWMutex
	clients     map[string]*wsClient
	events      <-chan event.Event
	unsubscribe func()
	done        chan struct{}
}

func NewHub(bus *event.Bus) *Hub {
	events, unsubscribe := bus.Channel(256)
	h := &Hub{
		clients:     make(map[string]*wsClient),
		events:      events,
		unsubscribe: unsubscribe,
		done:        make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	defer close(h.done)
	for e := range h.events {
		msg, err := json.Marshal(envelope{
			Type:      e.Type,
			Source:    e.Source,
			Pending:   e.Pending,
			Delivered: e.Delivered,
			Failed:    e.Failed,
			Error:     e.Message(),
			Timestamp: e.At.Unix(),
		})
		if err != nil {
			continue
		}
		h.broadcast(msg)
	}
}

func (h *Hub) broadcast(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for cid, c := range h.clients {
		select {
		case c.send <- msg:
		default:
			close(c.send)
			delete(h.clients, cid)
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close stops the hub and disconnects every client.
func (h *Hub) Close() {
	h.unsubscribe()
	<-h.done
	h.mu.Lock()
	defer h.mu.Unlock()
	for cid, c := range h.clients {
		close(c.send)
		delete(h.clients, cid)
	}
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		close(c.send)
	}
}

// ServeHTTP upgrades the request and streams events until the client leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.FromContext(r.Context()).Warn("websocket upgrade failed", "error", err)
		return
	}
	c := &wsClient{id: id.New(), conn: conn, send: make(chan []byte, clientSend), hub: h}
	h.register(c)
	go c.writePump()
	go c.readPump()
}

// readPump only services control frames; clients have nothing to say.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
