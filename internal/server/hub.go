package server

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
)

// Envelope is one message pushed to console websocket clients.
type Envelope struct {
	Type      string `json:"type"`
	Data      any    `json:"data"`
	Timestamp int64  `json:"timestamp"`
}

// Hub fans entry updates out to every connected console client.
type Hub struct {
	log        *slog.Logger
	clients    map[*websocket.Conn]struct{}
	broadcast  chan Envelope
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	mu         sync.RWMutex
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		log:        log,
		clients:    make(map[*websocket.Conn]struct{}),
		broadcast:  make(chan Envelope, 100),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
	}
}

// Run owns the client set. Call it once in its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = struct{}{}
			h.mu.Unlock()
			h.log.Debug("websocket client connected", "remote", conn.RemoteAddr().String())
		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				_ = conn.Close()
			}
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.send(msg)
		case <-h.done:
			h.mu.Lock()
			for conn := range h.clients {
				_ = conn.Close()
				delete(h.clients, conn)
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) send(msg Envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn := range h.clients {
		if err := conn.WriteJSON(msg); err != nil {
			h.log.Debug("websocket write failed", "error", err)
			select {
			case h.unregister <- conn:
			default:
			}
		}
	}
}

// Broadcast queues a message for all clients; a full queue drops the message
// rather than stalling the caller.
func (h *Hub) Broadcast(msgType string, data any) {
	msg := Envelope{Type: msgType, Data: data, Timestamp: time.Now().UnixMilli()}
	select {
	case h.broadcast <- msg:
	case <-h.done:
	default:
		h.log.Debug("websocket broadcast queue full, dropping update")
	}
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and stops Run.
func (h *Hub) Close() { close(h.done) }

// handleClient blocks until the client disconnects. Clients only listen; any
// inbound frame is discarded.
func (h *Hub) handleClient(conn *websocket.Conn) {
	select {
	case h.register <- conn:
	case <-h.done:
		_ = conn.Close()
		return
	}
	defer func() {
		select {
		case h.unregister <- conn:
		case <-h.done:
		}
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
