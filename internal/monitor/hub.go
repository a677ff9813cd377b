// Package monitor implements the Lobby's live operator event feed: a
// websocket broadcast hub built on a register/unregister/broadcast-channel
// pattern, with the MessageConnection abstraction taken from the
// teacher's peer-relay code in common/network.go, repointed at fan-out of
// lifecycle events to connected operator dashboards instead of game
// traffic between two players.
package monitor

import (
	"encoding/json"
	"sync"
	"time"
)

// Event is one lifecycle notification pushed to every connected
// operator client, grounded on the checkpoint strings db_server.cpp and
// lobby_server.cpp emit via log_checkpoint (CLIENT_CONNECTED, ROOM
// created/joined/closed, GAME_STARTED, GAME_FINISHED, and so on).
type Event struct {
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// client is a single connected operator socket, identified by the
// MessageConnection it was registered with.
type client struct {
	conn MessageConnection
	send chan []byte
}

// Hub fans a single stream of Events out to every connected operator
// dashboard, grounded on a chat hub's register/unregister/broadcast
// channel trio (internal/delivery/ws style), but without any of the
// chat-room bookkeeping that pattern originally carried.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}

	register   chan *client
	unregister chan *client
	broadcast  chan []byte
}

// NewHub constructs an idle Hub; call Run in its own goroutine to start
// serving registrations and broadcasts.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 256),
	}
}

// Run is the hub's single event loop. It returns when stop is closed.
func (h *Hub) Run(stop <-chan struct{}) {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Slow consumer: drop it rather than block the hub.
					delete(h.clients, c)
					close(c.send)
				}
			}
			h.mu.Unlock()
		case <-stop:
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
				c.conn.CloseWithMessage("lobby shutting down")
			}
			h.mu.Unlock()
			return
		}
	}
}

// Publish encodes ev as JSON and fans it out to every connected client.
// A marshal failure drops the event rather than taking down the hub.
func (h *Hub) Publish(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- data:
	default:
	}
}

// Register adds conn to the fan-out set and starts the goroutines that
// pump queued messages out to it and drain its incoming frames (needed
// only to detect the peer closing the socket).
func (h *Hub) Register(conn MessageConnection) {
	c := &client{conn: conn, send: make(chan []byte, 32)}
	h.register <- c

	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) writePump(c *client) {
	for msg := range c.send {
		if err := c.conn.WriteMessage(msg); err != nil {
			h.unregister <- c
			return
		}
	}
}

func (h *Hub) readPump(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.unregister <- c
			return
		}
	}
}
