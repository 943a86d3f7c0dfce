package ws

import (
	"sync"
)

// Client is one websocket connection registered with a Hub.
type Client struct {
	ID   string
	Send chan []byte

	hub       *Hub
	closeConn func() error
	mu        sync.Mutex
	closed    bool
}

func NewClient(id string, buffer int) *Client {
	return &Client{ID: id, Send: make(chan []byte, buffer)}
}

// Close unregisters the client and closes its send channel. Safe to call
// more than once.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.Send)
	c.mu.Unlock()

	if c.hub != nil {
		c.hub.unregister(c)
	}
}

// trySend queues data without blocking; a full buffer drops the message.
func (c *Client) trySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// Hub maintains the set of active clients and broadcasts to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.hub = h
	h.clients[c.ID] = c
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.clients[c.ID]; ok && cur == c {
		delete(h.clients, c.ID)
	}
}

// Broadcast queues data on every client and returns how many accepted it.
func (h *Hub) Broadcast(data []byte) int {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range clients {
		if c.trySend(data) {
			delivered++
		}
	}
	return delivered
}

// BroadcastEvent encodes an envelope and broadcasts it.
func (h *Hub) BroadcastEvent(event string, data any) (int, error) {
	msg, err := Encode(event, data)
	if err != nil {
		return 0, err
	}
	return h.Broadcast(msg), nil
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll closes every underlying connection. Each connection's read loop
// then runs its normal disconnect path.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if c.closeConn != nil {
			_ = c.closeConn()
		} else {
			c.Close()
		}
	}
}
