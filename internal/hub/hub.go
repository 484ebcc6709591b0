// Package hub fans the application state out to every connected UI over
// WebSocket.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/weiawesome/duwdu-messenger/internal/config"
	"github.com/weiawesome/duwdu-messenger/pkg/log"
)

// Message types on the feed.
const (
	TypeSnapshot = "snapshot"
	TypeError    = "error"
	TypePing     = "ping"
	TypePong     = "pong"
	TypeSync     = "sync"
	TypeSearch   = "search"
)

// ErrClosed is returned by Broadcast once Run has returned.
var ErrClosed = errors.New("hub closed")

// Envelope is one frame sent to a UI.
type Envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Inbound is one frame received from a UI.
type Inbound struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	Open *bool  `json:"open,omitempty"`
}

type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}
	mu         sync.RWMutex
	config     config.WebSocketConfig
}

func NewHub(cfg config.WebSocketConfig) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
		done:       make(chan struct{}),
		config:     cfg,
	}
}

// Run serves registrations and broadcasts until ctx ends, then drops all
// clients.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	l := log.L()
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, client := range h.clients {
				delete(h.clients, id)
				client.close()
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			n := len(h.clients)
			h.mu.Unlock()
			l.Debug().Str("client_id", client.ID).Int("clients", n).Msg("feed client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			delete(h.clients, client.ID)
			h.mu.Unlock()
			client.close()
			l.Debug().Str("client_id", client.ID).Msg("feed client unregistered")

		case data := <-h.broadcast:
			h.mu.RLock()
			var slow []*Client
			for _, client := range h.clients {
				if !client.enqueue(data) {
					slow = append(slow, client)
				}
			}
			h.mu.RUnlock()
			for _, client := range slow {
				l.Warn().Str("client_id", client.ID).Msg("dropping slow feed client")
				h.drop(client)
			}
		}
	}
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.close()
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) drop(client *Client) {
	h.mu.Lock()
	delete(h.clients, client.ID)
	h.mu.Unlock()
	client.close()
}

// Broadcast sends one frame to every client.
func (h *Hub) Broadcast(typ string, data interface{}) error {
	payload, err := json.Marshal(Envelope{Type: typ, Data: data})
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- payload:
		return nil
	case <-h.done:
		return ErrClosed
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
