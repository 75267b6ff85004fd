package websocket

import (
	"context"
	"sync"

	"github.com/richxcame/fraud-investigator/pkg/logger"
	"go.uber.org/zap"
)

// Hub fans live pipeline messages out to every connected viewer
type Hub struct {
	clients map[string]*Client

	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message

	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 256),
	}
}

// Run starts the hub's main loop and returns when ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	log := logger.Named("websocket")
	log.Info("websocket hub started")

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			log.Info("websocket hub stopped")
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.broadcast:
			h.broadcastMessage(msg)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client
	logger.Debug("websocket client registered", zap.String("client_id", client.ID))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(client)
}

func (h *Hub) removeLocked(client *Client) {
	if existing, ok := h.clients[client.ID]; ok && existing == client {
		delete(h.clients, client.ID)
		close(client.send)
		logger.Debug("websocket client unregistered", zap.String("client_id", client.ID))
	}
}

// broadcastMessage delivers msg to every client; clients whose buffer is full are dropped
func (h *Hub) broadcastMessage(msg *Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		select {
		case client.send <- msg:
		default:
			logger.Warn("websocket client too slow, dropping", zap.String("client_id", client.ID))
			h.removeLocked(client)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, client := range h.clients {
		h.removeLocked(client)
	}
}

// Broadcast queues msg for every connected client. It never blocks the caller:
// when the queue is full the message is dropped.
func (h *Hub) Broadcast(msg *Message) bool {
	select {
	case h.broadcast <- msg:
		return true
	default:
		logger.Warn("websocket broadcast queue full, dropping message", zap.String("type", msg.Type))
		return false
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
