package hub

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Handler receives text frames sent by clients.
type Handler func(c *Client, data []byte)

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	name   string
	logger *slog.Logger

	clients    map[*Client]bool
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	// mu guards clients and last for readers outside Run.
	mu   sync.RWMutex
	last *Message

	running atomic.Bool
	onFrame atomic.Pointer[Handler]
}

// New creates a hub. Call Run to start delivering.
func New(name string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		name:       name,
		logger:     logger.With("component", "hub", "hub", name),
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Handle sets the handler for client frames. Frames arriving while no
// handler is set are ignored.
func (h *Hub) Handle(fn Handler) {
	if fn == nil {
		h.onFrame.Store(nil)
		return
	}
	h.onFrame.Store(&fn)
}

func (h *Hub) handler() Handler {
	if fn := h.onFrame.Load(); fn != nil {
		return *fn
	}
	return nil
}

// Run delivers messages until ctx is done, then disconnects every client.
// A hub runs once.
func (h *Hub) Run(ctx context.Context) {
	h.running.Store(true)
	defer func() {
		h.running.Store(false)
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			if h.last != nil {
				client.send <- *h.last
			}
			h.mu.Unlock()
			h.logger.Info("client connected", "client", client.ID, "clients", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client disconnected", "client", client.ID, "clients", count)

		case message := <-h.broadcast:
			h.mu.Lock()
			h.last = &message
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
					h.logger.Warn("dropped slow client", "client", client.ID)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast queues msg for every client. It never blocks; when the queue
// is full the message is dropped.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("broadcast queue full, dropping message")
	}
}

// Publish broadcasts data wrapped in an Event of the given type.
func (h *Hub) Publish(eventType string, data any) error {
	msg, err := NewEventMessage(eventType, data)
	if err != nil {
		return err
	}
	h.Broadcast(msg)
	return nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// IsRunning reports whether Run is active.
func (h *Hub) IsRunning() bool {
	return h.running.Load()
}
