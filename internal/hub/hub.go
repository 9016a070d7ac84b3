package hub

import (
	"sync"

	"github.com/weiawesome/wes-io-collab/internal/config"
	"github.com/weiawesome/wes-io-collab/internal/domain"
	"github.com/weiawesome/wes-io-collab/pkg/log"
)

// Hub tracks live websocket clients by handle. It implements the
// coordinator's Transport.
type Hub struct {
	clients    map[domain.Handle]*Client
	unregister chan *Client
	stop       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
	config     config.WebSocketConfig

	// onClose runs once per client after it has been removed.
	onClose func(domain.Handle)
}

func NewHub(cfg config.WebSocketConfig, onClose func(domain.Handle)) *Hub {
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = 256
	}
	return &Hub{
		clients:    make(map[domain.Handle]*Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
		config:     cfg,
		onClose:    onClose,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.unregister:
			if h.remove(client) && h.onClose != nil {
				h.onClose(client.Handle)
			}
			l := log.L()
			l.Debug().Str(log.FieldHandle, client.Handle.String()).Msg("client unregistered")

		case <-h.stop:
			h.mu.Lock()
			for handle, client := range h.clients {
				delete(h.clients, handle)
				close(client.Send)
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) remove(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if current, ok := h.clients[client.Handle]; !ok || current != client {
		return false
	}
	delete(h.clients, client.Handle)
	close(client.Send)
	return true
}

// Register makes the client reachable through Send as soon as it returns.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client.Handle] = client
	h.mu.Unlock()
	l := log.L()
	l.Debug().Str(log.FieldHandle, client.Handle.String()).Msg("client registered")
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.stop:
	}
}

// Stop closes every client's send channel and ends Run.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// Send queues frame for the client without blocking. A client whose buffer
// is full is dropped.
func (h *Hub) Send(handle domain.Handle, frame []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[handle]
	if !ok {
		return false
	}
	select {
	case client.Send <- frame:
		return true
	default:
		l := log.L()
		l.Warn().Str(log.FieldHandle, handle.String()).Msg("send buffer full, dropping client")
		go h.Unregister(client)
		return false
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
