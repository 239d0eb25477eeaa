package http

import (
	"sync"

	"github.com/rs/zerolog/log"

	"quiz-duel-service/internal/app"
)

// Hub routes outbound events to per-connection send channels. It implements
// app.Notifier; sends never block the game core — when a client's buffer is
// full the oldest queued event is dropped in favor of the new one.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]chan app.Event
}

func NewHub() *Hub {
	return &Hub{conns: make(map[string]chan app.Event)}
}

// Add registers a connection and returns its event channel for the writer
// goroutine to drain.
func (h *Hub) Add(connID string) <-chan app.Event {
	ch := make(chan app.Event, 16)
	h.mu.Lock()
	h.conns[connID] = ch
	h.mu.Unlock()
	return ch
}

// Remove closes the connection's channel, terminating its writer.
func (h *Hub) Remove(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.conns[connID]; ok {
		delete(h.conns, connID)
		close(ch)
	}
}

func (h *Hub) Notify(connID string, event app.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ch, ok := h.conns[connID]
	if !ok {
		log.Debug().Str("conn_id", connID).Str("event", event.Type).Msg("event for gone connection dropped")
		return
	}
	send(ch, event)
}

func (h *Hub) Broadcast(event app.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.conns {
		send(ch, event)
	}
}

func send(ch chan app.Event, event app.Event) {
	select {
	case ch <- event:
	default:
		// slow client: drop the oldest queued event to make room
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- event:
		default:
		}
	}
}
