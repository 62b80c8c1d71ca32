package ws

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"sync"

	"github.com/goccy/go-json"

	"discord-chat/internal/models"
	"discord-chat/internal/observability"
)

// Hub maintains the websocket rooms of this instance, one per chat.
type Hub struct {
	rooms map[models.ChatRef]map[*Client]struct{}
	mu    sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[models.ChatRef]map[*Client]struct{})}
}

// Add registers a client in the room of its chat.
func (h *Hub) Add(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[c.chat]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[c.chat] = room
	}
	room[c] = struct{}{}
}

// Remove unregisters a client and closes its send queue.
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	if room, ok := h.rooms[c.chat]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, c.chat)
		}
	}
	h.mu.Unlock()
	c.closeSend()
}

// RoomSize returns the number of local subscribers of chat.
func (h *Hub) RoomSize(chat models.ChatRef) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[chat])
}

// Deliver queues payload to every local subscriber of chat. Subscribers whose
// queue is full are disconnected; they recover by refetching history.
func (h *Hub) Deliver(chat models.ChatRef, payload []byte) int {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.rooms[chat]))
	for c := range h.rooms[chat] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range clients {
		err := c.enqueue(payload)
		if err == nil {
			delivered++
			continue
		}
		if errors.Is(err, errClientClosed) {
			continue
		}
		log.Warn("websocket subscriber too slow, dropping", "chat", chat.String(), "conn_id", c.info.ConnID)
		observability.IncLiveDropped(string(chat.Kind))
		h.Remove(c)
	}
	return delivered
}

// Broadcast delivers ev to the subscribers connected to this instance. It is
// the broadcaster used when no cross-instance broker is configured.
func (h *Hub) Broadcast(ctx context.Context, chat models.ChatRef, ev models.LiveEvent) error {
	payload, err := encodeEvent(chat, ev)
	if err != nil {
		return err
	}
	observability.IncLiveEvent(string(chat.Kind), string(ev.Kind), "published")
	n := h.Deliver(chat, payload)
	observability.IncLiveEvent(string(chat.Kind), string(ev.Kind), "delivered")
	log.DebugContext(ctx, "live event delivered", "chat", chat.String(), "kind", ev.Kind, "subscribers", n)
	return nil
}

func encodeEvent(chat models.ChatRef, ev models.LiveEvent) ([]byte, error) {
	if !chat.OwnsTopic(ev.Topic) {
		return nil, fmt.Errorf("topic %q does not belong to %s", ev.Topic, chat)
	}
	return json.Marshal(ev)
}
