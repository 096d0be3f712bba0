// Package chat provides the real-time layer: a per-room subscriber registry
// and the websocket event loop. All mutations persist through GORM first;
// a frame is only fanned out after the durable write, so per-room delivery
// order matches persisted order.
package chat

import "sync"

// Frame is the wire envelope in both directions.
type Frame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Client is one connected session able to receive frames. Session is the
// production implementation; tests substitute their own.
type Client interface {
	WriteFrame(f Frame) error
}

type Hub struct {
	mu    sync.Mutex
	rooms map[uint]map[Client]struct{}
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[uint]map[Client]struct{})}
}

func (h *Hub) Subscribe(roomID uint, c Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.rooms[roomID]
	if !ok {
		subs = make(map[Client]struct{})
		h.rooms[roomID] = subs
	}
	subs[c] = struct{}{}
}

func (h *Hub) Unsubscribe(roomID uint, c Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.rooms[roomID]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// Drop removes the client from every room, used on disconnect.
func (h *Hub) Drop(c Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for roomID, subs := range h.rooms {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// Broadcast fans one frame out to every session subscribed to the room.
// Write failures are the session's problem; a dead peer is cleaned up by
// its own read loop.
func (h *Hub) Broadcast(roomID uint, f Frame) {
	h.mu.Lock()
	subs := make([]Client, 0, len(h.rooms[roomID]))
	for c := range h.rooms[roomID] {
		subs = append(subs, c)
	}
	h.mu.Unlock()

	for _, c := range subs {
		_ = c.WriteFrame(f)
	}
}
