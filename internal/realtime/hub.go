package realtime

import (
	"context"
	"sync"
)

const subscriberBuffer = 64

type subscriber struct {
	send chan Event
}

// Hub is an in-process Transport. It serves single-instance deployments and
// tests; events never leave the process.
type Hub struct {
	// Rooms mapping (roomID -> subscribers)
	rooms    map[string]map[*subscriber]bool
	roomsMux sync.RWMutex

	// Shared storage (roomID -> requestID -> request)
	requests    map[string]map[string]AIRequest
	requestsMux sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		rooms:    make(map[string]map[*subscriber]bool),
		requests: make(map[string]map[string]AIRequest),
	}
}

func (h *Hub) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (h *Hub) PutRequest(ctx context.Context, roomID string, req AIRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.requestsMux.Lock()
	defer h.requestsMux.Unlock()
	if _, ok := h.requests[roomID]; !ok {
		h.requests[roomID] = make(map[string]AIRequest)
	}
	h.requests[roomID][req.ID] = req
	return nil
}

func (h *Hub) GetRequest(ctx context.Context, roomID, requestID string) (*AIRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.requestsMux.RLock()
	defer h.requestsMux.RUnlock()
	req, ok := h.requests[roomID][requestID]
	if !ok {
		return nil, ErrNotFound
	}
	return &req, nil
}

// Publish fans ev out to the room. Subscribers whose buffer is full miss the
// event.
func (h *Hub) Publish(ctx context.Context, roomID string, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.roomsMux.RLock()
	defer h.roomsMux.RUnlock()
	for sub := range h.rooms[roomID] {
		select {
		case sub.send <- ev:
		default:
		}
	}
	return nil
}

func (h *Hub) Subscribe(ctx context.Context, roomID string) (<-chan Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sub := &subscriber{send: make(chan Event, subscriberBuffer)}

	h.roomsMux.Lock()
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[*subscriber]bool)
	}
	h.rooms[roomID][sub] = true
	h.roomsMux.Unlock()

	go func() {
		<-ctx.Done()
		h.leave(roomID, sub)
	}()
	return sub.send, nil
}

func (h *Hub) leave(roomID string, sub *subscriber) {
	h.roomsMux.Lock()
	defer h.roomsMux.Unlock()
	if subs, ok := h.rooms[roomID]; ok {
		delete(subs, sub)
		// Clean up empty rooms
		if len(subs) == 0 {
			delete(h.rooms, roomID)
		}
	}
	close(sub.send)
}

// Subscribers returns the number of live subscriptions for a room.
func (h *Hub) Subscribers(roomID string) int {
	h.roomsMux.RLock()
	defer h.roomsMux.RUnlock()
	return len(h.rooms[roomID])
}
