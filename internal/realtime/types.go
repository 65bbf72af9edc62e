// Package realtime describes the room session contract used for AI request
// bookkeeping and completion broadcasts: a keyed map of AI requests per room
// and a room scoped event channel. Concrete transports live in Hub (in
// process) and redisstore.Realtime.
package realtime

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound     = errors.New("realtime: not found")
	ErrForbidden    = errors.New("realtime: permission denied")
	ErrInvalidGrant = errors.New("realtime: invalid session grant")
)

type RequestStatus string

const (
	StatusPending   RequestStatus = "pending"
	StatusCompleted RequestStatus = "completed"
	StatusError     RequestStatus = "error"
)

// AIRequest is one AI operation tracked in a room's shared storage. Kind is
// one of generate, chat, summarize, translate; only the input field matching
// the kind is set.
type AIRequest struct {
	ID          string        `json:"id"`
	Type        string        `json:"type"`
	Prompt      string        `json:"prompt,omitempty"`
	Question    string        `json:"question,omitempty"`
	TargetLang  string        `json:"targetLang,omitempty"`
	Status      RequestStatus `json:"status"`
	Timestamp   time.Time     `json:"timestamp"`
	CompletedAt *time.Time    `json:"completedAt,omitempty"`
	Result      *string       `json:"result"`
}

// Complete moves the request to completed with result.
func (r *AIRequest) Complete(result string, at time.Time) {
	r.Status = StatusCompleted
	r.Result = &result
	r.CompletedAt = &at
}

// Fail moves the request to error; the result is cleared.
func (r *AIRequest) Fail(at time.Time) {
	r.Status = StatusError
	r.Result = nil
	r.CompletedAt = &at
}

// EventData is the payload of every completion event.
type EventData struct {
	RequestID string `json:"requestId"`
	Result    string `json:"result"`
	Timestamp string `json:"timestamp"`
}

// Event is a fire-and-forget room notification.
type Event struct {
	Type string    `json:"type"`
	Data EventData `json:"data"`
}

// CompletedEventType maps an AI kind to its completion tag, e.g.
// "generate" -> "AI_GENERATE_COMPLETED".
func CompletedEventType(kind string) string {
	return "AI_" + strings.ToUpper(kind) + "_COMPLETED"
}

func CompletedEvent(kind, requestID, result string, at time.Time) Event {
	return Event{
		Type: CompletedEventType(kind),
		Data: EventData{
			RequestID: requestID,
			Result:    result,
			Timestamp: at.UTC().Format(time.RFC3339Nano),
		},
	}
}

// Storage is the keyed AI request map of each room.
type Storage interface {
	PutRequest(ctx context.Context, roomID string, req AIRequest) error
	GetRequest(ctx context.Context, roomID, requestID string) (*AIRequest, error)
}

// Channel is the room scoped broadcast channel. The returned subscription
// channel is closed once ctx is done. Delivery is best effort.
type Channel interface {
	Publish(ctx context.Context, roomID string, ev Event) error
	Subscribe(ctx context.Context, roomID string) (<-chan Event, error)
}

type Transport interface {
	Storage
	Channel
	Ping(ctx context.Context) error
}
