package redisstore

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/suPer8Hu/collabnote/internal/realtime"
)

// Realtime implements realtime.Transport on redis: a hash per room for AI
// requests and a pub/sub channel per room for events. Pub/sub delivery is at
// most once; a subscriber that is reconnecting misses events.
type Realtime struct {
	client *redis.Client
	log    zerolog.Logger
}

func NewRealtime(s *Store, log zerolog.Logger) *Realtime {
	return &Realtime{client: s.client, log: log.With().Str("component", "realtime.redis").Logger()}
}

func requestsKey(roomID string) string { return keyPrefix + "room:" + roomID + ":ai_requests" }
func eventsKey(roomID string) string   { return keyPrefix + "room:" + roomID + ":events" }

func (r *Realtime) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Realtime) PutRequest(ctx context.Context, roomID string, req realtime.AIRequest) error {
	raw, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return r.client.HSet(ctx, requestsKey(roomID), req.ID, raw).Err()
}

func (r *Realtime) GetRequest(ctx context.Context, roomID, requestID string) (*realtime.AIRequest, error) {
	raw, err := r.client.HGet(ctx, requestsKey(roomID), requestID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, realtime.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var req realtime.AIRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *Realtime) Publish(ctx context.Context, roomID string, ev realtime.Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, eventsKey(roomID), raw).Err()
}

func (r *Realtime) Subscribe(ctx context.Context, roomID string) (<-chan realtime.Event, error) {
	ps := r.client.Subscribe(ctx, eventsKey(roomID))
	// wait for the subscription to be confirmed so no publish after
	// Subscribe returns is missed
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	out := make(chan realtime.Event, 64)
	go func() {
		defer close(out)
		defer ps.Close()

		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev realtime.Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					r.log.Warn().Err(err).Str("room_id", roomID).Msg("dropping malformed room event")
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
