package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/suPer8Hu/collabnote/internal/common"
	"github.com/suPer8Hu/collabnote/internal/metrics"
	"github.com/suPer8Hu/collabnote/internal/realtime"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period
	pingPeriod = (pongWait * 9) / 10

	// clients only send control frames
	maxMessageSize = 512
)

// RoomEvents streams the room's completion events over a websocket, one
// JSON event per text message.
func (h *Handler) RoomEvents(c *gin.Context) {
	roomID := c.Param("id")

	ctx, cancel := context.WithCancel(context.Background())
	events, err := h.Transport.Subscribe(ctx, roomID)
	if err != nil {
		cancel()
		h.Log.Error().Err(err).Str("room_id", roomID).Msg("subscribe to room events failed")
		common.Fail(c, http.StatusServiceUnavailable, 50300, "realtime unavailable")
		return
	}

	conn, err := h.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		cancel()
		h.Log.Warn().Err(err).Str("room_id", roomID).Msg("websocket upgrade failed")
		return
	}

	metrics.EventSubscribers.Inc()
	defer metrics.EventSubscribers.Dec()

	// the read side only watches for close and pong frames
	go func() {
		defer cancel()
		conn.SetReadLimit(maxMessageSize)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.Log.Debug().Err(err).Str("room_id", roomID).Msg("room event stream closed")
				}
				return
			}
		}
	}()

	h.writeEvents(ctx, conn, events)
	cancel()
	_ = conn.Close()
}

func (h *Handler) writeEvents(ctx context.Context, conn *websocket.Conn, events <-chan realtime.Event) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case ev, ok := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
