package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/suPer8Hu/collabnote/internal/ai"
	"github.com/suPer8Hu/collabnote/internal/config"
	"github.com/suPer8Hu/collabnote/internal/dispatch"
	"github.com/suPer8Hu/collabnote/internal/realtime"
	"github.com/suPer8Hu/collabnote/internal/room"
)

// Deps are the services the HTTP surface is built on. Jobs may be nil when
// no queue is configured; the async endpoints then answer 503.
type Deps struct {
	Cfg        config.Config
	Log        zerolog.Logger
	Rooms      *room.Service
	Dispatcher *dispatch.Dispatcher
	Jobs       *dispatch.Jobs
	Transport  realtime.Transport
	Backend    *ai.BackendClient
}

type Handler struct {
	Cfg        config.Config
	Log        zerolog.Logger
	Rooms      *room.Service
	Dispatcher *dispatch.Dispatcher
	Jobs       *dispatch.Jobs
	Transport  realtime.Transport
	Backend    *ai.BackendClient
	// Responder answers the backend proxy routes. It is always the local
	// placeholder so the proxy never calls itself.
	Responder *ai.Placeholder
	Upgrader  websocket.Upgrader
}

func NewHandler(d Deps) *Handler {
	return &Handler{
		Cfg:        d.Cfg,
		Log:        d.Log,
		Rooms:      d.Rooms,
		Dispatcher: d.Dispatcher,
		Jobs:       d.Jobs,
		Transport:  d.Transport,
		Backend:    d.Backend,
		Responder:  ai.NewPlaceholder(),
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}
