package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collabnote_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "collabnote_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	RoomsProvisioned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collabnote_rooms_provisioned_total",
			Help: "Room create/rename attempts by outcome",
		},
		[]string{"op", "outcome"}, // op: create|rename, outcome: ok|error
	)

	RoomListCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collabnote_room_list_cache_total",
			Help: "Room listing cache lookups",
		},
		[]string{"result"}, // hit|miss|error
	)

	AIDispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collabnote_ai_dispatch_total",
			Help: "AI dispatches by kind and terminal state",
		},
		[]string{"kind", "state"}, // state: responded|failed
	)

	AIBackendCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collabnote_ai_backend_calls_total",
			Help: "Calls to the AI backend HTTP contract",
		},
		[]string{"kind", "outcome"},
	)

	EventSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "collabnote_event_subscribers",
			Help: "Open room event websocket streams",
		},
	)
)
