package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "keystone",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Requests served, by route and status code.",
		},
		[]string{"method", "route", "code"},
	)

	requestSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "keystone",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Request latency by route.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"method", "route"},
	)

	rejectedMutations = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "keystone",
			Name:      "rejected_mutations_total",
			Help:      "Mutating requests refused by the rate limiter.",
		},
	)

	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "keystone",
			Subsystem: "websocket",
			Name:      "active_connections",
			Help:      "Open editing sessions.",
		},
	)

	// direction is one of sent, received or dropped.
	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "keystone",
			Subsystem: "websocket",
			Name:      "messages_total",
			Help:      "WebSocket messages by direction.",
		},
		[]string{"direction"},
	)

	commandQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "keystone",
			Name:      "command_queue_depth",
			Help:      "Editing commands waiting for the next tick.",
		},
	)
)
