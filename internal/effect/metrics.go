package effect

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	solvesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keystone_homography_solves_total",
			Help: "Total number of homography solves",
		},
		[]string{"method", "result"}, // result: ok, error
	)

	solveDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "keystone_homography_solve_duration_seconds",
			Help:    "Homography solve duration in seconds",
			Buckets: []float64{1e-6, 5e-6, 1e-5, 5e-5, 1e-4, 5e-4, 1e-3, 5e-3},
		},
		[]string{"method"},
	)

	ticksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "keystone_controller_ticks_total",
			Help: "Total number of controller ticks",
		},
	)

	protocolViolationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "keystone_pointer_protocol_violations_total",
			Help: "Total number of pointer events rejected as protocol violations",
		},
	)

	editModeTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keystone_edit_mode_transitions_total",
			Help: "Total number of edit mode transitions",
		},
		[]string{"to"}, // to: editing, idle
	)
)
