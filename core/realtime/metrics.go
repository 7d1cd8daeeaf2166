package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	eventsPublished *prometheus.CounterVec
	eventsDropped   *prometheus.CounterVec
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, *prometheus.CounterVec) {
	published := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_events_delivered_total",
			Help: "Number of realtime events delivered to sessions",
		},
		[]string{"event"},
	)
	dropped := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_events_dropped_total",
			Help: "Number of realtime events dropped for slow sessions",
		},
		[]string{"event"},
	)
	return published, dropped
}

func init() {
	eventsPublished, eventsDropped = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers realtime metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(eventsPublished, eventsDropped)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	eventsPublished, eventsDropped = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
