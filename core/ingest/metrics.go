package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
)

var messagesTotal *prometheus.CounterVec

// newCollectors creates new metric collectors.
func newCollectors() *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_messages_total",
			Help: "Number of bus messages processed by kind and result",
		},
		[]string{"kind", "result"},
	)
}

func init() {
	messagesTotal = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers ingest metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(messagesTotal)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	messagesTotal = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
