package emergency

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	incidentsCreated    prometheus.Counter
	incidentTransitions *prometheus.CounterVec
	respondersMatched   prometheus.Histogram
)

// newCollectors creates new metric collectors.
func newCollectors() (prometheus.Counter, *prometheus.CounterVec, prometheus.Histogram) {
	created := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "incidents_created_total",
			Help: "Number of incidents created",
		},
	)
	transitions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "incident_transitions_total",
			Help: "Number of incident status transitions by target status",
		},
		[]string{"to"},
	)
	matched := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "responders_matched_per_incident",
			Help:    "Number of responders matched per incident",
			Buckets: []float64{0, 1, 2, 5, 10, 20},
		},
	)
	return created, transitions, matched
}

func init() {
	incidentsCreated, incidentTransitions, respondersMatched = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers emergency metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(incidentsCreated, incidentTransitions, respondersMatched)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	incidentsCreated, incidentTransitions, respondersMatched = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
