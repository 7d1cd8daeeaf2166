package notify

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	notificationsTotal *prometheus.CounterVec
	bulkBatchesTotal   *prometheus.CounterVec
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, *prometheus.CounterVec) {
	sent := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Number of notification requests by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)
	batches := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_bulk_batches_total",
			Help: "Number of bulk push batches by outcome",
		},
		[]string{"outcome"},
	)
	return sent, batches
}

func init() {
	notificationsTotal, bulkBatchesTotal = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers notify metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(notificationsTotal, bulkBatchesTotal)
}

// ResetMetrics reinitializes metric collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	notificationsTotal, bulkBatchesTotal = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
