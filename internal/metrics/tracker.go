package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	trackerTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "inscriber",
		Subsystem: "tracker",
		Name:      "transitions_total",
		Help:      "Count of tracked transaction status transitions.",
	}, []string{"from", "to"})
	trackerWatched = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "inscriber",
		Subsystem: "tracker",
		Name:      "watched_transactions",
		Help:      "Amount of transactions currently watched for confirmations.",
	})
)

// Tracker tracks metrics of transaction status tracking.
type Tracker struct{}

// NewTracker constructs a metrics collector for tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// ObserveTransition records status transition of tracked transaction.
func (m *Tracker) ObserveTransition(from, to string) {
	if m == nil {
		return
	}

	trackerTransitionsTotal.WithLabelValues(from, to).Inc()
}

// WatchStarted increments amount of watched transactions.
func (m *Tracker) WatchStarted() {
	if m == nil {
		return
	}

	trackerWatched.Inc()
}

// WatchStopped decrements amount of watched transactions.
func (m *Tracker) WatchStopped() {
	if m == nil {
		return
	}

	trackerWatched.Dec()
}
