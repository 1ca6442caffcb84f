package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	broadcastAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "inscriber",
		Subsystem: "broadcaster",
		Name:      "attempts_total",
		Help:      "Count of transaction broadcast attempts per endpoint.",
	}, []string{"endpoint", "network", "status"})
	broadcastAttemptDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "inscriber",
		Subsystem: "broadcaster",
		Name:      "attempt_duration_seconds",
		Help:      "Duration of transaction broadcast attempts per endpoint.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"endpoint", "network", "status"})
	broadcastsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "inscriber",
		Subsystem: "broadcaster",
		Name:      "broadcasts_total",
		Help:      "Count of finished broadcasts by transaction kind.",
	}, []string{"kind", "network", "status"})
)

// Broadcaster tracks metrics of transaction broadcasting.
type Broadcaster struct {
	network string
}

// NewBroadcaster constructs a metrics collector for broadcaster.
func NewBroadcaster(network string) *Broadcaster {
	if network == "" {
		network = "unknown"
	}
	return &Broadcaster{network: network}
}

// ObserveAttempt records a single endpoint attempt outcome and duration.
func (m *Broadcaster) ObserveAttempt(endpoint string, err error, started time.Time) {
	if m == nil {
		return
	}

	status := statusOf(err)
	broadcastAttemptsTotal.WithLabelValues(endpoint, m.network, status).Inc()
	broadcastAttemptDuration.WithLabelValues(endpoint, m.network, status).Observe(time.Since(started).Seconds())
}

// ObserveBroadcast records outcome of the whole broadcast of a transaction.
func (m *Broadcaster) ObserveBroadcast(kind string, err error) {
	if m == nil {
		return
	}

	broadcastsTotal.WithLabelValues(kind, m.network, statusOf(err)).Inc()
}
