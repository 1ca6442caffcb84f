package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	chainSourceOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "inscriber",
		Subsystem: "chain_source",
		Name:      "operations_total",
		Help:      "Count of chain data source operations.",
	}, []string{"source", "operation", "network", "status"})
	chainSourceOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "inscriber",
		Subsystem: "chain_source",
		Name:      "operation_duration_seconds",
		Help:      "Duration of chain data source operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"source", "operation", "network", "status"})
)

// ChainSource tracks metrics for calls to blockchain data sources.
type ChainSource struct {
	source  string
	network string
}

// NewChainSource constructs a metrics collector for chain data source calls.
func NewChainSource(source, network string) *ChainSource {
	if source == "" {
		source = "unknown"
	}
	if network == "" {
		network = "unknown"
	}
	return &ChainSource{source: source, network: network}
}

// Observe records a single data source call outcome and duration.
func (m *ChainSource) Observe(operation string, err error, started time.Time) {
	if m == nil {
		return
	}

	status := statusOf(err)
	chainSourceOperationsTotal.WithLabelValues(m.source, operation, m.network, status).Inc()
	chainSourceOperationDuration.WithLabelValues(m.source, operation, m.network, status).Observe(time.Since(started).Seconds())
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
