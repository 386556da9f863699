package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StorefrontMetrics records cart/wishlist mutation outcomes and remote
// sync activity. All methods are nil-safe so instrumentation stays
// optional.
type StorefrontMetrics struct {
	mutationDuration *prometheus.HistogramVec
	mutationFailures *prometheus.CounterVec
	syncEvents       *prometheus.CounterVec
}

// NewStorefrontMetrics registers the storefront metrics on the provided registerer.
func NewStorefrontMetrics(reg prometheus.Registerer) *StorefrontMetrics {
	if reg == nil {
		return &StorefrontMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_mutation_duration_seconds",
		Help:    "Duration of cart/wishlist mutations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_mutation_failures_total",
		Help: "Failed cart/wishlist mutations by operation and error code.",
	}, []string{"op", "code"})
	syncEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_sync_events_total",
		Help: "Remote document change events applied locally.",
	}, []string{"collection"})
	reg.MustRegister(duration, failures, syncEvents)
	return &StorefrontMetrics{
		mutationDuration: duration,
		mutationFailures: failures,
		syncEvents:       syncEvents,
	}
}

// ObserveMutation records the duration for the named operation.
func (m *StorefrontMetrics) ObserveMutation(op string, duration time.Duration) {
	if m == nil || m.mutationDuration == nil {
		return
	}
	m.mutationDuration.WithLabelValues(normalizeLabel(op)).Observe(duration.Seconds())
}

// IncFailure increments the failure counter for the operation/code pair.
func (m *StorefrontMetrics) IncFailure(op, code string) {
	if m == nil || m.mutationFailures == nil {
		return
	}
	m.mutationFailures.WithLabelValues(normalizeLabel(op), normalizeLabel(code)).Inc()
}

// IncSyncEvent counts a remote change applied for the collection.
func (m *StorefrontMetrics) IncSyncEvent(collection string) {
	if m == nil || m.syncEvents == nil {
		return
	}
	m.syncEvents.WithLabelValues(normalizeLabel(collection)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
