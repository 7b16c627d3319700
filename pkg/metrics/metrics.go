package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// StoreVersion is the server's current authoritative version.
	StoreVersion = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "aper_store_version",
			Help: "Current authoritative Store version",
		},
	)

	ConnectedClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "aper_connected_clients",
			Help: "Number of clients currently connected to the server engine",
		},
	)

	SubmitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aper_submits_total",
			Help: "Total Submit calls by outcome",
		},
		[]string{"outcome"}, // broadcast | noop | reject_deserialize | reject_app
	)

	BroadcastFanoutDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aper_broadcast_fanout_duration_seconds",
			Help:    "Time taken to fan a broadcast out to every connected client",
			Buckets: prometheus.DefBuckets,
		},
	)

	BroadcastMutations = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "aper_broadcast_mutations",
			Help: "Number of mutations in the most recent broadcast, after coalescing",
		},
	)

	StoreArenaSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "aper_store_arena_size",
			Help: "Number of live arena nodes backing the authoritative Store",
		},
	)

	ClientPendingIntents = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aper_client_pending_intents",
			Help: "Number of unacknowledged intents queued per connected client",
		},
		[]string{"client_id"},
	)

	RetractionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aper_retractions_total",
			Help: "Total intents retracted from a client queue by reason",
		},
		[]string{"reason"}, // replay_failed | rejected
	)
)

func init() {
	prometheus.MustRegister(
		StoreVersion,
		ConnectedClients,
		SubmitsTotal,
		BroadcastFanoutDuration,
		BroadcastMutations,
		StoreArenaSize,
		ClientPendingIntents,
		RetractionsTotal,
	)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
