package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	activityLoggedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ecotrack",
		Subsystem: "activities",
		Name:      "logged_total",
		Help:      "Number of activities persisted, labeled by kind.",
	}, []string{"kind"})
	estimatedMassHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ecotrack",
		Subsystem: "activities",
		Name:      "estimated_mass_kg",
		Help:      "Estimated kg CO2e per logged activity.",
		Buckets:   []float64{0, 0.1, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250},
	}, []string{"kind"})
	unknownSubtypeCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ecotrack",
		Subsystem: "emission",
		Name:      "unknown_subtype_total",
		Help:      "Estimates that fell back to a zero factor because the subtype has no factor row.",
	}, []string{"kind"})
	activityPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ecotrack",
		Subsystem: "persistence",
		Name:      "last_activity_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent activity persisted.",
	})
	liveClientsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ecotrack",
		Subsystem: "live",
		Name:      "connected_clients",
		Help:      "Websocket clients currently subscribed to footprint updates.",
	})
	livePushCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ecotrack",
		Subsystem: "live",
		Name:      "pushes_total",
		Help:      "Footprint recomputations pushed to clients, labeled by outcome.",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(
		activityLoggedCounter,
		estimatedMassHistogram,
		unknownSubtypeCounter,
		activityPersistGauge,
		liveClientsGauge,
		livePushCounter,
	)
}

// RecordActivityLogged counts a persisted activity and updates the persistence watermark.
func RecordActivityLogged(kind string, mass float64, ts time.Time) {
	activityLoggedCounter.WithLabelValues(kind).Inc()
	estimatedMassHistogram.WithLabelValues(kind).Observe(mass)
	if !ts.IsZero() {
		activityPersistGauge.Set(float64(ts.Unix()))
	}
}

// RecordUnknownSubtype counts a zero-factor fallback.
func RecordUnknownSubtype(kind string) {
	unknownSubtypeCounter.WithLabelValues(kind).Inc()
}

// SetLiveClients reports the number of connected websocket clients.
func SetLiveClients(n int) {
	liveClientsGauge.Set(float64(n))
}

// RecordLivePush counts a push attempt; outcome is "sent", "skipped" or "failed".
func RecordLivePush(outcome string) {
	livePushCounter.WithLabelValues(outcome).Inc()
}

// UnknownSubtypeCount exposes the counter for tests.
func UnknownSubtypeCount(kind string) prometheus.Counter {
	return unknownSubtypeCounter.WithLabelValues(kind)
}
