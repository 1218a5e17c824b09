package outbox

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"example.com/ecotrack/internal/events"
)

// Outcomes of a DLQ manager pass for one dead-lettered event.
const (
	outcomeRequeued       = "requeued"
	outcomeRetryScheduled = "retry_scheduled"
	outcomeQuarantined    = "quarantined"
)

var (
	dlqOutcomeCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ecotrack",
		Subsystem: "dlq",
		Name:      "event_outcomes_total",
		Help:      "Dead-lettered activity and footprint events handled by the DLQ manager, by outcome.",
	}, []string{"event_type", "outcome"})

	dlqPendingGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "ecotrack",
		Subsystem: "dlq",
		Name:      "pending_events",
		Help:      "Dead-lettered events still awaiting redelivery, by event type.",
	}, []string{"event_type"})

	dlqStalledOwnersGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ecotrack",
		Subsystem: "dlq",
		Name:      "stalled_owners",
		Help:      "Users with at least one activity or footprint event stuck in the DLQ; their leaderboard and live totals lag.",
	})
)

func init() {
	prometheus.MustRegister(dlqOutcomeCounter, dlqPendingGauge, dlqStalledOwnersGauge)
}

func recordDLQOutcome(entry dlqEntry, outcome string) {
	dlqOutcomeCounter.WithLabelValues(entry.EventType, outcome).Inc()
}

// refreshDLQBacklog recomputes the pending gauges from outbox_dlq. Quarantined
// rows are excluded.
func refreshDLQBacklog(ctx context.Context, pool *pgxpool.Pool) {
	pending := map[string]float64{
		events.TypeActivityLogged:   0,
		events.TypeFootprintChanged: 0,
	}
	rows, err := pool.Query(ctx, `SELECT event_type, COUNT(*) FROM outbox_dlq WHERE quarantined_at IS NULL GROUP BY event_type`)
	if err != nil {
		return
	}
	for rows.Next() {
		var eventType string
		var count int
		if err := rows.Scan(&eventType, &count); err != nil {
			rows.Close()
			return
		}
		pending[eventType] = float64(count)
	}
	rows.Close()
	if rows.Err() != nil {
		return
	}
	for eventType, count := range pending {
		dlqPendingGauge.WithLabelValues(eventType).Set(count)
	}

	var owners int
	if err := pool.QueryRow(ctx, `SELECT COUNT(DISTINCT owner_id) FROM outbox_dlq WHERE quarantined_at IS NULL`).Scan(&owners); err != nil {
		return
	}
	dlqStalledOwnersGauge.Set(float64(owners))
}
