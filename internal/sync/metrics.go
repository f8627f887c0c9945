package sync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reconcileOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskboard_reconcile_events_total",
			Help: "Events merged into local collections by kind, op and outcome",
		},
		[]string{"kind", "op", "outcome"},
	)

	mutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskboard_mutations_total",
			Help: "User mutations by entity, op and result",
		},
		[]string{"entity", "op", "result"},
	)

	unreadGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "taskboard_notifications_unread",
		Help: "Unread notifications held by the feed",
	})
)

// RecordMutation counts a mutation outcome.
func RecordMutation(entity, op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	mutations.WithLabelValues(entity, op, result).Inc()
}
