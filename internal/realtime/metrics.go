package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskboard_push_events_received_total",
			Help: "Push events received by event name",
		},
		[]string{"event"},
	)

	eventsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskboard_push_events_emitted_total",
			Help: "Push events emitted by event name and result",
		},
		[]string{"event", "result"},
	)

	connectedGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "taskboard_push_connected",
		Help: "1 while the push channel is connected",
	})

	reconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taskboard_push_reconnect_attempts_total",
		Help: "Transport-level reconnect attempts",
	})
)

func recordEmit(event string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	eventsEmitted.WithLabelValues(event, result).Inc()
}
