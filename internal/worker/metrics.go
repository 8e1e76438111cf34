package worker

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "webhookd",
			Subsystem: "worker",
			Name:      "queue_depth",
			Help:      "Events waiting in the inbound queue",
		},
	)

	queueDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "webhookd",
			Subsystem: "worker",
			Name:      "queue_dropped_total",
			Help:      "Events dropped because the queue was at capacity",
		},
	)

	eventsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "webhookd",
			Subsystem: "worker",
			Name:      "events_processed_total",
			Help:      "Events dispatched through the handler pipeline",
		},
		[]string{"kind"},
	)

	handlerResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "webhookd",
			Subsystem: "worker",
			Name:      "handler_results_total",
			Help:      "Handler invocations by outcome",
		},
		[]string{"handler", "outcome"},
	)

	handlerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "webhookd",
			Subsystem: "worker",
			Name:      "handler_duration_seconds",
			Help:      "Duration of handler invocations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"handler"},
	)

	deferredOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "webhookd",
			Subsystem: "worker",
			Name:      "deferred_outcomes_total",
			Help:      "Deferred check evaluations by outcome",
		},
		[]string{"outcome"},
	)

	deferredLive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "webhookd",
			Subsystem: "worker",
			Name:      "deferred_checks",
			Help:      "Live deferred checks in the registry",
		},
	)
)

func init() {
	prometheus.MustRegister(queueDepth, queueDroppedTotal, eventsProcessedTotal,
		handlerResultsTotal, handlerDuration, deferredOutcomesTotal, deferredLive)
}
