// Package metrics holds the Prometheus instruments of the ingest path.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "graphsink_events_enqueued_total",
		Help: "Graph events accepted into the queue by kind",
	}, []string{"kind"})

	EventsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "graphsink_events_rejected_total",
		Help: "Graph events refused before queueing by reason",
	}, []string{"reason"})

	Flushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "graphsink_flushes_total",
		Help: "Committed flushes by trigger",
	}, []string{"trigger"})

	FlushFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "graphsink_flush_failures_total",
		Help: "Flushes whose transaction was abandoned",
	})

	EventsLost = promauto.NewCounter(prometheus.CounterOpts{
		Name: "graphsink_events_lost_total",
		Help: "Events drained by a failed flush and never persisted",
	})

	EdgesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "graphsink_edges_skipped_total",
		Help: "Edges dropped by the lenient consistency policy",
	})

	FlushDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "graphsink_flush_duration_seconds",
		Help:    "Time spent applying and committing one flush",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	})

	FlushBatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "graphsink_flush_batch_events",
		Help:    "Number of events applied per flush",
		Buckets: []float64{1, 10, 50, 100, 250, 500, 1000, 2500},
	})

	QueueLength = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "graphsink_queue_length",
		Help: "Events waiting for the next flush",
	})
)
