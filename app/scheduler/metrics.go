package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queueEnqueuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "queue_entries_enqueued_total",
			Help: "Total number of queue entries created by the populator",
		},
	)

	// Skips partitioned by reason (duplicate, sent_once, no_session)
	queueSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_entries_skipped_total",
			Help: "Total number of reminder/client pairs skipped by the populator",
		},
		[]string{"reason"},
	)

	queueSendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_sends_total",
			Help: "Total number of send attempts partitioned by outcome",
		},
		[]string{"outcome"},
	)

	queueSweptTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "queue_entries_swept_total",
			Help: "Total number of terminal queue entries deleted by retention",
		},
	)

	tickDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scheduler_tick_duration_seconds",
			Help:    "Duration of scheduler job ticks in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)
)
