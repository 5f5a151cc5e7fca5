package notification

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ScanRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "giftree_expiry_scan_runs_total",
		Help: "Expiry scan runs by result.",
	}, []string{"result"})

	ScanEntryFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "giftree_expiry_scan_entry_failures_total",
		Help: "Gifticon/participant entries skipped during a scan due to errors.",
	})

	NotificationsPersisted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "giftree_notifications_persisted_total",
		Help: "Durable notification rows created, by type code.",
	}, []string{"type"})

	EventsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "giftree_notification_events_published_total",
		Help: "Events successfully handed to the broker.",
	})

	EventPublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "giftree_notification_event_publish_failures_total",
		Help: "Events that could not be published after commit.",
	})

	EmitterInlineDispatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "giftree_emitter_inline_dispatches_total",
		Help: "Emits that ran on the caller because the worker backlog was full.",
	})

	PushAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "giftree_push_attempts_total",
		Help: "Consumer push attempts by outcome.",
	}, []string{"outcome"})

	PushLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "giftree_push_latency_seconds",
		Help:    "Latency of push gateway calls.",
		Buckets: prometheus.DefBuckets,
	})
)
