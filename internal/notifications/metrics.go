package notifications

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	notificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "azcrm",
			Subsystem: "notifications",
			Name:      "created_total",
			Help:      "Notifications created by target kind",
		},
		[]string{"target_kind"},
	)

	fanoutFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "azcrm",
			Subsystem: "notifications",
			Name:      "fanout_failures_total",
			Help:      "Per-recipient write failures during fan-out",
		},
	)

	fanoutDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "azcrm",
			Subsystem: "notifications",
			Name:      "fanout_duration_seconds",
			Help:      "Duration of group expansion and bulk fan-out",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)
)
