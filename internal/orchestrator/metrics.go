package orchestrator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"crosspost/internal/models"
)

var (
	publishOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "crosspost",
			Name:      "publish_outcomes_total",
			Help:      "Publish attempts by destination and outcome status",
		},
		[]string{"destination", "status"},
	)

	publishDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "crosspost",
			Name:      "publish_duration_seconds",
			Help:      "Duration of one destination publish attempt in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 12), // 250ms to ~8.5m
		},
		[]string{"destination"},
	)

	slideshowBuilds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "crosspost",
			Name:      "slideshow_builds_total",
			Help:      "Slideshow assembly attempts by result",
		},
		[]string{"result"}, // "ok", "error"
	)

	scheduledTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "crosspost",
			Name:      "scheduled_posts_total",
			Help:      "Posts deferred to a scheduled time",
		},
	)
)

func observeOutcome(o models.Outcome, d time.Duration) {
	publishOutcomes.WithLabelValues(string(o.Destination), string(o.Status)).Inc()
	publishDuration.WithLabelValues(string(o.Destination)).Observe(d.Seconds())
}
