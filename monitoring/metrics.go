package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	checkInsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkins_total",
			Help: "Check-in attempts by terminal outcome",
		},
		[]string{"outcome"},
	)

	validationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "validations_total",
			Help: "Token validations by decision",
		},
		[]string{"decision"},
	)

	validationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "validation_duration_seconds",
			Help:    "Duration of the synchronous validation path",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)

	queuedCheckIns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "queued_checkins",
			Help: "Check-ins accepted for asynchronous processing and not yet terminal",
		},
	)

	manifestBuilds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "manifest_builds_total",
			Help: "Manifest requests by cache outcome",
		},
		[]string{"source"},
	)
)

func TrackCheckIn(outcome string) {
	checkInsTotal.WithLabelValues(outcome).Inc()
}

func TrackValidation(decision string, duration time.Duration) {
	validationsTotal.WithLabelValues(decision).Inc()
	validationDuration.Observe(duration.Seconds())
}

func TrackQueued() {
	queuedCheckIns.Inc()
}

func TrackDequeued() {
	queuedCheckIns.Dec()
}

func TrackManifest(source string) {
	manifestBuilds.WithLabelValues(source).Inc()
}
