// Package metrics exposes turn-processing counters on the default
// prometheus registerer, served by the webhook server's /metrics route.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Turn outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeParseError  = "parse_error"
	OutcomeRenderError = "render_error"
	OutcomeRateLimited = "rate_limited"
)

var (
	turnsTotal = promauto.With(prometheus.DefaultRegisterer).NewCounterVec(prometheus.CounterOpts{
		Namespace: "umbot",
		Name:      "turns_total",
		Help:      "Handled conversational turns by platform and outcome.",
	}, []string{"platform", "outcome"})

	deadlineExceededTotal = promauto.With(prometheus.DefaultRegisterer).NewCounterVec(prometheus.CounterOpts{
		Namespace: "umbot",
		Name:      "deadline_exceeded_total",
		Help:      "Turns whose render ran past the platform reply budget.",
	}, []string{"platform"})

	turnDuration = promauto.With(prometheus.DefaultRegisterer).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "umbot",
		Name:      "turn_duration_seconds",
		Help:      "Wall time from webhook receipt to rendered payload.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 2.8, 5, 10},
	}, []string{"platform"})
)

// ObserveTurn records one finished turn.
func ObserveTurn(platform, outcome string, elapsed time.Duration) {
	turnsTotal.WithLabelValues(platform, outcome).Inc()
	turnDuration.WithLabelValues(platform).Observe(elapsed.Seconds())
}

// ObserveDeadlineExceeded records a soft deadline overrun.
func ObserveDeadlineExceeded(platform string) {
	deadlineExceededTotal.WithLabelValues(platform).Inc()
}
