package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"

	"sqlgend/internal/engine"
)

var (
	conversionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sqlgend",
			Subsystem: "pipeline",
			Name:      "conversions_total",
			Help:      "Total conversions by terminal outcome",
		},
		[]string{"outcome"},
	)

	conversionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "sqlgend",
			Subsystem: "pipeline",
			Name:      "conversion_duration_seconds",
			Help:      "End-to-end conversion duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	correctionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sqlgend",
			Subsystem: "pipeline",
			Name:      "corrections_total",
			Help:      "SQL corrections applied, by kind",
		},
		[]string{"kind"},
	)

	generationAttemptsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sqlgend",
			Subsystem: "pipeline",
			Name:      "generation_attempts_total",
			Help:      "Individual generation attempts, including retries",
		},
	)

	engineEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sqlgend",
			Subsystem: "engine",
			Name:      "events_total",
			Help:      "Engine lifecycle events (loads, fallbacks, evictions)",
		},
		[]string{"event"},
	)
)

func init() {
	prometheus.MustRegister(conversionsTotal, conversionDuration, correctionsTotal,
		generationAttemptsTotal, engineEventsTotal)
}

// MetricsPublisher counts engine events and forwards them to next, which may
// be nil.
type MetricsPublisher struct {
	next engine.EventPublisher
}

func NewMetricsPublisher(next engine.EventPublisher) *MetricsPublisher {
	return &MetricsPublisher{next: next}
}

func (p *MetricsPublisher) Publish(e engine.Event) {
	engineEventsTotal.WithLabelValues(e.Name).Inc()
	if p.next != nil {
		p.next.Publish(e)
	}
}
