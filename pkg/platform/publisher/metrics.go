package publisher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the publish side of the backbone.
type Metrics struct {
	Published *prometheus.CounterVec
	Retries   *prometheus.CounterVec
	Failed    *prometheus.CounterVec
}

// NewMetrics registers publish metrics on the given registerer. Pass nil to
// use the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		Published: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bank_events_published_total",
			Help: "Domain events durably accepted by the broker.",
		}, []string{"kind"}),
		Retries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bank_events_publish_retries_total",
			Help: "Publish attempts retried after a transient broker error.",
		}, []string{"kind"}),
		Failed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bank_events_publish_failed_total",
			Help: "Publishes abandoned after the retry budget, requiring reconciliation.",
		}, []string{"kind"}),
	}
}
