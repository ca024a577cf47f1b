package consumer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts consumption outcomes per consumer group.
type Metrics struct {
	Processed    *prometheus.CounterVec
	Duplicates   *prometheus.CounterVec
	Retries      *prometheus.CounterVec
	DeadLettered *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Processed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bank_events_processed_total",
			Help: "Events whose handler effect was committed.",
		}, []string{"consumer", "kind"}),
		Duplicates: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bank_events_duplicates_total",
			Help: "Redelivered events skipped because they were already processed.",
		}, []string{"consumer", "kind"}),
		Retries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bank_events_consume_retries_total",
			Help: "Failed handler attempts that were retried in place.",
		}, []string{"consumer", "kind"}),
		DeadLettered: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bank_events_dead_lettered_total",
			Help: "Messages parked for manual remediation.",
		}, []string{"consumer", "reason"}),
	}
}
