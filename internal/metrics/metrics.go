// Package metrics registers the prometheus collectors used across services.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
)

type Metrics struct {
	Registry *prometheus.Registry

	InstancesGenerated prometheus.Counter
	GenerationSkipped  prometheus.Counter
	ClaimAttempts      *prometheus.CounterVec
	RetriesProcessed   *prometheus.CounterVec
	PayoutsAccepted    prometheus.Counter
	JobDuration        *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry: reg,
		InstancesGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tidyround_service_instances_generated_total",
			Help: "Service instances created by the generator.",
		}),
		GenerationSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tidyround_service_instances_skipped_total",
			Help: "Generator inserts skipped because the period already has an instance.",
		}),
		ClaimAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tidyround_claim_attempts_total",
			Help: "Claim attempts by outcome.",
		}, []string{"outcome"}),
		RetriesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tidyround_payment_retries_processed_total",
			Help: "Payment retries processed by outcome.",
		}, []string{"outcome"}),
		PayoutsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tidyround_payouts_accepted_total",
			Help: "Payout requests accepted.",
		}),
		JobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tidyround_job_duration_seconds",
			Help:    "Duration of scheduler job runs.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
	}

	reg.MustRegister(
		m.InstancesGenerated,
		m.GenerationSkipped,
		m.ClaimAttempts,
		m.RetriesProcessed,
		m.PayoutsAccepted,
		m.JobDuration,
	)
	return m
}

var Module = fx.Module("metrics",
	fx.Provide(New),
)
