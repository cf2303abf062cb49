package scheduler

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the scheduler's Prometheus collectors.
type Metrics struct {
	Ticks        prometheus.Counter
	Skipped      *prometheus.CounterVec
	Reservations *prometheus.CounterVec
	Resolutions  *prometheus.CounterVec
	InFlight     prometheus.Gauge
	SendLatency  prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg when non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "outreach_scheduler_ticks_total",
			Help: "Number of scheduler ticks executed.",
		}),
		Skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outreach_scheduler_skipped_total",
			Help: "Account visits skipped during a tick, by rule.",
		}, []string{"reason"}),
		Reservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outreach_messages_reserved_total",
			Help: "Messages moved to sending, by trigger.",
		}, []string{"trigger"}),
		Resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outreach_messages_resolved_total",
			Help: "Messages resolved, by outcome.",
		}, []string{"outcome"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "outreach_messages_in_flight",
			Help: "Messages currently sending.",
		}),
		SendLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "outreach_send_latency_seconds",
			Help:    "Simulated delay between reservation and resolution.",
			Buckets: []float64{.1, .25, .4, .6, .8, 1, 1.2, 1.5, 2, 5},
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Ticks, m.Skipped, m.Reservations, m.Resolutions, m.InFlight, m.SendLatency)
	}
	return m
}
