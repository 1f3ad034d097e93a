package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	reasonExit     = "exit"
	reasonIdle     = "idle"
	reasonShutdown = "shutdown"
)

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	SessionsActive     prometheus.Gauge
	SessionsStarted    prometheus.Counter
	LaunchFailures     *prometheus.CounterVec
	SessionsTerminated *prometheus.CounterVec
	Escalations        prometheus.Counter
	Waits              *prometheus.CounterVec
	WaitDuration       prometheus.Histogram
	BytesCollected     prometheus.Counter
	InputsSent         prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "interactive_sessions_active",
			Help: "Number of sessions currently held in the store",
		}),
		SessionsStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "interactive_sessions_started_total",
			Help: "Total number of sessions started",
		}),
		LaunchFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "interactive_launch_failures_total",
				Help: "Total number of failed session launches",
			},
			[]string{"kind"},
		),
		SessionsTerminated: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "interactive_sessions_terminated_total",
				Help: "Total number of terminated sessions",
			},
			[]string{"reason"},
		),
		Escalations: f.NewCounter(prometheus.CounterOpts{
			Name: "interactive_termination_escalations_total",
			Help: "Terminations that needed a process group kill",
		}),
		Waits: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "interactive_waits_total",
				Help: "Completed waits by outcome",
			},
			[]string{"status"},
		),
		WaitDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "interactive_wait_duration_seconds",
			Help:    "Time spent in wait calls",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}),
		BytesCollected: f.NewCounter(prometheus.CounterOpts{
			Name: "interactive_bytes_collected_total",
			Help: "Bytes read from session terminals",
		}),
		InputsSent: f.NewCounter(prometheus.CounterOpts{
			Name: "interactive_inputs_sent_total",
			Help: "Successful writes to session terminals",
		}),
	}
}
