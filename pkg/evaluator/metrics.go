package evaluator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sandrolain/sonata/pkg/types"
)

// Metrics collects Prometheus metrics for evaluations. A nil *Metrics
// records nothing.
type Metrics struct {
	Evaluations *prometheus.CounterVec
	Errors      *prometheus.CounterVec
	Duration    prometheus.Histogram
	HostCalls   *prometheus.CounterVec
}

// NewMetrics creates the evaluation metrics and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sonata_evaluations_total",
				Help: "Total number of expression evaluations.",
			},
			[]string{"status"},
		),
		Errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sonata_evaluation_errors_total",
				Help: "Total number of failed evaluations by error code.",
			},
			[]string{"code"},
		),
		Duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sonata_evaluation_duration_seconds",
				Help:    "Time spent evaluating expressions.",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
		),
		HostCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sonata_host_function_calls_total",
				Help: "Total number of host function invocations.",
			},
			[]string{"function"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Evaluations, m.Errors, m.Duration, m.HostCalls)
	}
	return m
}

func (m *Metrics) observe(elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.Duration.Observe(elapsed.Seconds())
	if err == nil {
		m.Evaluations.WithLabelValues("ok").Inc()
		return
	}
	m.Evaluations.WithLabelValues("error").Inc()
	code := string(types.CodeOf(err))
	if code == "" {
		code = "host"
	}
	m.Errors.WithLabelValues(code).Inc()
}

func (m *Metrics) hostCall(name string) {
	if m == nil {
		return
	}
	m.HostCalls.WithLabelValues(name).Inc()
}
