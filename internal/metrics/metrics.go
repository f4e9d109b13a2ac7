package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	runs            *prometheus.CounterVec
	runDuration     prometheus.Histogram
	runIterations   prometheus.Histogram
	capabilityCalls *prometheus.CounterVec
	analyses        *prometheus.CounterVec
	leads           prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leadgate_runs_total",
			Help: "Orchestrator runs by outcome.",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "leadgate_run_duration_seconds",
			Help:    "Wall time of orchestrator runs.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
		}),
		runIterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "leadgate_run_iterations",
			Help:    "Model requests per orchestrator run.",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		}),
		capabilityCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leadgate_capability_calls_total",
			Help: "Capability invocations by name and outcome.",
		}, []string{"capability", "outcome"}),
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leadgate_analysis_total",
			Help: "Lead analyses by matched source.",
		}, []string{"source"}),
		leads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "leadgate_leads_ingested_total",
			Help: "Leads accepted by the intake endpoint.",
		}),
	}
	reg.MustRegister(m.runs, m.runDuration, m.runIterations, m.capabilityCalls, m.analyses, m.leads)
	return m
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

func (m *Metrics) ObserveRun(success bool, iterations int, d time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome(success)).Inc()
	m.runDuration.Observe(d.Seconds())
	m.runIterations.Observe(float64(iterations))
}

func (m *Metrics) CapabilityCall(capability string, success bool) {
	if m == nil {
		return
	}
	m.capabilityCalls.WithLabelValues(capability, outcome(success)).Inc()
}

func (m *Metrics) Analysis(source string) {
	if m == nil {
		return
	}
	m.analyses.WithLabelValues(source).Inc()
}

func (m *Metrics) LeadIngested() {
	if m == nil {
		return
	}
	m.leads.Inc()
}
