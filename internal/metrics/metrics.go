// Package metrics exposes prometheus collectors for poll attempts and check results.
package metrics

import (
	"errors"
	"time"

	"github.com/JustAProjectacc/climate-data-extraction-tool/internal/poll"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors of one suite run.
type Metrics struct {
	PollAttempts *prometheus.CounterVec   // probe, result
	PollOutcomes *prometheus.CounterVec   // probe, outcome
	PollDuration *prometheus.HistogramVec // probe
	CheckResults *prometheus.CounterVec   // scenario, check, severity, result

	gatherer prometheus.Gatherer
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		PollAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "climate_e2e_poll_attempts_total",
			Help: "Probe evaluations made by the poller.",
		}, []string{"probe", "result"}),
		PollOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "climate_e2e_poll_outcomes_total",
			Help: "Terminal poll outcomes.",
		}, []string{"probe", "outcome"}),
		PollDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "climate_e2e_poll_duration_seconds",
			Help:    "Time from first attempt to terminal outcome.",
			Buckets: []float64{0.1, 0.5, 1, 2, 4, 6.5, 10, 30},
		}, []string{"probe"}),
		CheckResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "climate_e2e_check_results_total",
			Help: "Scenario check results by severity.",
		}, []string{"scenario", "check", "severity", "result"}),
		gatherer: reg,
	}

	reg.MustRegister(m.PollAttempts, m.PollOutcomes, m.PollDuration, m.CheckResults)
	return m
}

// AttemptObserver returns a poll.Config OnEachAttempt hook counting attempts of probe.
func (m *Metrics) AttemptObserver(probe string) func(poll.Attempt) {
	return func(a poll.Attempt) {
		result := "success"
		if a.Err != nil {
			result = "failure"
		}
		m.PollAttempts.WithLabelValues(probe, result).Inc()
	}
}

// ObservePoll records the terminal outcome of a poll.
func (m *Metrics) ObservePoll(probe string, elapsed time.Duration, err error) {
	outcome := "resolved"
	var canceled *poll.CanceledError
	switch {
	case errors.Is(err, poll.ErrTimeout):
		outcome = "timeout"
	case errors.As(err, &canceled):
		outcome = "canceled"
	case err != nil:
		outcome = "error"
	}
	m.PollOutcomes.WithLabelValues(probe, outcome).Inc()
	m.PollDuration.WithLabelValues(probe).Observe(elapsed.Seconds())
}

// ObserveCheck counts one check result.
func (m *Metrics) ObserveCheck(scenario, check, severity string, err error) {
	result := "pass"
	if err != nil {
		result = "fail"
	}
	m.CheckResults.WithLabelValues(scenario, check, severity, result).Inc()
}

// WriteTextfile writes all collectors in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.gatherer)
}
