// Package checks records named assertions of a scenario as hard or soft.
//
// A failed hard check fails the run. A failed soft check is logged as a warning
// and the run continues; the gzip content-encoding check is the only soft check
// the suite makes today.
package checks

import (
	"errors"
	"fmt"
	"sync"

	"github.com/JustAProjectacc/climate-data-extraction-tool/internal/logging"
)

// Severity of a check.
type Severity string

const (
	Hard Severity = "hard"
	Soft Severity = "soft"
)

// Result is one recorded check.
type Result struct {
	Scenario string
	Name     string
	Severity Severity
	Err      error
}

// Passed reports whether the check held.
func (r Result) Passed() bool {
	return r.Err == nil
}

// Sink receives every result, e.g. metrics.Metrics.ObserveCheck.
type Sink func(scenario, check, severity string, err error)

// Recorder collects results for one or more scenarios. It is safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	results []Result
	logger  *logging.Logger
	sink    Sink
}

// NewRecorder creates a recorder logging through logger. sink may be nil.
func NewRecorder(logger *logging.Logger, sink Sink) *Recorder {
	if logger == nil {
		logger = logging.GetLogger("checks")
	}
	return &Recorder{logger: logger, sink: sink}
}

// Scenario returns a view that records under the given scenario name.
func (r *Recorder) Scenario(name string) *Scope {
	return &Scope{recorder: r, scenario: name}
}

func (r *Recorder) record(res Result) {
	r.mu.Lock()
	r.results = append(r.results, res)
	r.mu.Unlock()

	logger := r.logger.WithFields(
		logging.Field("scenario", res.Scenario),
		logging.Field("check", res.Name),
		logging.Field("severity", string(res.Severity)),
	)
	switch {
	case res.Err == nil:
		logger.Debug("check passed")
	case res.Severity == Soft:
		logger.Warn("%v. Test continued.", res.Err)
	default:
		logger.Error("check failed: %v", res.Err)
	}

	if r.sink != nil {
		r.sink(res.Scenario, res.Name, string(res.Severity), res.Err)
	}
}

// Results returns a copy of everything recorded so far, in order.
func (r *Recorder) Results() []Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Result(nil), r.results...)
}

// Err joins all failed hard checks, or returns nil.
func (r *Recorder) Err() error {
	var errs []error
	for _, res := range r.Results() {
		if res.Severity == Hard && res.Err != nil {
			errs = append(errs, fmt.Errorf("%s/%s: %w", res.Scenario, res.Name, res.Err))
		}
	}
	return errors.Join(errs...)
}

// Summary counts passed, failed hard and failed soft checks.
func (r *Recorder) Summary() (passed, hardFailed, softFailed int) {
	for _, res := range r.Results() {
		switch {
		case res.Err == nil:
			passed++
		case res.Severity == Soft:
			softFailed++
		default:
			hardFailed++
		}
	}
	return passed, hardFailed, softFailed
}

// Scope records checks for one scenario.
type Scope struct {
	recorder *Recorder
	scenario string
}

// Hard records a required check and returns err unchanged.
func (s *Scope) Hard(name string, err error) error {
	s.recorder.record(Result{Scenario: s.scenario, Name: name, Severity: Hard, Err: err})
	return err
}

// Soft records a best-effort check. It never returns an error.
func (s *Scope) Soft(name string, err error) {
	s.recorder.record(Result{Scenario: s.scenario, Name: name, Severity: Soft, Err: err})
}
