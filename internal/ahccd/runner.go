package ahccd

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"

	"github.com/JustAProjectacc/climate-data-extraction-tool/internal/checks"
	"github.com/JustAProjectacc/climate-data-extraction-tool/internal/logging"
	"github.com/JustAProjectacc/climate-data-extraction-tool/internal/metrics"
	"github.com/JustAProjectacc/climate-data-extraction-tool/internal/oapif"
	"github.com/JustAProjectacc/climate-data-extraction-tool/internal/poll"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

// Runner executes scenarios through the OGC API, without a browser.
type Runner struct {
	client     *oapif.Client
	checks     *checks.Recorder
	pollConfig func(name string) poll.Config
	metrics    *metrics.Metrics
	clock      clockwork.Clock
	logger     *logging.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithMetrics counts poll attempts and outcomes into m.
func WithMetrics(m *metrics.Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// WithClock replaces the clock used for polling.
func WithClock(c clockwork.Clock) RunnerOption {
	return func(r *Runner) { r.clock = c }
}

// WithLogger replaces the runner logger.
func WithLogger(l *logging.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// NewRunner creates a runner. pollConfig supplies the poll settings of each
// named step, usually config.Config.PollConfig.
func NewRunner(client *oapif.Client, recorder *checks.Recorder, pollConfig func(name string) poll.Config, opts ...RunnerOption) *Runner {
	r := &Runner{
		client:     client,
		checks:     recorder,
		pollConfig: pollConfig,
		clock:      clockwork.NewRealClock(),
		logger:     logging.GetLogger("ahccd"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes s and returns the first failed hard check. Every check is also
// recorded on the runner's recorder.
func (r *Runner) Run(ctx context.Context, s Scenario) error {
	scope := r.checks.Scenario(s.Name)
	logger := r.logger.WithContext(ctx).WithField("scenario", s.Name)
	logger.Info("Running scenario: %s", s.Description)

	if s.Features != nil {
		if err := r.runFeatures(ctx, s, scope); err != nil {
			return err
		}
	}
	if s.Count != nil {
		if err := r.runCount(ctx, s, scope); err != nil {
			return err
		}
	}
	if s.Download != nil {
		if err := r.runDownload(ctx, s, scope); err != nil {
			return err
		}
	}

	logger.Info("Scenario passed")
	return nil
}

// RunAll runs each scenario in order. A failed scenario does not stop the rest;
// the result joins all failures.
func (r *Runner) RunAll(ctx context.Context, scenarios []Scenario) error {
	var errs []error
	for _, s := range scenarios {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if err := r.Run(ctx, s); err != nil {
			errs = append(errs, fmt.Errorf("scenario %s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (r *Runner) runFeatures(ctx context.Context, s Scenario, scope *checks.Scope) error {
	q := s.Filter
	q.Format = oapif.FormatJSON

	resp, err := pollStep(ctx, r, s.Name+"/features", func(ctx context.Context) (*oapif.Response, error) {
		resp, fc, err := r.fetchCollection(ctx, s.Collection, q)
		if err != nil {
			return nil, err
		}
		if err := oapif.ExpectCORSHeaders(resp.Header); err != nil {
			return nil, err
		}
		if err := oapif.ExpectFeatureCount(fc, *s.Features); err != nil {
			return nil, err
		}
		return resp, nil
	})
	if err := scope.Hard("features", err); err != nil {
		return err
	}
	scope.Soft("content-encoding", oapif.ExpectGzip(resp))
	return nil
}

func (r *Runner) runCount(ctx context.Context, s Scenario, scope *checks.Scope) error {
	q := s.Filter
	q.Format = oapif.FormatJSON
	q.ResultTypeHits = true

	_, err := pollStep(ctx, r, s.Name+"/count", func(ctx context.Context) (int, error) {
		total, _, err := r.sumMatched(ctx, s.Collection, q, s.Stations)
		if err != nil {
			return 0, err
		}
		if err := s.Count.Check(total); err != nil {
			return 0, fmt.Errorf("numberMatched: %w", err)
		}
		return total, nil
	})
	return scope.Hard("numberMatched", err)
}

func (r *Runner) runDownload(ctx context.Context, s Scenario, scope *checks.Scope) error {
	d := s.Download
	q := s.Filter
	q.Format = d.Format
	q.Limit = 1

	if d.Format == oapif.FormatCSV {
		resp, err := r.client.Items(ctx, s.Collection, q)
		if err == nil {
			err = oapif.ExpectStatus(resp, http.StatusOK)
		}
		if err := scope.Hard("download", err); err != nil {
			return err
		}
		scope.Soft("download content-encoding", oapif.ExpectGzip(resp))
		if d.Header == nil {
			return nil
		}
		return scope.Hard("csv header", oapif.ExpectCSVHeader(resp, d.Header))
	}

	total, resp, err := r.sumMatched(ctx, s.Collection, q, s.Stations)
	if err := scope.Hard("download", err); err != nil {
		return err
	}
	scope.Soft("download content-encoding", oapif.ExpectGzip(resp))
	if d.NumberMatched == nil {
		return nil
	}
	if err := d.NumberMatched.Check(total); err != nil {
		return scope.Hard("download numberMatched", fmt.Errorf("numberMatched: %w", err))
	}
	return scope.Hard("download numberMatched", nil)
}

// fetchCollection requests q and decodes a FeatureCollection from a 200 response.
func (r *Runner) fetchCollection(ctx context.Context, collection string, q oapif.ItemsQuery) (*oapif.Response, *oapif.FeatureCollection, error) {
	resp, err := r.client.Items(ctx, collection, q)
	if err != nil {
		return nil, nil, err
	}
	if err := oapif.ExpectStatus(resp, http.StatusOK); err != nil {
		return nil, nil, err
	}
	fc, err := resp.FeatureCollection()
	if err != nil {
		return nil, nil, err
	}
	if err := oapif.ExpectFeatureCollection(fc); err != nil {
		return nil, nil, err
	}
	return resp, fc, nil
}

// sumMatched returns numberMatched of q, or with stations the sum over one query
// per station. The per-station queries run concurrently. The returned response
// is the first one, for header checks.
func (r *Runner) sumMatched(ctx context.Context, collection string, q oapif.ItemsQuery, stations []string) (int, *oapif.Response, error) {
	if len(stations) == 0 {
		return r.matched(ctx, collection, q)
	}

	counts := make([]int, len(stations))
	responses := make([]*oapif.Response, len(stations))
	g, gctx := errgroup.WithContext(ctx)
	for i, station := range stations {
		sq := q
		sq.Properties = maps.Clone(q.Properties)
		if sq.Properties == nil {
			sq.Properties = map[string]string{}
		}
		sq.Properties[StationProperty] = station

		g.Go(func() error {
			n, resp, err := r.matched(gctx, collection, sq)
			if err != nil {
				return fmt.Errorf("station %s: %w", station, err)
			}
			counts[i] = n
			responses[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, nil, err
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	return total, responses[0], nil
}

func (r *Runner) matched(ctx context.Context, collection string, q oapif.ItemsQuery) (int, *oapif.Response, error) {
	resp, fc, err := r.fetchCollection(ctx, collection, q)
	if err != nil {
		return 0, nil, err
	}
	if fc.NumberMatched == nil {
		return 0, nil, fmt.Errorf("body has no numberMatched property")
	}
	return *fc.NumberMatched, resp, nil
}

// pollStep runs probe under the poll settings of the named step and reports
// attempts and the outcome to the runner's metrics.
func pollStep[T any](ctx context.Context, r *Runner, name string, probe poll.Probe[T]) (T, error) {
	var cfg poll.Config
	if r.pollConfig != nil {
		cfg = r.pollConfig(name)
	}
	cfg.Name = name
	if cfg.Clock == nil {
		cfg.Clock = r.clock
	}
	if r.metrics != nil {
		cfg.OnEachAttempt = r.metrics.AttemptObserver(name)
	}

	start := cfg.Clock.Now()
	v, err := poll.Until(ctx, probe, cfg)
	if r.metrics != nil {
		r.metrics.ObservePoll(name, cfg.Clock.Since(start), err)
	}
	return v, err
}
