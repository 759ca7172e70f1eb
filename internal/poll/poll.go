// Package poll retries a probe until it succeeds or a time budget runs out.
//
// A probe is any check against eventually-consistent state: waiting for the next
// intercepted API response and asserting on it, counting DOM nodes, or querying
// the OGC API directly. A probe reports "not yet" by returning an error. Until
// keeps the most recent error and hands it back inside a *TimeoutError once the
// budget is spent.
//
// A probe that never returns an error succeeds on its first attempt. Whether the
// condition really holds is decided by the probe's own assertions.
package poll

import (
	"context"
	"time"

	"github.com/JustAProjectacc/climate-data-extraction-tool/internal/logging"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultTimeout      = 6500 * time.Millisecond
	DefaultInterval     = 2000 * time.Millisecond
	DefaultErrorMessage = "Timeout reached"
	DefaultCheckMessage = "WaitUntil Check Happened"
)

// tracerName is looked up on the global provider per call.
const tracerName = "github.com/JustAProjectacc/climate-data-extraction-tool/internal/poll"

// Probe evaluates the awaited condition once.
type Probe[T any] func(ctx context.Context) (T, error)

// Attempt describes one finished probe evaluation.
type Attempt struct {
	// Index is 1-based.
	Index   int
	Elapsed time.Duration
	// Err is nil for the successful attempt.
	Err error
}

// Config controls a single Until call. Zero values take the defaults above.
type Config struct {
	// Name labels the probe in logs and spans.
	Name         string
	Timeout      time.Duration
	Interval     time.Duration
	ErrorMessage string
	// Verbose logs one line per attempt.
	Verbose      bool
	CheckMessage string
	// OnEachAttempt runs after every attempt, successful or not.
	OnEachAttempt func(Attempt)
	Logger        *logging.Logger
	Clock         clockwork.Clock
}

// DefaultConfig returns the settings used by the browser suite.
func DefaultConfig() Config {
	return Config{}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.ErrorMessage == "" {
		c.ErrorMessage = DefaultErrorMessage
	}
	if c.CheckMessage == "" {
		c.CheckMessage = DefaultCheckMessage
	}
	if c.Logger == nil {
		c.Logger = logging.GetLogger("poll")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	return c
}

// Until evaluates probe until it returns without error and returns its value.
//
// Attempts run one after another with cfg.Interval between them. After a failed
// attempt, and again after each sleep, the elapsed time is compared with
// cfg.Timeout; once it is reached Until returns a *TimeoutError carrying the last
// cause. The probe always runs at least once. If ctx ends while Until is
// sleeping it returns a *CanceledError.
func Until[T any](ctx context.Context, probe Probe[T], cfg Config) (T, error) {
	cfg = cfg.withDefaults()
	logger := cfg.Logger.WithContext(ctx)
	if cfg.Name != "" {
		logger = logger.WithField("probe", cfg.Name)
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "poll.Until", trace.WithAttributes(
		attribute.String("poll.name", cfg.Name),
		attribute.Int64("poll.timeout_ms", cfg.Timeout.Milliseconds()),
		attribute.Int64("poll.interval_ms", cfg.Interval.Milliseconds()),
	))
	defer span.End()

	var zero T
	var lastErr error
	start := cfg.Clock.Now()

	fail := func(err error) (T, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return zero, err
	}

	for attempt := 1; ; attempt++ {
		value, err := probe(ctx)
		elapsed := cfg.Clock.Since(start)
		cfg.observe(logger, span, Attempt{Index: attempt, Elapsed: elapsed, Err: err})

		if err == nil {
			span.SetAttributes(attribute.Int("poll.attempts", attempt))
			span.SetStatus(codes.Ok, "")
			return value, nil
		}
		lastErr = err

		if elapsed >= cfg.Timeout {
			return fail(cfg.timeout(lastErr, attempt, elapsed))
		}

		select {
		case <-ctx.Done():
			return fail(&CanceledError{Err: ctx.Err(), Cause: lastErr, Attempts: attempt})
		case <-cfg.Clock.After(cfg.Interval):
		}

		if elapsed := cfg.Clock.Since(start); elapsed >= cfg.Timeout {
			return fail(cfg.timeout(lastErr, attempt, elapsed))
		}
	}
}

func (c Config) timeout(cause error, attempts int, elapsed time.Duration) *TimeoutError {
	return &TimeoutError{
		Message:  c.ErrorMessage,
		Cause:    cause,
		Attempts: attempts,
		Elapsed:  elapsed,
	}
}

func (c Config) observe(logger *logging.Logger, span trace.Span, a Attempt) {
	attrs := []attribute.KeyValue{
		attribute.Int("poll.attempt", a.Index),
		attribute.Int64("poll.elapsed_ms", a.Elapsed.Milliseconds()),
	}
	if a.Err != nil {
		attrs = append(attrs, attribute.String("poll.error", a.Err.Error()))
	}
	span.AddEvent("attempt", trace.WithAttributes(attrs...))

	if c.Verbose {
		fields := []logging.LogField{
			logging.Field("attempt", a.Index),
			logging.Field("elapsed_ms", a.Elapsed.Milliseconds()),
		}
		if a.Err != nil {
			fields = append(fields, logging.Field("error", a.Err.Error()))
		}
		logger.InfoWithFields(c.CheckMessage, fields...)
	}

	if c.OnEachAttempt != nil {
		c.OnEachAttempt(a)
	}
}
