package resilience

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/clock"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/metrics"
)

// Config bundles retry and breaker settings for an Executor.
type Config struct {
	Retry            RetryPolicy
	FailureThreshold int
	ResetTimeout     time.Duration
	// CallTimeout bounds each individual attempt. Zero disables the
	// per-attempt bound.
	CallTimeout time.Duration
}

// DefaultConfig returns the standard resilience settings.
func DefaultConfig() Config {
	return Config{
		Retry:            DefaultRetryPolicy(),
		FailureThreshold: 10,
		ResetTimeout:     time.Minute,
		CallTimeout:      30 * time.Second,
	}
}

// Executor runs operations with classification, exponential backoff and
// per-operation circuit breakers. Breakers are created lazily and live
// for the executor's lifetime.
type Executor struct {
	cfg Config
	clk clock.Clock
	log zerolog.Logger

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewExecutor creates an executor with the given settings. Zero config
// fields fall back to defaults, except CallTimeout where zero means
// unbounded attempts.
func NewExecutor(cfg Config, clk clock.Clock, logger zerolog.Logger) *Executor {
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 5
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 10
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = time.Minute
	}
	return &Executor{
		cfg:      cfg,
		clk:      clk,
		log:      logger.With().Str("component", "resilience").Logger(),
		breakers: make(map[string]*Breaker),
	}
}

// Execute runs fn under the named breaker, retrying retryable failures
// with backoff. Non-retryable failures propagate immediately as a
// SyncError; exhausting the attempt budget returns a
// RetryExhaustedError; an open breaker rejects with BreakerOpenError
// before fn is invoked.
func (e *Executor) Execute(ctx context.Context, op string, fn func(context.Context) error) error {
	br := e.breaker(op)
	attempts := e.cfg.Retry.MaxAttempts

	var last *SyncError
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := br.Allow(); err != nil {
			metrics.IncBreakerRejected(op)
			e.log.Warn().Str("op", op).Msg("circuit breaker rejected call")
			return err
		}

		err := e.runOnce(ctx, fn)
		if err == nil {
			br.RecordSuccess()
			return nil
		}

		serr := Classify(err)
		br.RecordFailure()
		last = serr

		if !serr.Retryable {
			e.log.Error().Err(serr).Str("op", op).Str("kind", serr.Kind).Msg("non-retryable failure")
			return serr
		}
		if attempt == attempts {
			break
		}

		delay := e.cfg.Retry.Delay(attempt)
		metrics.IncRetry(op)
		e.log.Debug().
			Str("op", op).
			Str("kind", serr.Kind).
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("retrying after backoff")
		if err := e.clk.Sleep(ctx, delay); err != nil {
			return err
		}
	}

	e.log.Error().Str("op", op).Int("attempts", attempts).Err(last).Msg("retries exhausted")
	return &RetryExhaustedError{Op: op, Attempts: attempts, Last: last}
}

func (e *Executor) runOnce(ctx context.Context, fn func(context.Context) error) error {
	if e.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.CallTimeout)
		defer cancel()
	}
	return fn(ctx)
}

// Breaker returns the breaker for an operation name, creating it if
// needed.
func (e *Executor) Breaker(op string) *Breaker {
	return e.breaker(op)
}

// Snapshots returns the state of every known breaker sorted by name.
func (e *Executor) Snapshots() []BreakerSnapshot {
	e.mu.Lock()
	names := make([]string, 0, len(e.breakers))
	for name := range e.breakers {
		names = append(names, name)
	}
	brs := make([]*Breaker, 0, len(names))
	sort.Strings(names)
	for _, name := range names {
		brs = append(brs, e.breakers[name])
	}
	e.mu.Unlock()

	out := make([]BreakerSnapshot, len(brs))
	for i, br := range brs {
		out[i] = br.Snapshot()
	}
	return out
}

func (e *Executor) breaker(op string) *Breaker {
	e.mu.Lock()
	defer e.mu.Unlock()
	br, ok := e.breakers[op]
	if !ok {
		br = NewBreaker(op, e.cfg.FailureThreshold, e.cfg.ResetTimeout, e.clk)
		e.breakers[op] = br
	}
	return br
}
