package resilience

import (
	"sync"
	"time"

	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/clock"
)

// Breaker states.
const (
	StateClosed   = "closed"
	StateOpen     = "open"
	StateHalfOpen = "half_open"
)

// Breaker guards one logical operation name. After Threshold consecutive
// failures it opens and rejects calls until ResetTimeout elapses, then
// admits a single half-open probe.
type Breaker struct {
	mu sync.Mutex

	name         string
	threshold    int
	resetTimeout time.Duration
	clk          clock.Clock

	state         string
	failures      int
	probing       bool
	lastFailureAt time.Time
	lastSuccessAt time.Time
	nextAttemptAt time.Time
}

// BreakerSnapshot is a point-in-time view for health reporting.
type BreakerSnapshot struct {
	Name          string    `json:"name"`
	State         string    `json:"state"`
	Failures      int       `json:"consecutive_failures"`
	LastFailureAt time.Time `json:"last_failure_at,omitempty"`
	LastSuccessAt time.Time `json:"last_success_at,omitempty"`
	NextAttemptAt time.Time `json:"next_attempt_at,omitempty"`
}

// NewBreaker creates a closed breaker for the named operation.
func NewBreaker(name string, threshold int, resetTimeout time.Duration, clk clock.Clock) *Breaker {
	return &Breaker{
		name:         name,
		threshold:    threshold,
		resetTimeout: resetTimeout,
		clk:          clk,
		state:        StateClosed,
	}
}

// Allow reports whether a call may proceed. While open it returns a
// BreakerOpenError until the reset timeout elapses, then flips to
// half-open and admits exactly one probe; concurrent calls during the
// probe are rejected.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if b.clk.Now().Before(b.nextAttemptAt) {
			return &BreakerOpenError{Op: b.name, RetryAt: b.nextAttemptAt}
		}
		b.state = StateHalfOpen
		b.probing = true
		return nil
	default: // half open
		if b.probing {
			return &BreakerOpenError{Op: b.name, RetryAt: b.nextAttemptAt}
		}
		b.probing = true
		return nil
	}
}

// RecordSuccess closes the breaker and clears the failure count.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = StateClosed
	b.failures = 0
	b.probing = false
	b.lastSuccessAt = b.clk.Now()
}

// RecordFailure counts a failure. A failure during the half-open probe
// reopens immediately; in closed state the breaker opens once the
// threshold is reached.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clk.Now()
	b.failures++
	b.lastFailureAt = now

	if b.state == StateHalfOpen {
		b.state = StateOpen
		b.probing = false
		b.nextAttemptAt = now.Add(b.resetTimeout)
		return
	}
	if b.state == StateClosed && b.failures >= b.threshold {
		b.state = StateOpen
		b.nextAttemptAt = now.Add(b.resetTimeout)
	}
}

// Reset returns the breaker to closed with zero failures.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = StateClosed
	b.failures = 0
	b.probing = false
	b.nextAttemptAt = time.Time{}
}

// State returns the current state without side effects.
func (b *Breaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Snapshot returns a copy of the breaker's observable state.
func (b *Breaker) Snapshot() BreakerSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerSnapshot{
		Name:          b.name,
		State:         b.state,
		Failures:      b.failures,
		LastFailureAt: b.lastFailureAt,
		LastSuccessAt: b.lastSuccessAt,
		NextAttemptAt: b.nextAttemptAt,
	}
}
