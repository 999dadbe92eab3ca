// Package gateway schedules outbound calls to rate-limited remote
// accounts. Each account gets one Gateway holding a token bucket and a
// priority queue drained by a single worker; all remote traffic for the
// account flows through it.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/clock"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/metrics"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/resilience"
)

// ErrQueueCleared rejects calls that were still pending when their
// gateway closed.
var ErrQueueCleared = errors.New("gateway: queue cleared")

// Health bounds for Snapshot.Healthy.
const (
	healthyQueueDepth  = 50
	healthySuccessRate = 0.9
	healthyAvgLatency  = 2 * time.Second
)

// CallFunc performs one remote call. It returns the rate usage the
// response reported, or nil when the response carried no usage header.
type CallFunc func(ctx context.Context) (*Usage, error)

// Options tune a gateway's pacing and rate-limit recovery.
type Options struct {
	// InterCallDelay spaces successive executions to avoid bursting.
	InterCallDelay time.Duration
	// RetryBase is the first re-enqueue backoff after a rate_limit
	// failure; it doubles per retry.
	RetryBase time.Duration
	// MaxRetries bounds rate_limit re-enqueues per call.
	MaxRetries int
}

// DefaultOptions returns the standard gateway pacing.
func DefaultOptions() Options {
	return Options{
		InterCallDelay: 100 * time.Millisecond,
		RetryBase:      time.Second,
		MaxRetries:     3,
	}
}

// Gateway owns the token bucket and pending queue for one remote
// account. The bucket is mutated only by the drain loop; callers submit
// work through Do and wait.
type Gateway struct {
	account string
	opts    Options
	clk     clock.Clock
	log     zerolog.Logger

	mu       sync.Mutex
	bucket   *bucket
	queue    []*queuedCall
	draining bool
	closed   bool

	totalCalls   int64
	succeeded    int64
	rateLimited  int64
	totalLatency time.Duration
}

// Snapshot is a point-in-time view of a gateway's load and health.
type Snapshot struct {
	Account      string  `json:"account"`
	QueueDepth   int     `json:"queue_depth"`
	Tokens       int     `json:"tokens"`
	Capacity     int     `json:"capacity"`
	TotalCalls   int64   `json:"total_calls"`
	RateLimited  int64   `json:"rate_limited"`
	SuccessRate  float64 `json:"success_rate"`
	AvgLatencyMs int64   `json:"avg_latency_ms"`
	Healthy      bool    `json:"healthy"`
}

// New creates a gateway for one account with a full bucket.
func New(account string, capacity int, refillPerSec float64, opts Options, clk clock.Clock, logger zerolog.Logger) *Gateway {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = time.Second
	}
	return &Gateway{
		account: account,
		opts:    opts,
		clk:     clk,
		log:     logger.With().Str("component", "gateway").Str("account", account).Logger(),
		bucket:  newBucket(capacity, refillPerSec, clk.Now()),
	}
}

// Do schedules call at the given priority and blocks until it executed,
// was rejected, or ctx ended. A rejected pending call returns
// ErrQueueCleared. Callers whose ctx ends while the call is pending get
// the ctx error; the call itself is skipped when it reaches the head.
func (g *Gateway) Do(ctx context.Context, op string, priority Priority, call CallFunc) error {
	c := &queuedCall{
		op:       op,
		priority: priority,
		ctx:      ctx,
		call:     call,
		done:     make(chan error, 1),
	}

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return ErrQueueCleared
	}
	c.enqueued = g.clk.Now()
	g.insert(c)
	depth := len(g.queue)
	if !g.draining {
		g.draining = true
		go g.drain()
	}
	g.mu.Unlock()
	metrics.SetGatewayQueueDepth(g.account, depth)

	select {
	case err := <-c.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// drain is the single exclusive worker loop. It refills the bucket,
// waits out empty buckets, and executes the head call. Starting a drain
// while one is running is a no-op; the running loop keeps going until
// the queue is empty.
func (g *Gateway) drain() {
	for {
		g.mu.Lock()
		if g.closed || len(g.queue) == 0 {
			g.draining = false
			g.mu.Unlock()
			return
		}

		g.bucket.refill(g.clk.Now())
		metrics.SetGatewayTokens(g.account, g.bucket.tokens)
		if g.bucket.tokens < 1 {
			wait := g.bucket.refillWait()
			g.mu.Unlock()
			g.clk.Sleep(context.Background(), wait)
			continue
		}

		c := g.queue[0]
		g.queue = g.queue[1:]
		depth := len(g.queue)

		if c.ctx.Err() != nil {
			g.mu.Unlock()
			c.done <- c.ctx.Err()
			metrics.SetGatewayQueueDepth(g.account, depth)
			continue
		}

		g.bucket.take()
		metrics.SetGatewayTokens(g.account, g.bucket.tokens)
		g.mu.Unlock()
		metrics.SetGatewayQueueDepth(g.account, depth)

		g.execute(c)

		if g.opts.InterCallDelay > 0 {
			g.clk.Sleep(context.Background(), g.opts.InterCallDelay)
		}
	}
}

func (g *Gateway) execute(c *queuedCall) {
	start := g.clk.Now()
	usage, err := c.call(c.ctx)
	latency := g.clk.Now().Sub(start)

	g.mu.Lock()
	if usage != nil {
		g.bucket.resync(usage.Used, usage.Max, g.clk.Now())
		metrics.SetGatewayTokens(g.account, g.bucket.tokens)
	}
	g.totalCalls++
	g.totalLatency += latency
	if err == nil {
		g.succeeded++
	}
	g.mu.Unlock()

	if err == nil {
		metrics.IncRemoteCall(g.account, "ok")
		c.done <- nil
		return
	}

	if resilience.Classify(err).Kind == resilience.KindRateLimit {
		g.mu.Lock()
		g.rateLimited++
		g.mu.Unlock()
		metrics.IncRemoteCall(g.account, "rate_limited")

		c.retries++
		if c.retries > g.opts.MaxRetries {
			c.done <- fmt.Errorf("rate limit retries exhausted after %d attempts: %w", c.retries, err)
			return
		}
		backoff := g.opts.RetryBase * (1 << (c.retries - 1))
		g.log.Warn().
			Str("op", c.op).
			Int("retry", c.retries).
			Dur("backoff", backoff).
			Msg("rate limited, re-enqueueing")
		go g.requeue(c, backoff)
		return
	}

	metrics.IncRemoteCall(g.account, "error")
	c.done <- err
}

// requeue re-inserts a rate-limited call after its backoff. The call
// keeps its original enqueue timestamp so it does not lose its place
// behind peers that arrived earlier.
func (g *Gateway) requeue(c *queuedCall, backoff time.Duration) {
	g.clk.Sleep(context.Background(), backoff)

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		c.done <- ErrQueueCleared
		return
	}
	g.insert(c)
	if !g.draining {
		g.draining = true
		go g.drain()
	}
	g.mu.Unlock()
}

// Close rejects all pending calls with ErrQueueCleared and stops the
// gateway accepting new work. Calls already executing finish normally.
func (g *Gateway) Close() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	pending := g.queue
	g.queue = nil
	g.mu.Unlock()

	for _, c := range pending {
		c.done <- ErrQueueCleared
	}
	metrics.SetGatewayQueueDepth(g.account, 0)
	g.log.Info().Int("rejected", len(pending)).Msg("gateway closed")
}

// Snapshot reports queue depth, token level and rolling health without
// touching bucket state.
func (g *Gateway) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	successRate := 1.0
	var avgLatency time.Duration
	if g.totalCalls > 0 {
		successRate = float64(g.succeeded) / float64(g.totalCalls)
		avgLatency = g.totalLatency / time.Duration(g.totalCalls)
	}

	return Snapshot{
		Account:      g.account,
		QueueDepth:   len(g.queue),
		Tokens:       g.bucket.tokens,
		Capacity:     g.bucket.capacity,
		TotalCalls:   g.totalCalls,
		RateLimited:  g.rateLimited,
		SuccessRate:  successRate,
		AvgLatencyMs: avgLatency.Milliseconds(),
		Healthy: len(g.queue) < healthyQueueDepth &&
			successRate > healthySuccessRate &&
			avgLatency < healthyAvgLatency,
	}
}
