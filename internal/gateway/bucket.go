package gateway

import "time"

// bucket is a token bucket. It is owned by the gateway's drain loop and
// is never mutated from outside the gateway mutex.
type bucket struct {
	capacity   int
	tokens     int
	refillRate float64
	lastRefill time.Time
}

func newBucket(capacity int, refillRate float64, now time.Time) *bucket {
	return &bucket{
		capacity:   capacity,
		tokens:     capacity,
		refillRate: refillRate,
		lastRefill: now,
	}
}

// refill credits tokens accrued since the last refill. The floor of the
// accrued amount is added; lastRefill only advances when at least one
// whole token was credited, so fractional accrual is never lost.
func (b *bucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	add := int(elapsed * b.refillRate)
	if add <= 0 {
		return
	}
	b.tokens += add
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastRefill = now
}

// take consumes one token if available.
func (b *bucket) take() bool {
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// resync overrides the local estimate with the remote's authoritative
// usage, clamped into [0, capacity].
func (b *bucket) resync(used, max int, now time.Time) {
	remaining := max - used
	if remaining < 0 {
		remaining = 0
	}
	if remaining > b.capacity {
		remaining = b.capacity
	}
	b.tokens = remaining
	b.lastRefill = now
}

// refillWait is how long to sleep for one token to accrue.
func (b *bucket) refillWait() time.Duration {
	if b.refillRate <= 0 {
		return time.Second
	}
	return time.Duration(float64(time.Second) / b.refillRate)
}
