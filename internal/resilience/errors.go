package resilience

import (
	"fmt"
	"time"
)

// Error kinds, checked in classification order.
const (
	KindNetwork    = "network"
	KindRateLimit  = "rate_limit"
	KindAuth       = "auth"
	KindValidation = "validation"
	KindServer     = "server"
	KindUnknown    = "unknown"
)

// Severity levels attached to classified errors.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// SyncError is a classified failure. Once built by Classify it is not
// mutated.
type SyncError struct {
	Kind      string `json:"kind"`
	Retryable bool   `json:"retryable"`
	Severity  string `json:"severity"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message"`
	Cause     error  `json:"-"`
}

func (e *SyncError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s): %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *SyncError) Unwrap() error { return e.Cause }

// RetryExhaustedError is returned when a retryable operation failed on
// every attempt. Last preserves the final classification.
type RetryExhaustedError struct {
	Op       string
	Attempts int
	Last     *SyncError
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("%s: retries exhausted after %d attempts: %v", e.Op, e.Attempts, e.Last)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Last }

// BreakerOpenError rejects a call without invoking the operation while
// the named breaker is cooling down.
type BreakerOpenError struct {
	Op      string
	RetryAt time.Time
}

func (e *BreakerOpenError) Error() string {
	return fmt.Sprintf("circuit breaker open for %s until %s", e.Op, e.RetryAt.Format(time.RFC3339))
}

// HTTPError carries a remote HTTP status so classification can key off
// the code instead of message text.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("http %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Status)
}
