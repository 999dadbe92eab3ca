package resilience

import (
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"syscall"
)

// Classify maps a raw failure onto the sync error taxonomy. The first
// matching category wins: network, rate_limit, auth, validation, server,
// then unknown. Already classified errors pass through unchanged.
func Classify(err error) *SyncError {
	if err == nil {
		return nil
	}
	var se *SyncError
	if errors.As(err, &se) {
		return se
	}

	status := 0
	var he *HTTPError
	if errors.As(err, &he) {
		status = he.StatusCode
	}
	msg := strings.ToLower(err.Error())

	switch {
	case status == 0 && isNetworkError(err, msg):
		return &SyncError{
			Kind:      KindNetwork,
			Retryable: true,
			Severity:  SeverityMedium,
			Message:   err.Error(),
			Cause:     err,
		}
	case status == 429 || matchesAny(msg, "rate limit", "too many requests", "throttl", "429"):
		return &SyncError{
			Kind:      KindRateLimit,
			Retryable: true,
			Severity:  SeverityLow,
			Code:      "429",
			Message:   err.Error(),
			Cause:     err,
		}
	case status == 401 || status == 403 ||
		matchesAny(msg, "unauthorized", "forbidden", "authentication", "invalid api key", "invalid token", "access denied"):
		return &SyncError{
			Kind:      KindAuth,
			Retryable: false,
			Severity:  SeverityHigh,
			Code:      statusCode(status),
			Message:   err.Error(),
			Cause:     err,
		}
	case status == 400 || status == 422 ||
		matchesAny(msg, "validation", "invalid", "unprocessable", "bad request", "missing required"):
		return &SyncError{
			Kind:      KindValidation,
			Retryable: false,
			Severity:  SeverityMedium,
			Code:      statusCode(status),
			Message:   err.Error(),
			Cause:     err,
		}
	case status >= 500 ||
		matchesAny(msg, "internal server error", "bad gateway", "service unavailable", "gateway timeout", "502", "503"):
		return &SyncError{
			Kind:      KindServer,
			Retryable: true,
			Severity:  SeverityHigh,
			Code:      statusCode(status),
			Message:   err.Error(),
			Cause:     err,
		}
	default:
		return &SyncError{
			Kind:      KindUnknown,
			Retryable: false,
			Severity:  SeverityMedium,
			Message:   err.Error(),
			Cause:     err,
		}
	}
}

func isNetworkError(err error, msg string) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return matchesAny(msg,
		"connection refused",
		"connection reset",
		"timeout",
		"timed out",
		"no such host",
		"network is unreachable",
		"broken pipe",
	)
}

func matchesAny(msg string, patterns ...string) bool {
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

func statusCode(status int) string {
	if status == 0 {
		return ""
	}
	return strconv.Itoa(status)
}
