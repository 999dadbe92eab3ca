package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		kind      string
		retryable bool
		severity  string
		code      string
	}{
		{"ConnectionRefused", errors.New("dial tcp 10.0.0.1:443: connect: connection refused"), KindNetwork, true, SeverityMedium, ""},
		{"DeadlineExceeded", context.DeadlineExceeded, KindNetwork, true, SeverityMedium, ""},
		{"NoSuchHost", errors.New("lookup shop.example: no such host"), KindNetwork, true, SeverityMedium, ""},
		{"HTTP429", &HTTPError{StatusCode: 429, Status: "429 Too Many Requests"}, KindRateLimit, true, SeverityLow, "429"},
		{"ThrottleWording", errors.New("request was throttled by upstream"), KindRateLimit, true, SeverityLow, "429"},
		{"HTTP401", &HTTPError{StatusCode: 401, Status: "401 Unauthorized"}, KindAuth, false, SeverityHigh, "401"},
		{"HTTP403", &HTTPError{StatusCode: 403, Status: "403 Forbidden"}, KindAuth, false, SeverityHigh, "403"},
		{"AuthWording", errors.New("invalid api key supplied"), KindAuth, false, SeverityHigh, ""},
		{"HTTP422", &HTTPError{StatusCode: 422, Status: "422 Unprocessable Entity"}, KindValidation, false, SeverityMedium, "422"},
		{"ValidationWording", errors.New("validation failed: price must be positive"), KindValidation, false, SeverityMedium, ""},
		{"HTTP500", &HTTPError{StatusCode: 500, Status: "500 Internal Server Error"}, KindServer, true, SeverityHigh, "500"},
		{"HTTP503", &HTTPError{StatusCode: 503, Status: "503 Service Unavailable"}, KindServer, true, SeverityHigh, "503"},
		{"ServerWording", errors.New("upstream returned bad gateway"), KindServer, true, SeverityHigh, ""},
		{"Unknown", errors.New("boom"), KindUnknown, false, SeverityMedium, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.err)
			if got.Kind != tc.kind {
				t.Fatalf("kind = %s, want %s", got.Kind, tc.kind)
			}
			if got.Retryable != tc.retryable {
				t.Fatalf("retryable = %v, want %v", got.Retryable, tc.retryable)
			}
			if got.Severity != tc.severity {
				t.Fatalf("severity = %s, want %s", got.Severity, tc.severity)
			}
			if got.Code != tc.code {
				t.Fatalf("code = %q, want %q", got.Code, tc.code)
			}
			if !errors.Is(got, tc.err) {
				t.Fatalf("classified error should wrap the cause")
			}
		})
	}
}

func TestClassify_FirstMatchWins(t *testing.T) {
	// "gateway timeout" carries both a network and a server signature;
	// network is checked first.
	got := Classify(errors.New("gateway timeout"))
	if got.Kind != KindNetwork {
		t.Fatalf("kind = %s, want %s", got.Kind, KindNetwork)
	}
}

func TestClassify_PassThrough(t *testing.T) {
	original := Classify(errors.New("boom"))
	again := Classify(original)
	if again != original {
		t.Fatalf("reclassification should return the same instance")
	}

	wrapped := fmt.Errorf("sync products: %w", original)
	got := Classify(wrapped)
	if got != original {
		t.Fatalf("classification should unwrap to the original SyncError")
	}
}

func TestClassify_Nil(t *testing.T) {
	if got := Classify(nil); got != nil {
		t.Fatalf("Classify(nil) = %v, want nil", got)
	}
}
