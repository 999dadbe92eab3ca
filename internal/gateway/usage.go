package gateway

import (
	"strconv"
	"strings"
)

// Usage is the remote platform's authoritative rate usage, reported as a
// "used/max" header on API responses.
type Usage struct {
	Used int
	Max  int
}

// ParseUsage parses a "used/max" header value. Malformed values are
// ignored rather than failing the call.
func ParseUsage(header string) (*Usage, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), "/", 2)
	if len(parts) != 2 {
		return nil, false
	}
	used, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return nil, false
	}
	max, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return nil, false
	}
	if used < 0 || max <= 0 {
		return nil, false
	}
	return &Usage{Used: used, Max: max}, true
}
