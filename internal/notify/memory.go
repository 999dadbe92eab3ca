package notify

import (
	"context"
	"sync"

	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/events"
)

// MemoryPublisher keeps a capped in-process ring of recent events. It
// backs the event feed when Redis is unavailable or disabled.
type MemoryPublisher struct {
	mu      sync.Mutex
	entries []events.Event
	max     int
}

func NewMemoryPublisher(maxRecent int) *MemoryPublisher {
	if maxRecent <= 0 {
		maxRecent = defaultRecent
	}
	return &MemoryPublisher{max: maxRecent}
}

func (p *MemoryPublisher) Publish(ctx context.Context, event *events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.entries = append(p.entries, *event)
	if len(p.entries) > p.max {
		p.entries = p.entries[len(p.entries)-p.max:]
	}
	return nil
}

// Recent returns the latest events, newest first, matching the Redis
// publisher's ordering.
func (p *MemoryPublisher) Recent(ctx context.Context, limit int) ([]events.Event, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if limit <= 0 || limit > len(p.entries) {
		limit = len(p.entries)
	}

	out := make([]events.Event, 0, limit)
	for i := len(p.entries) - 1; i >= len(p.entries)-limit; i-- {
		out = append(out, p.entries[i])
	}
	return out, nil
}
