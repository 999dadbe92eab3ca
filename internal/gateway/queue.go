package gateway

import (
	"context"
	"fmt"
	"time"
)

// Priority orders queued calls. Lower values drain first.
type Priority int

const (
	PriorityHigh Priority = iota
	PriorityNormal
	PriorityLow
)

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityLow:
		return "low"
	default:
		return "normal"
	}
}

// ParsePriority maps a wire value onto a Priority.
func ParsePriority(s string) (Priority, error) {
	switch s {
	case "high":
		return PriorityHigh, nil
	case "normal", "":
		return PriorityNormal, nil
	case "low":
		return PriorityLow, nil
	default:
		return PriorityNormal, fmt.Errorf("unknown priority %q", s)
	}
}

// queuedCall is one pending gateway call. done is buffered so whichever
// side resolves the call never blocks; each call is resolved exactly
// once.
type queuedCall struct {
	op       string
	priority Priority
	enqueued time.Time
	retries  int
	ctx      context.Context
	call     CallFunc
	done     chan error
}

// insert places c by priority, FIFO within a tier. Callers hold g.mu.
func (g *Gateway) insert(c *queuedCall) {
	idx := len(g.queue)
	for i, it := range g.queue {
		if it.priority > c.priority ||
			(it.priority == c.priority && it.enqueued.After(c.enqueued)) {
			idx = i
			break
		}
	}
	g.queue = append(g.queue, nil)
	copy(g.queue[idx+1:], g.queue[idx:])
	g.queue[idx] = c
}
