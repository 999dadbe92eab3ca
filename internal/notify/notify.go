// Package notify distributes domain events beyond the process: a Redis
// fan-out with an in-memory fallback for the live event feed, and a
// Telegram channel for operator alerts.
package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/events"
)

// Publisher pushes events out of the process and serves the recent
// event feed.
type Publisher interface {
	Publish(ctx context.Context, event *events.Event) error
	Recent(ctx context.Context, limit int) ([]events.Event, error)
}

// BridgedEvents are the bus event types forwarded to the publisher by
// default.
var BridgedEvents = []string{
	events.EventJobQueued,
	events.EventJobStarted,
	events.EventJobProgress,
	events.EventJobCompleted,
	events.EventJobFailed,
	events.EventProductSynced,
	events.EventProductConflict,
	events.EventUploadReceived,
}

const publishTimeout = 5 * time.Second

// Bridge subscribes the publisher to the given bus event types. Publish
// failures are logged and never propagate back to the emitter.
func Bridge(bus *events.EventBus, pub Publisher, logger zerolog.Logger, types ...string) {
	if len(types) == 0 {
		types = BridgedEvents
	}
	for _, eventType := range types {
		bus.Subscribe(eventType, func(e *events.Event) error {
			ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
			defer cancel()
			if err := pub.Publish(ctx, e); err != nil {
				logger.Warn().Err(err).Str("event", e.Type).Msg("event publish failed")
			}
			return nil
		})
	}
}
