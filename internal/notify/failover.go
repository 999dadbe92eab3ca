package notify

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/events"
)

// recoveryInterval is how long the failover waits before probing the
// primary publisher again.
const recoveryInterval = time.Minute

// FailoverPublisher uses the primary publisher until it errors, then
// serves from the fallback while periodically probing the primary.
type FailoverPublisher struct {
	primary   Publisher
	fallback  Publisher
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func NewFailoverPublisher(primary, fallback Publisher, logger *zerolog.Logger) *FailoverPublisher {
	return &FailoverPublisher{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (p *FailoverPublisher) markDown(err error) {
	p.logger.Error().Err(err).Msg("primary event publisher failed, falling back to memory")
	p.isDown.Store(true)
	p.lastCheck.Store(time.Now().UnixNano())
}

func (p *FailoverPublisher) shouldProbe() bool {
	last := time.Unix(0, p.lastCheck.Load())
	return time.Since(last) > recoveryInterval
}

func (p *FailoverPublisher) Publish(ctx context.Context, event *events.Event) error {
	if !p.isDown.Load() {
		err := p.primary.Publish(ctx, event)
		if err == nil {
			return nil
		}
		p.markDown(err)
	} else if p.shouldProbe() {
		if err := p.primary.Publish(ctx, event); err == nil {
			p.isDown.Store(false)
			p.logger.Info().Msg("primary event publisher recovered")
			return nil
		}
		p.lastCheck.Store(time.Now().UnixNano())
	}

	return p.fallback.Publish(ctx, event)
}

func (p *FailoverPublisher) Recent(ctx context.Context, limit int) ([]events.Event, error) {
	if !p.isDown.Load() {
		recent, err := p.primary.Recent(ctx, limit)
		if err == nil {
			return recent, nil
		}
		p.markDown(err)
	} else if p.shouldProbe() {
		if recent, err := p.primary.Recent(ctx, limit); err == nil {
			p.isDown.Store(false)
			p.logger.Info().Msg("primary event publisher recovered")
			return recent, nil
		}
		p.lastCheck.Store(time.Now().UnixNano())
	}

	return p.fallback.Recent(ctx, limit)
}
