package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/config"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/events"
)

const (
	eventChannel  = "vendorsync:events"
	recentListKey = "vendorsync:events:recent"
	defaultRecent = 100
)

type RedisPublisher struct {
	client    *redis.Client
	maxRecent int
}

// NewRedisClient builds a Redis client from configuration.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func NewRedisPublisher(client *redis.Client, maxRecent int) *RedisPublisher {
	if maxRecent <= 0 {
		maxRecent = defaultRecent
	}
	return &RedisPublisher{client: client, maxRecent: maxRecent}
}

// Publish fans the event out on the pub/sub channel and records it in
// the capped recent list.
func (p *RedisPublisher) Publish(ctx context.Context, event *events.Event) error {
	if p.client == nil {
		return fmt.Errorf("redis client is nil")
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	pipe := p.client.Pipeline()
	pipe.Publish(ctx, eventChannel, data)
	pipe.LPush(ctx, recentListKey, data)
	pipe.LTrim(ctx, recentListKey, 0, int64(p.maxRecent-1))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish event to redis: %w", err)
	}
	return nil
}

// Recent returns the latest events, newest first.
func (p *RedisPublisher) Recent(ctx context.Context, limit int) ([]events.Event, error) {
	if p.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if limit <= 0 || limit > p.maxRecent {
		limit = p.maxRecent
	}

	raw, err := p.client.LRange(ctx, recentListKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read recent events: %w", err)
	}

	out := make([]events.Event, 0, len(raw))
	for _, item := range raw {
		var e events.Event
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}

// Ping verifies the Redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
