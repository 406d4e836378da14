// Package redis publishes stream completion events to a Redis pub/sub
// channel.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/auxoncorp/modality-dlt-plugin/adapter"
)

// DefaultChannel is the default pub/sub channel name.
const DefaultChannel = "modality-dlt:stream_completed"

// DefaultTimeout is the default per-publish timeout.
const DefaultTimeout = 5 * time.Second

// DefaultRetries is the default number of retry attempts.
const DefaultRetries = 3

// Config configures the Redis adapter.
type Config struct {
	// URL is the Redis connection URL (required).
	// Format: redis://[:password@]host:port[/db]
	URL string
	// Channel is the pub/sub channel (default modality-dlt:stream_completed).
	Channel string
	// Timeout bounds each PUBLISH (default 5s).
	Timeout time.Duration
	// Retries is the number of retry attempts after the first.
	Retries int
}

// Adapter publishes stream completion events via Redis PUBLISH.
type Adapter struct {
	config Config
	client *goredis.Client
}

// New creates a Redis adapter. The connection is established lazily.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis adapter requires a URL")
	}
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis adapter: invalid URL: %w", err)
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}
	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Adapter{config: cfg, client: goredis.NewClient(opts)}, nil
}

// Publish sends the event as JSON to the configured channel.
func (a *Adapter) Publish(ctx context.Context, event *adapter.StreamCompletedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis: marshal event: %w", err)
	}

	attempts := 1 + a.config.Retries
	var lastErr error
	for i := range attempts {
		if i > 0 {
			if err := adapter.Wait(ctx, i); err != nil {
				return fmt.Errorf("redis: canceled during backoff: %w", err)
			}
		} else if err := ctx.Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}

		publishCtx, cancel := context.WithTimeout(ctx, a.config.Timeout)
		lastErr = a.client.Publish(publishCtx, a.config.Channel, body).Err()
		cancel()
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, goredis.ErrClosed) {
			break
		}
	}
	return fmt.Errorf("redis: publish to %s failed: %w", a.config.Channel, lastErr)
}

// Close closes the client.
func (a *Adapter) Close() error {
	return a.client.Close()
}

var _ adapter.Adapter = (*Adapter)(nil)
