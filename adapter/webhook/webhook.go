// Package webhook publishes stream completion events as JSON over HTTP POST.
//
// Transient failures (network errors, 5xx) are retried with exponential
// backoff. 4xx responses fail immediately.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/auxoncorp/modality-dlt-plugin/adapter"
	"github.com/auxoncorp/modality-dlt-plugin/iox"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 10 * time.Second

// DefaultRetries is the default number of retry attempts.
const DefaultRetries = 3

// Config configures the webhook adapter.
type Config struct {
	// URL is the HTTP endpoint to POST to (required).
	URL string
	// Headers are custom HTTP headers added to each request.
	Headers map[string]string
	// Timeout is the per-request timeout (default 10s).
	Timeout time.Duration
	// Retries is the number of retry attempts after the first.
	Retries int
}

// Adapter publishes stream completion events via HTTP POST.
type Adapter struct {
	config Config
	client *http.Client
}

// New creates a webhook adapter.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("webhook adapter requires a URL")
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Adapter{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// StatusError is returned for non-2xx HTTP responses.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// Retriable reports whether the status is worth retrying.
func (e *StatusError) Retriable() bool {
	return e.Code < 400 || e.Code >= 500
}

// Publish POSTs the event, retrying transient failures.
func (a *Adapter) Publish(ctx context.Context, event *adapter.StreamCompletedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	attempts := 1 + a.config.Retries
	var lastErr error
	for i := range attempts {
		if i > 0 {
			if err := adapter.Wait(ctx, i); err != nil {
				return fmt.Errorf("webhook: canceled during backoff: %w", err)
			}
		} else if err := ctx.Err(); err != nil {
			return fmt.Errorf("webhook: %w", err)
		}

		lastErr = a.post(ctx, body)
		if lastErr == nil {
			return nil
		}

		var statusErr *StatusError
		if errors.As(lastErr, &statusErr) && !statusErr.Retriable() {
			return fmt.Errorf("webhook: non-retriable error: %w", lastErr)
		}
	}
	return fmt.Errorf("webhook: failed after %d attempts: %w", attempts, lastErr)
}

func (a *Adapter) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range a.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer iox.DiscardClose(resp.Body)
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}

// Close releases idle connections.
func (a *Adapter) Close() error {
	a.client.CloseIdleConnections()
	return nil
}

var _ adapter.Adapter = (*Adapter)(nil)
