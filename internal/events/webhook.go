package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultWebhookTimeout is the default HTTP request timeout.
const DefaultWebhookTimeout = 10 * time.Second

// WebhookConfig configures the webhook publisher.
type WebhookConfig struct {
	// URL receives a JSON POST per event (required).
	URL string
	// Headers are added to each request.
	Headers map[string]string
	// Timeout is the per-request timeout (default 10s).
	Timeout time.Duration
	// Retries is the number of retries after a failed request.
	Retries int
}

// WebhookStatusError is returned for non-2xx webhook responses.
type WebhookStatusError struct {
	Code int
}

func (e *WebhookStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// WebhookPublisher publishes action events with HTTP POST.
type WebhookPublisher struct {
	config WebhookConfig
	client *http.Client
}

// NewWebhookPublisher validates cfg.
func NewWebhookPublisher(cfg WebhookConfig) (*WebhookPublisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("webhook publisher requires a URL")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultWebhookTimeout
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}
	return &WebhookPublisher{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Publish posts the event, retrying 5xx responses and network errors with
// exponential backoff. 4xx responses fail immediately.
func (p *WebhookPublisher) Publish(ctx context.Context, event *ActionEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal action event: %w", err)
	}

	var lastErr error
	attempts := 1 + p.config.Retries
	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("webhook publish canceled: %w", err)
		}
		if i > 0 {
			if err := wait(ctx, backoff(i)); err != nil {
				return fmt.Errorf("webhook publish canceled during backoff: %w", err)
			}
		}

		lastErr = p.post(ctx, body)
		if lastErr == nil {
			return nil
		}
		var statusErr *WebhookStatusError
		if errors.As(lastErr, &statusErr) && statusErr.Code >= 400 && statusErr.Code < 500 {
			return fmt.Errorf("webhook rejected event: %w", lastErr)
		}
	}
	return fmt.Errorf("failed to publish to webhook after %d attempts: %w", attempts, lastErr)
}

func (p *WebhookPublisher) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range p.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &WebhookStatusError{Code: resp.StatusCode}
	}
	return nil
}

// Close releases idle connections.
func (p *WebhookPublisher) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

var _ Publisher = (*WebhookPublisher)(nil)
