package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// EventType is the type of every published event.
const EventType = "calendar_action_applied"

// ActionEvent is published after the dispatcher applied, or failed to apply,
// an agent action.
type ActionEvent struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	// Source names the surface that dispatched the action: web, cli or mcp.
	Source     string `json:"source"`
	Action     string `json:"action"`
	EventID    string `json:"event_id,omitempty"`
	Summary    string `json:"summary,omitempty"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	Timestamp  string `json:"timestamp"`
	DurationMs int64  `json:"duration_ms"`
}

// NewActionEvent creates an event with a fresh ID and the current timestamp.
func NewActionEvent(source, action, status string) *ActionEvent {
	return &ActionEvent{
		ID:        uuid.NewString(),
		EventType: EventType,
		Source:    source,
		Action:    action,
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// Publisher delivers action events to downstream systems.
type Publisher interface {
	// Publish sends one event. It must respect context cancellation.
	Publish(ctx context.Context, event *ActionEvent) error
	// Close releases publisher resources.
	Close() error
}

// NopPublisher discards events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, *ActionEvent) error { return nil }

func (NopPublisher) Close() error { return nil }

// Fanout publishes each event to every publisher.
type Fanout []Publisher

// Publish sends event to all publishers and joins their errors.
func (f Fanout) Publish(ctx context.Context, event *ActionEvent) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes all publishers.
func (f Fanout) Close() error {
	var errs []error
	for _, p := range f {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Config selects and configures publishers.
type Config struct {
	RedisURL   string
	Channel    string
	WebhookURL string
	Timeout    time.Duration
	Retries    int
}

// NewPublisher builds the publishers enabled in cfg. With none enabled it
// returns a NopPublisher.
func NewPublisher(cfg Config) (Publisher, error) {
	var pubs Fanout
	if cfg.RedisURL != "" {
		p, err := NewRedisPublisher(RedisConfig{
			URL:     cfg.RedisURL,
			Channel: cfg.Channel,
			Timeout: cfg.Timeout,
			Retries: cfg.Retries,
		})
		if err != nil {
			return nil, err
		}
		pubs = append(pubs, p)
	}
	if cfg.WebhookURL != "" {
		p, err := NewWebhookPublisher(WebhookConfig{
			URL:     cfg.WebhookURL,
			Timeout: cfg.Timeout,
			Retries: cfg.Retries,
		})
		if err != nil {
			_ = pubs.Close()
			return nil, err
		}
		pubs = append(pubs, p)
	}

	switch len(pubs) {
	case 0:
		return NopPublisher{}, nil
	case 1:
		return pubs[0], nil
	default:
		return pubs, nil
	}
}

// backoff returns the wait before retry attempt i (i >= 1).
func backoff(i int) time.Duration {
	return time.Duration(1<<uint(i-1)) * 500 * time.Millisecond
}

// wait sleeps for d unless ctx is done first.
func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
