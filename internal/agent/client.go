package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/jingjing529/ai-calendar-agent/internal/instrumentation"
)

const (
	// DefaultPath is the streaming chat endpoint of the agent backend.
	DefaultPath = "/chat"

	// DefaultReadTimeout bounds the wait for each reply fragment.
	DefaultReadTimeout = 60 * time.Second

	readChunkSize   = 4096
	maxErrorExcerpt = 512
)

// ErrReadTimeout is returned when no reply bytes arrive within the read timeout.
var ErrReadTimeout = errors.New("agent read timed out")

// StatusError reports a non-2xx response from the agent.
type StatusError struct {
	Code int
	// Body is a bounded excerpt of the response body.
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("agent returned status %d", e.Code)
	}
	return fmt.Sprintf("agent returned status %d: %s", e.Code, e.Body)
}

// Request is the body posted to the agent.
type Request struct {
	Message string `json:"message"`
	// Timezone is only understood by the relay endpoint; the agent ignores it.
	Timezone string `json:"timezone,omitempty"`
}

// Client streams replies from an agent backend or from the server's relay.
type Client struct {
	endpoint    string
	httpClient  *http.Client
	readTimeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client. It must not impose an overall timeout
// shorter than a full reply.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithReadTimeout sets the per-fragment idle timeout. Zero disables it.
func WithReadTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.readTimeout = d
	}
}

// NewClient returns a client posting to baseURL joined with path.
// An empty path uses DefaultPath.
func NewClient(baseURL, path string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid agent URL %q", baseURL)
	}
	if path == "" {
		path = DefaultPath
	}

	c := &Client{
		endpoint:    strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(path, "/"),
		httpClient:  &http.Client{},
		readTimeout: DefaultReadTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Endpoint returns the URL requests are posted to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Stream posts req and returns the reply body as a fragment source.
// The caller must Close the reply.
func (c *Client) Stream(ctx context.Context, req Request) (*Reply, error) {
	ctx, span := instrumentation.StartAgentSpan(ctx, attribute.Int("agent.prompt_bytes", len(req.Message)))
	defer span.End()

	body, err := json.Marshal(req)
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return nil, fmt.Errorf("failed to encode agent request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return nil, fmt.Errorf("failed to create agent request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/plain")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return nil, fmt.Errorf("failed to call agent: %w", err)
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorExcerpt))
		_ = resp.Body.Close()
		statusErr := &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(excerpt))}
		instrumentation.SetSpanError(span, statusErr)
		return nil, statusErr
	}

	instrumentation.SetSpanSuccess(span)
	return newReply(resp.Body, c.readTimeout), nil
}

type readResult struct {
	data []byte
	err  error
}

// Reply is a streaming agent reply. It implements stream.Source.
type Reply struct {
	body        io.ReadCloser
	readTimeout time.Duration
	done        bool
}

func newReply(body io.ReadCloser, readTimeout time.Duration) *Reply {
	return &Reply{body: body, readTimeout: readTimeout}
}

// Next returns the next chunk of reply text. It returns io.EOF, possibly with
// a final chunk, when the reply is complete, and ErrReadTimeout when the agent
// stalls for longer than the read timeout.
func (r *Reply) Next(ctx context.Context) (string, error) {
	if r.done {
		return "", io.EOF
	}

	results := make(chan readResult, 1)
	go func() {
		buf := make([]byte, readChunkSize)
		n, err := r.body.Read(buf)
		results <- readResult{data: buf[:n], err: err}
	}()

	var timeout <-chan time.Time
	if r.readTimeout > 0 {
		timer := time.NewTimer(r.readTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timeout:
		return "", fmt.Errorf("%w after %s", ErrReadTimeout, r.readTimeout)
	case res := <-results:
		if errors.Is(res.err, io.EOF) {
			r.done = true
			return string(res.data), io.EOF
		}
		if res.err != nil {
			return string(res.data), fmt.Errorf("failed to read agent reply: %w", res.err)
		}
		return string(res.data), nil
	}
}

// Close releases the response body and unblocks any pending read.
func (r *Reply) Close() error {
	return r.body.Close()
}
