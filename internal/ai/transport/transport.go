// Package transport is the HTTP plumbing shared by the LLM providers: JSON
// requests, retry with exponential backoff, and status classification.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"
)

var (
	ErrAuthFailure      = errors.New("ai provider rejected credentials")
	ErrRateLimited      = errors.New("ai provider rate limit exceeded")
	ErrRemoteFailure    = errors.New("ai provider request failed")
	ErrEmptyResponse    = errors.New("ai provider returned empty response")
	ErrInvalidResponse  = errors.New("ai provider returned invalid response")
	ErrInferenceTimeout = errors.New("ai inference timeout")
)

const (
	defaultInitialBackoff = time.Second
	defaultMaxBackoff     = 30 * time.Second
	maxErrorBody          = 512
)

// Client posts JSON to provider endpoints.
type Client struct {
	http           *http.Client
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithBackoff sets the first retry delay and its cap.
func WithBackoff(initial, max time.Duration) Option {
	return func(c *Client) {
		if initial > 0 {
			c.initialBackoff = initial
		}
		if max > 0 {
			c.maxBackoff = max
		}
	}
}

func New(opts ...Option) *Client {
	c := &Client{
		http:           &http.Client{},
		maxRetries:     2,
		initialBackoff: defaultInitialBackoff,
		maxBackoff:     defaultMaxBackoff,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// PostJSON sends body as JSON to url and decodes a 2xx response into out.
// 429 and 5xx responses are retried with backoff; everything else fails fast.
func (c *Client) PostJSON(ctx context.Context, url string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.backoff(attempt - 1)
			slog.Warn("ai request failed, retrying",
				"attempt", attempt, "max_retries", c.maxRetries, "backoff", wait, "error", lastErr)
			select {
			case <-ctx.Done():
				return classifyContext(ctx.Err())
			case <-time.After(wait):
			}
		}

		status, respBody, err := c.do(ctx, url, headers, payload)
		if err != nil {
			if ctx.Err() != nil {
				return classifyContext(ctx.Err())
			}
			lastErr = fmt.Errorf("%w: %w", ErrRemoteFailure, err)
			continue
		}

		if status >= 200 && status < 300 {
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("%w: %w", ErrInvalidResponse, err)
			}
			return nil
		}

		lastErr = classifyStatus(status, respBody)
		if !shouldRetry(status) {
			return lastErr
		}
	}
	return lastErr
}

func (c *Client) do(ctx context.Context, url string, headers map[string]string, payload []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, respBody, nil
}

func (c *Client) backoff(attempt int) time.Duration {
	d := float64(c.initialBackoff) * math.Pow(2, float64(attempt))
	if d > float64(c.maxBackoff) {
		d = float64(c.maxBackoff)
	}
	return time.Duration(d)
}

func shouldRetry(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func classifyStatus(status int, body []byte) error {
	detail := string(body)
	if len(detail) > maxErrorBody {
		detail = detail[:maxErrorBody]
	}
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d", ErrAuthFailure, status)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: HTTP %d", ErrRateLimited, status)
	default:
		return fmt.Errorf("%w: HTTP %d: %s", ErrRemoteFailure, status, detail)
	}
}

func classifyContext(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrInferenceTimeout, err)
	}
	return err
}
