package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"time"

	"github.com/wonny/radar/backend/pkg/logger"
	"github.com/wonny/radar/backend/pkg/redis"
)

// ErrRetriesExhausted is returned once every attempt of a request has failed
var ErrRetriesExhausted = errors.New("retries exhausted")

// Client is a JSON HTTP client with bounded retry, quota and logging
// ⭐ SSOT: all outbound HTTP goes through this client
type Client struct {
	httpClient   *http.Client
	logger       *logger.Logger
	retryConfig  RetryConfig
	rateLimiter  *redis.RateLimiter
	rateLimitCfg *redis.RateLimitConfig
}

// RetryConfig holds the bounded retry policy. Attempts are a fixed Delay apart.
type RetryConfig struct {
	MaxAttempts int
	Delay       time.Duration
	Enabled     bool
}

// New creates a client with 3 attempts and a fixed 1s delay
func New(log *logger.Logger, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		logger:     log,
		retryConfig: RetryConfig{
			MaxAttempts: 3,
			Delay:       time.Second,
			Enabled:     true,
		},
	}
}

// WithRetry sets the attempt count and a fixed delay between attempts
func (c *Client) WithRetry(maxAttempts int, delay time.Duration) *Client {
	c.retryConfig.MaxAttempts = maxAttempts
	c.retryConfig.Delay = delay
	c.retryConfig.Enabled = true
	return c
}

// DisableRetry disables automatic retry
func (c *Client) DisableRetry() *Client {
	c.retryConfig.Enabled = false
	return c
}

// WithRateLimiter sets the rate limiter consulted before every attempt
func (c *Client) WithRateLimiter(limiter *redis.RateLimiter, cfg redis.RateLimitConfig) *Client {
	c.rateLimiter = limiter
	c.rateLimitCfg = &cfg
	return c
}

// permanentError stops the retry loop
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// StatusError is returned for non-2xx responses
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// PostJSON posts body as JSON and decodes the response into out. check, when
// non-nil, validates the decoded payload; a check error is retried like a
// transport error unless it is wrapped with Permanent.
func (c *Client) PostJSON(ctx context.Context, url string, body, out interface{}, check func() error) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	return c.do(ctx, http.MethodPost, url, payload, out, check)
}

// do executes the request with retry logic and logging
func (c *Client) do(ctx context.Context, method, url string, payload []byte, out interface{}, check func() error) error {
	attempts := 1
	if c.retryConfig.Enabled && c.retryConfig.MaxAttempts > 1 {
		attempts = c.retryConfig.MaxAttempts
	}

	delay := c.retryConfig.Delay
	startTime := time.Now()

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = c.attempt(ctx, method, url, payload, out, check)
		if lastErr == nil {
			c.logger.WithFields(map[string]interface{}{
				"method":   method,
				"url":      url,
				"attempt":  attempt,
				"duration": time.Since(startTime),
			}).Debug("HTTP request completed")
			return nil
		}

		var perm *permanentError
		if errors.As(lastErr, &perm) || ctx.Err() != nil {
			return lastErr
		}

		if attempt == attempts {
			break
		}

		c.logger.WithFields(map[string]interface{}{
			"attempt": attempt,
			"of":      attempts,
			"delay":   delay,
			"url":     url,
			"error":   lastErr.Error(),
		}).Warn("Retrying HTTP request")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	c.logger.WithFields(map[string]interface{}{
		"method":   method,
		"url":      url,
		"attempts": attempts,
		"duration": time.Since(startTime),
		"error":    lastErr.Error(),
	}).Error("HTTP request failed")

	if attempts > 1 {
		return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempts, lastErr)
	}
	return lastErr
}

// attempt performs a single round trip
func (c *Client) attempt(ctx context.Context, method, url string, payload []byte, out interface{}, check func() error) error {
	if c.rateLimiter != nil && c.rateLimitCfg != nil {
		if err := c.rateLimiter.Wait(ctx, *c.rateLimitCfg); err != nil {
			return fmt.Errorf("rate limit wait failed: %w", err)
		}
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return Permanent(fmt.Errorf("failed to create %s request: %w", method, err))
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: string(snippet)}
		if IsRetryableStatus(resp.StatusCode) {
			return statusErr
		}
		return Permanent(statusErr)
	}

	if out != nil {
		resetValue(out)
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	if check != nil {
		return check()
	}
	return nil
}

// resetValue zeroes the value out points to so an attempt never sees fields
// decoded by an earlier one
func resetValue(out interface{}) {
	v := reflect.ValueOf(out)
	if v.Kind() == reflect.Pointer && !v.IsNil() {
		v.Elem().Set(reflect.Zero(v.Elem().Type()))
	}
}

// IsRetryableStatus reports whether a status code should be retried
func IsRetryableStatus(statusCode int) bool {
	return statusCode >= 500 || statusCode == http.StatusTooManyRequests
}
