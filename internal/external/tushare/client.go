package tushare

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wonny/radar/backend/pkg/config"
	"github.com/wonny/radar/backend/pkg/httputil"
	"github.com/wonny/radar/backend/pkg/logger"
	"github.com/wonny/radar/backend/pkg/redis"
)

var (
	// ErrAPI is wrapped by every non-zero vendor response code
	ErrAPI = errors.New("tushare api error")

	// ErrRetriesExhausted is returned once the bounded retry gives up
	ErrRetriesExhausted = httputil.ErrRetriesExhausted
)

// Client talks to the Tushare Pro HTTP API
// ⭐ SSOT: vendor calls are made only through this client
type Client struct {
	http    *httputil.Client
	logger  *logger.Logger
	token   string
	baseURL string
}

// Request is the vendor request envelope
type Request struct {
	APIName string                 `json:"api_name"`
	Token   string                 `json:"token"`
	Params  map[string]interface{} `json:"params"`
	Fields  string                 `json:"fields,omitempty"`
}

// Response is the vendor response envelope
type Response struct {
	RequestID string `json:"request_id"`
	Code      int    `json:"code"`
	Msg       string `json:"msg"`
	Data      *Frame `json:"data"`
}

// APIError carries a non-zero vendor response code
type APIError struct {
	APIName string
	Code    int
	Msg     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: code %d: %s", e.APIName, e.Code, e.Msg)
}

func (e *APIError) Unwrap() error { return ErrAPI }

// NewClient creates a client from config. Every call gets the configured
// bounded retry with a fixed delay and, when Redis is enabled, the shared
// per-minute quota.
func NewClient(cfg *config.Config, limiter *redis.RateLimiter, log *logger.Logger) *Client {
	httpClient := httputil.New(log, cfg.Tushare.Timeout).
		WithRetry(cfg.Tushare.RetryAttempts, cfg.Tushare.RetryDelay)
	if limiter != nil {
		httpClient = httpClient.WithRateLimiter(limiter, redis.TushareRateLimit(cfg.Tushare.RateLimit))
	}

	return New(httpClient, cfg.Tushare.BaseURL, cfg.Tushare.Token, log)
}

// New creates a client over an existing HTTP client
func New(httpClient *httputil.Client, baseURL, token string, log *logger.Logger) *Client {
	return &Client{
		http:    httpClient,
		logger:  log.WithField("module", "tushare"),
		token:   token,
		baseURL: baseURL,
	}
}

// Query calls one vendor API and returns its table. An empty table is a
// valid result.
func (c *Client) Query(ctx context.Context, apiName string, params map[string]interface{}, fields ...string) (Frame, error) {
	if params == nil {
		params = map[string]interface{}{}
	}
	req := Request{
		APIName: apiName,
		Token:   c.token,
		Params:  params,
		Fields:  strings.Join(fields, ","),
	}

	var resp Response
	check := func() error {
		if resp.Code != 0 {
			return &APIError{APIName: apiName, Code: resp.Code, Msg: resp.Msg}
		}
		return nil
	}

	if err := c.http.PostJSON(ctx, c.baseURL, req, &resp, check); err != nil {
		return Frame{}, fmt.Errorf("query %s: %w", apiName, err)
	}

	if resp.Data == nil {
		return Frame{}, nil
	}

	c.logger.WithFields(map[string]interface{}{
		"api":  apiName,
		"rows": resp.Data.Len(),
	}).Debug("Tushare query completed")

	return *resp.Data, nil
}
