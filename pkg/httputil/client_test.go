package httputil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/radar/backend/pkg/logger"
)

func TestNew_Defaults(t *testing.T) {
	client := New(logger.Nop(), 5*time.Second)

	cfg := client.retryConfig
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Delay)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 5*time.Second, client.httpClient.Timeout)
}

func TestPostJSON_DecodesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Write([]byte(`{"code":0,"msg":"ok"}`))
	}))
	defer server.Close()

	var out struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	err := New(logger.Nop(), time.Second).PostJSON(context.Background(), server.URL, map[string]string{"a": "b"}, &out, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Msg)
}

func TestRetry_FixedDelayThenSuccess(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := New(logger.Nop(), time.Second).WithRetry(3, time.Millisecond)
	err := client.PostJSON(context.Background(), server.URL, nil, &map[string]interface{}{}, nil)

	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestRetry_ExhaustedOnCheckError(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.Write([]byte(`{"code":-1}`))
	}))
	defer server.Close()

	apiErr := errors.New("api error")
	client := New(logger.Nop(), time.Second).WithRetry(3, time.Millisecond)
	err := client.PostJSON(context.Background(), server.URL, nil, &map[string]interface{}{}, func() error { return apiErr })

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.ErrorIs(t, err, apiErr)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestRetry_PermanentStopsImmediately(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := New(logger.Nop(), time.Second).WithRetry(3, time.Millisecond)
	err := client.PostJSON(context.Background(), server.URL, nil, nil, nil)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestDisableRetry(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	err := New(logger.Nop(), time.Second).DisableRetry().PostJSON(context.Background(), server.URL, nil, nil, nil)

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRetriesExhausted)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestRetry_ContextCancelledDuringDelay(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := New(logger.Nop(), time.Second).WithRetry(3, time.Hour).PostJSON(ctx, server.URL, nil, nil, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRetry_DecodesFreshValueEachAttempt(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			w.Write([]byte(`{"code":1,"data":"stale"}`))
			return
		}
		w.Write([]byte(`{"code":0}`))
	}))
	defer server.Close()

	var out struct {
		Code int     `json:"code"`
		Data *string `json:"data"`
	}
	check := func() error {
		if out.Code != 0 {
			return errors.New("api error")
		}
		return nil
	}

	err := New(logger.Nop(), time.Second).WithRetry(3, time.Millisecond).
		PostJSON(context.Background(), server.URL, nil, &out, check)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
	assert.Nil(t, out.Data, "fields of a failed attempt must not leak into the result")
}

func TestIsRetryableStatus(t *testing.T) {
	tests := []struct {
		statusCode int
		want       bool
	}{
		{200, false},
		{400, false},
		{404, false},
		{429, true},
		{500, true},
		{503, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.statusCode), func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryableStatus(tt.statusCode))
		})
	}
}
