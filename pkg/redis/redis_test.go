package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/radar/backend/pkg/config"
)

func disabledClient(t *testing.T) *Client {
	t.Helper()
	client, err := New(&config.Config{Redis: config.RedisConfig{Enabled: false}})
	require.NoError(t, err)
	return client
}

func TestNew_Disabled(t *testing.T) {
	client := disabledClient(t)
	assert.False(t, client.Enabled())
	assert.NoError(t, client.Close())
}

func TestNilClientIsDisabled(t *testing.T) {
	var client *Client
	assert.False(t, client.Enabled())
}

func TestRateLimiter_DisabledAllowsEverything(t *testing.T) {
	limiter := NewRateLimiter(disabledClient(t), "radar")
	cfg := TushareRateLimit(200)

	allowed, remaining, err := limiter.Allow(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 200, remaining)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, limiter.Wait(ctx, cfg))
}

func TestTushareRateLimit(t *testing.T) {
	cfg := TushareRateLimit(120)
	assert.Equal(t, "tushare", cfg.Key)
	assert.Equal(t, 120, cfg.Limit)
	assert.Equal(t, time.Minute, cfg.Window)
}

func TestCache_DisabledIsNoop(t *testing.T) {
	cache := NewCache(disabledClient(t), "radar")
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", map[string]int{"a": 1}, time.Minute))

	var out map[string]int
	found, err := cache.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, cache.DeletePattern(ctx, "radar:*"))
}

func TestRadarKey(t *testing.T) {
	assert.Equal(t, "radar:20240105:abc", RadarKey("20240105", "abc"))
}
