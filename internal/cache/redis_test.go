package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/connorodea/upscaled-quicklotz-dashboard-sub001/internal/comps"
)

// Requires a live Redis; set REDIS_TEST_ADDR to run.
func TestRedisCache_RoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	ctx := context.Background()
	c := NewRedisCache(addr, "", 0)
	defer c.Close()
	require.NoError(t, c.Ping(ctx))

	key := comps.CacheKey("  Test BRAND vacuum ")
	_, ok, err := c.Get(ctx, key+"-missing")
	require.NoError(t, err)
	assert.False(t, ok)

	want := comps.MarketStats{MedianPrice: 42, AvgPrice: 40, SoldCount: 7, P25: 30, P75: 50}
	require.NoError(t, c.Set(ctx, key, want, time.Minute))

	got, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)
}
