package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplydesk/backend/internal/domain"
)

func TestNoopViewCacheAlwaysMisses(t *testing.T) {
	var c ViewCache = NoopViewCache{}
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, KPIKey(), domain.KPIRollup{}, time.Minute))
	var out domain.KPIRollup
	ok, err := c.Get(ctx, KPIKey(), &out)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKeysAreNamespaced(t *testing.T) {
	assert.Equal(t, "supplydesk:view:kpi", KPIKey())
	assert.Equal(t, "supplydesk:view:pivot:2024-03-15", PivotKey("2024-03-15"))
	assert.Equal(t, "supplydesk:view:periods:user-1", PeriodsKey("user-1"))
}

func TestRedisViewCacheRoundTrip(t *testing.T) {
	addr := os.Getenv("SUPPLYDESK_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set SUPPLYDESK_TEST_REDIS_ADDR to run redis integration test")
	}
	ctx := context.Background()
	c := NewRedisViewCache(addr, "", 0)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.Ping(ctx))

	key := PivotKey("test-" + time.Now().Format("150405.000000"))
	t.Cleanup(func() { _ = c.Delete(ctx, key) })

	in := domain.KPIRollup{TotalRevenue: decimal.RequireFromString("12.34")}
	require.NoError(t, c.Set(ctx, key, in, time.Minute))

	var out domain.KPIRollup
	ok, err := c.Get(ctx, key, &out)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, in.TotalRevenue.Equal(out.TotalRevenue))

	require.NoError(t, c.Delete(ctx, key))
	ok, err = c.Get(ctx, key, &out)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryViewCacheExpiresEntries(t *testing.T) {
	c := NewMemoryViewCache()
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	in := domain.SalesSummary{Period: "2024-03", Total: decimal.RequireFromString("9.5")}
	require.NoError(t, c.Set(ctx, KPIKey(), in, time.Minute))

	var out domain.SalesSummary
	ok, err := c.Get(ctx, KPIKey(), &out)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2024-03", out.Period)
	assert.True(t, in.Total.Equal(out.Total))

	now = now.Add(time.Minute)
	ok, err = c.Get(ctx, KPIKey(), &out)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestMemoryViewCacheDelete(t *testing.T) {
	c := NewMemoryViewCache()
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, PivotKey("a"), 1, 0))
	require.NoError(t, c.Set(ctx, PivotKey("b"), 2, 0))
	require.NoError(t, c.Delete(ctx, PivotKey("a"), PivotKey("missing")))
	assert.Equal(t, 1, c.Len())
}
