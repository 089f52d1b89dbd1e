package runcache

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/frontier/internal/modules/optimization"
	testingpkg "github.com/aristath/frontier/internal/testing"
)

func newCache(t *testing.T, ttl time.Duration) *Cache {
	t.Helper()
	db, cleanup := testingpkg.NewTestDB(t, "cache")
	t.Cleanup(cleanup)
	return New(db.Conn(), ttl, zerolog.Nop())
}

func TestCache_RoundTripRunResult(t *testing.T) {
	c := newCache(t, time.Hour)
	ctx := context.Background()

	created := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)
	run := &optimization.RunResult{
		ID:        "run-1",
		CreatedAt: created,
		Assets:    []string{"AAA", "BBB"},
		Sampled:   100,
		MaxSharpe: &optimization.AllocationResult{
			Strategy:   optimization.StrategyMaxSharpe,
			Weights:    []float64{0.4, 0.6},
			Quantities: []int64{4, 6},
		},
		Frontier: []optimization.FrontierRow{{Weights: []float64{0.5, 0.5}, Mu: 0.1, Sigma: 0.2, Sample: 3}},
		Optimal:  []float64{0.3, 0.7},
	}
	require.NoError(t, c.Set(ctx, run.ID, run))

	var got optimization.RunResult
	found, err := c.Get(ctx, "run-1", &got)
	require.NoError(t, err)
	require.True(t, found)

	assert.Equal(t, run.Assets, got.Assets)
	assert.Equal(t, 100, got.Sampled)
	assert.True(t, got.CreatedAt.Equal(created))
	require.NotNil(t, got.MaxSharpe)
	assert.Equal(t, []int64{4, 6}, got.MaxSharpe.Quantities)
	assert.Equal(t, run.Frontier, got.Frontier)
	assert.Nil(t, got.MinSigma)
}

func TestCache_Miss(t *testing.T) {
	c := newCache(t, time.Hour)

	var got optimization.RunResult
	found, err := c.Get(context.Background(), "missing", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCache_ExpiryAndPurge(t *testing.T) {
	c := newCache(t, time.Minute)
	ctx := context.Background()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "a", map[string]int{"x": 1}))
	require.NoError(t, c.Set(ctx, "b", map[string]int{"x": 2}))

	var got map[string]int
	found, err := c.Get(ctx, "a", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 1, got["x"])

	// Refreshing b extends its expiry
	now = now.Add(30 * time.Second)
	require.NoError(t, c.Set(ctx, "b", map[string]int{"x": 3}))

	now = now.Add(45 * time.Second)
	found, err = c.Get(ctx, "a", &got)
	require.NoError(t, err)
	assert.False(t, found, "a expired")

	removed, err := c.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	got = nil
	found, err = c.Get(ctx, "b", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 3, got["x"])
}

func TestNew_DefaultTTL(t *testing.T) {
	c := New(nil, 0, zerolog.Nop())
	assert.Equal(t, DefaultTTL, c.ttl)
}
