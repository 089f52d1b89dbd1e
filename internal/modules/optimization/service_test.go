package optimization

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMarket struct {
	matrix *ReturnMatrix
	closes []float64
	err    error
}

func (f *fakeMarket) ReturnMatrix(ctx context.Context, tickers []string) (*ReturnMatrix, error) {
	return f.matrix, f.err
}

func (f *fakeMarket) LatestCloses(ctx context.Context, tickers []string) ([]float64, error) {
	return f.closes, nil
}

type fakeStore struct {
	saved []*AllocationResult
}

func (f *fakeStore) SaveAllocations(ctx context.Context, results []*AllocationResult) error {
	f.saved = append(f.saved, results...)
	return nil
}

type memoryCache struct {
	mu   sync.Mutex
	runs map[string]*RunResult
}

func (c *memoryCache) Get(ctx context.Context, key string, dst interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	run, ok := c.runs[key]
	if !ok {
		return false, nil
	}
	*dst.(*RunResult) = *run
	return true, nil
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.runs == nil {
		c.runs = make(map[string]*RunResult)
	}
	c.runs[key] = value.(*RunResult)
	return nil
}

type failingArchiver struct {
	calls int
}

func (a *failingArchiver) ArchiveRun(ctx context.Context, run *RunResult) error {
	a.calls++
	return errors.New("bucket unavailable")
}

// syntheticMarket builds four assets with distinct drift and volatility.
func syntheticMarket(t *testing.T) *fakeMarket {
	t.Helper()
	assets := []string{"AAA", "BBB", "CCC", "DDD"}
	rows := make([][]float64, len(assets))
	for i := range rows {
		rows[i] = make([]float64, 120)
		for d := range rows[i] {
			drift := 0.0002 * float64(i+1)
			vol := 0.004 * float64(i+1)
			rows[i][d] = drift + vol*math.Sin(float64(d*(i+2))*0.7)
		}
	}
	m, err := NewReturnMatrix(assets, rows)
	require.NoError(t, err)
	return &fakeMarket{matrix: m, closes: []float64{50, 20, 100, 10}}
}

func testServiceConfig() ServiceConfig {
	return ServiceConfig{
		Workers:        2,
		Portfolios:     400,
		FrontierPoints: 20,
		Notional:       10000,
		RiskFreeRate:   0.01,
	}
}

func TestService_Run(t *testing.T) {
	market := syntheticMarket(t)
	store := &fakeStore{}
	cache := &memoryCache{}
	archiver := &failingArchiver{}
	svc := NewService(testServiceConfig(), market, store, cache, archiver, zerolog.Nop())

	run, err := svc.Run(context.Background(), Request{
		Tickers:     []string{"AAA", "BBB", "CCC", "DDD"},
		Constrained: true,
		Seed:        ptr[int64](11),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, run.ID)
	assert.Equal(t, 400, run.Sampled)
	assert.Len(t, run.Frontier, 20)
	assert.Len(t, run.Optimal, 4)
	assert.InDeltaSlice(t, []float64{0.005, 0.002, 0.01, 0.001}, run.MinWeights, 1e-12)

	require.NotNil(t, run.MaxSharpe)
	require.NotNil(t, run.MinSigma)
	assert.Equal(t, StrategyMaxSharpe, run.MaxSharpe.Strategy)
	assert.Equal(t, StrategyMinSigma, run.MinSigma.Strategy)
	assert.Equal(t, run.ID, run.MaxSharpe.RunID)
	assert.LessOrEqual(t, run.MinSigma.Risk, run.MaxSharpe.Risk)

	// Allocations persisted, run cached, archive failure tolerated
	assert.Len(t, store.saved, 2)
	assert.Equal(t, 1, archiver.calls)

	cached, err := svc.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, cached.ID)
}

func ptr[T any](v T) *T { return &v }

func TestService_RunHonoursExplicitZeroRateAndSeed(t *testing.T) {
	market := syntheticMarket(t)
	svc := NewService(testServiceConfig(), market, nil, nil, nil, zerolog.Nop())
	tickers := []string{"AAA", "BBB", "CCC", "DDD"}

	a, err := svc.Run(context.Background(), Request{Tickers: tickers, RiskFreeRate: ptr(0.0), Seed: ptr[int64](0)})
	require.NoError(t, err)
	require.NotNil(t, a.Request.RiskFreeRate)
	require.NotNil(t, a.Request.Seed)
	assert.Zero(t, *a.Request.RiskFreeRate)
	assert.Zero(t, *a.Request.Seed)
	assert.InDelta(t, a.MaxSharpe.Return/a.MaxSharpe.Risk, a.MaxSharpe.Sharpe, 1e-9)

	b, err := svc.Run(context.Background(), Request{Tickers: tickers, RiskFreeRate: ptr(0.0), Seed: ptr[int64](0)})
	require.NoError(t, err)
	assert.Equal(t, a.MaxSharpe.Weights, b.MaxSharpe.Weights, "seed 0 is a real seed")

	// Omitted fields take the configured rate and a generated seed.
	c, err := svc.Run(context.Background(), Request{Tickers: tickers})
	require.NoError(t, err)
	require.NotNil(t, c.Request.RiskFreeRate)
	require.NotNil(t, c.Request.Seed)
	assert.Equal(t, 0.01, *c.Request.RiskFreeRate)
	assert.InDelta(t, (c.MaxSharpe.Return-0.01)/c.MaxSharpe.Risk, c.MaxSharpe.Sharpe, 1e-9)
}

func TestService_RunIsReproducibleWithSeed(t *testing.T) {
	market := syntheticMarket(t)
	svc := NewService(testServiceConfig(), market, nil, nil, nil, zerolog.Nop())

	req := Request{Tickers: []string{"AAA", "BBB", "CCC", "DDD"}, Seed: ptr[int64](5)}
	a, err := svc.Run(context.Background(), req)
	require.NoError(t, err)
	b, err := svc.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, a.MaxSharpe.Weights, b.MaxSharpe.Weights)
	assert.Equal(t, a.MinSigma.Quantities, b.MinSigma.Quantities)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestService_RunValidation(t *testing.T) {
	svc := NewService(ServiceConfig{}, syntheticMarket(t), nil, nil, nil, zerolog.Nop())

	testCases := []struct {
		name string
		req  Request
	}{
		{"no tickers", Request{Notional: 1000}},
		{"no notional", Request{Tickers: []string{"AAA"}}},
		{"price count mismatch", Request{Tickers: []string{"AAA", "BBB"}, Notional: 1000, Prices: []float64{1}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Run(context.Background(), tc.req)
			var vErr *ValidationError
			assert.ErrorAs(t, err, &vErr)
		})
	}
}

func TestService_RunPropagatesMarketErrors(t *testing.T) {
	market := &fakeMarket{err: ErrInsufficientData}
	svc := NewService(testServiceConfig(), market, nil, nil, nil, zerolog.Nop())

	_, err := svc.Run(context.Background(), Request{Tickers: []string{"AAA"}, Seed: ptr[int64](1)})
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestService_GetRunNotFound(t *testing.T) {
	svc := NewService(testServiceConfig(), syntheticMarket(t), nil, &memoryCache{}, nil, zerolog.Nop())

	_, err := svc.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)

	noCache := NewService(testServiceConfig(), syntheticMarket(t), nil, nil, nil, zerolog.Nop())
	_, err = noCache.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestAlignPrices(t *testing.T) {
	req := Request{Tickers: []string{"BBB", "AAA"}, Prices: []float64{2, 1}}
	prices, err := alignPrices(req, []string{"AAA", "BBB"}, []float64{9, 9})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, prices)

	prices, err = alignPrices(Request{}, []string{"AAA"}, []float64{9})
	require.NoError(t, err)
	assert.Equal(t, []float64{9}, prices)

	_, err = alignPrices(Request{Tickers: []string{"AAA"}, Prices: []float64{1}}, []string{"ZZZ"}, []float64{1})
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
}
