package historical

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/frontier/internal/modules/optimization"
	testingpkg "github.com/aristath/frontier/internal/testing"
)

func newRepo(t *testing.T) *PriceRepository {
	t.Helper()
	db, cleanup := testingpkg.NewTestDB(t, "history")
	t.Cleanup(cleanup)
	return NewPriceRepository(db.Conn(), zerolog.Nop())
}

func TestPriceRepository_UpsertComputesReturns(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	err := repo.Upsert(ctx, "AAA", []DailyPrice{
		{Date: "2024-01-03", Close: 110},
		{Date: "2024-01-02", Close: 100},
	})
	require.NoError(t, err)

	series, err := repo.Series(ctx, "AAA", 0)
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, "2024-01-02", series[0].Date)
	assert.Nil(t, series[0].PctChange)
	require.NotNil(t, series[1].PctChange)
	assert.InDelta(t, 0.1, *series[1].PctChange, 1e-12)

	// Backfilling an earlier date updates the following return
	require.NoError(t, repo.Upsert(ctx, "AAA", []DailyPrice{{Date: "2024-01-01", Close: 50}}))
	series, err = repo.Series(ctx, "AAA", 0)
	require.NoError(t, err)
	require.Len(t, series, 3)
	require.NotNil(t, series[1].PctChange)
	assert.InDelta(t, 1.0, *series[1].PctChange, 1e-12)
}

func TestPriceRepository_UpsertValidation(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	assert.Error(t, repo.Upsert(ctx, "", []DailyPrice{{Date: "2024-01-02", Close: 1}}))
	assert.Error(t, repo.Upsert(ctx, "AAA", []DailyPrice{{Date: "02/01/2024", Close: 1}}))
	assert.Error(t, repo.Upsert(ctx, "AAA", []DailyPrice{{Date: "2024-01-02", Close: 0}}))

	// Failed upserts leave nothing behind
	series, err := repo.Series(ctx, "AAA", 0)
	require.NoError(t, err)
	assert.Empty(t, series)
}

func TestPriceRepository_SeriesLimit(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "history")
	defer cleanup()
	testingpkg.SeedPriceFixtures(t, db)
	repo := NewPriceRepository(db.Conn(), zerolog.Nop())

	closes, err := repo.Closes(context.Background(), "AAA", 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{107, 108, 110}, closes)

	tickers, err := repo.Tickers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA", "BBB", "CCC"}, tickers)
}

func TestPriceRepository_MarketData(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "history")
	defer cleanup()
	testingpkg.SeedPriceFixtures(t, db)
	repo := NewPriceRepository(db.Conn(), zerolog.Nop())
	ctx := context.Background()

	var _ optimization.MarketData = repo

	m, err := repo.ReturnMatrix(ctx, []string{"CCC", "AAA", "BBB"})
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA", "BBB", "CCC"}, m.Assets)
	assert.Equal(t, 9, m.NumPeriods())
	assert.InDelta(t, 0.01, m.Data.At(0, 0), 1e-12)

	closes, err := repo.LatestCloses(ctx, m.Assets)
	require.NoError(t, err)
	assert.Equal(t, []float64{110, 51.9, 23.5}, closes)

	_, err = repo.ReturnMatrix(ctx, []string{"AAA", "ZZZ"})
	assert.ErrorIs(t, err, optimization.ErrInsufficientData)
	assert.True(t, strings.Contains(err.Error(), "ZZZ"))

	_, err = repo.LatestCloses(ctx, []string{"ZZZ"})
	assert.ErrorIs(t, err, optimization.ErrInsufficientData)
}

func TestPriceRepository_ImportCSV(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	csv := "Ticker,Date,Close\n" +
		"AAA,2024-01-02,10\n" +
		"BBB,2024-01-02,20\n" +
		"AAA,2024-01-03,11\n"

	summary, err := repo.ImportCSV(ctx, strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Rows)
	assert.Equal(t, map[string]int{"AAA": 2, "BBB": 1}, summary.Tickers)

	closes, err := repo.LatestCloses(ctx, []string{"AAA", "BBB"})
	require.NoError(t, err)
	assert.Equal(t, []float64{11, 20}, closes)
}

func TestPriceRepository_ImportCSVErrors(t *testing.T) {
	repo := newRepo(t)

	testCases := []struct {
		name string
		csv  string
	}{
		{"empty", ""},
		{"missing column", "date,ticker\n2024-01-02,AAA\n"},
		{"bad date", "date,ticker,close\n2024/01/02,AAA,1\n"},
		{"bad close", "date,ticker,close\n2024-01-02,AAA,abc\n"},
		{"empty ticker", "date,ticker,close\n2024-01-02,,1\n"},
		{"header only", "date,ticker,close\n"},
		{"ragged row", "date,ticker,close\n2024-01-02,AAA\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := repo.ImportCSV(context.Background(), strings.NewReader(tc.csv))
			assert.Error(t, err)
		})
	}
}
