package historical

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/frontier/internal/modules/optimization"
)

func ret(v float64) *float64 { return &v }

func day(d int) time.Time {
	return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC)
}

func TestPivot(t *testing.T) {
	obs := []Observation{
		{Ticker: "BBB", Date: day(1), Close: 10},
		{Ticker: "AAA", Date: day(1), Close: 100},
		{Ticker: "AAA", Date: day(2), Close: 101, Return: ret(0.01)},
		{Ticker: "BBB", Date: day(2), Close: 11, Return: ret(0.1)},
		{Ticker: "AAA", Date: day(3), Close: 99.99, Return: ret(-0.01)},
		// BBB has no row on day 3; its latest close stays at day 2
	}

	m, closes, err := Pivot(obs)
	require.NoError(t, err)

	assert.Equal(t, []string{"AAA", "BBB"}, m.Assets)
	assert.Equal(t, []time.Time{day(2), day(3)}, m.Dates)
	assert.Equal(t, 2, m.NumPeriods())

	assert.InDelta(t, 0.01, m.Data.At(0, 0), 1e-15)
	assert.InDelta(t, -0.01, m.Data.At(0, 1), 1e-15)
	assert.InDelta(t, 0.1, m.Data.At(1, 0), 1e-15)
	assert.Equal(t, 0.0, m.Data.At(1, 1), "gap should be zero-filled")

	assert.Equal(t, []float64{99.99, 11}, closes)
}

func TestPivot_UnorderedInput(t *testing.T) {
	obs := []Observation{
		{Ticker: "AAA", Date: day(3), Close: 3, Return: ret(0.5)},
		{Ticker: "AAA", Date: day(2), Close: 2, Return: ret(1)},
	}

	m, closes, err := Pivot(obs)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day(2), day(3)}, m.Dates)
	assert.Equal(t, []float64{3}, closes, "latest close is taken at the latest date")
}

func TestPivot_NoReturns(t *testing.T) {
	_, _, err := Pivot([]Observation{{Ticker: "AAA", Date: day(1), Close: 1}})
	assert.ErrorIs(t, err, optimization.ErrInsufficientData)

	_, _, err = Pivot(nil)
	assert.ErrorIs(t, err, optimization.ErrInsufficientData)
}
