package risk

import (
	"fmt"
	"math"
	"sort"

	"github.com/aristath/frontier/pkg/formulas"
)

// Observation counts per smoothing parameter (0.90 ... 0.99) at which the
// weights omitted from a finite window fall below the target accuracy.
var ewmaAccuracyTable = map[float64][]int{
	0.01:   {44, 49, 55, 63, 74, 90, 113, 151, 228, 458},
	0.001:  {66, 73, 83, 95, 112, 135, 169, 227, 342},
	0.0001: {87, 98, 110, 127, 149, 180, 226, 302, 456, 916},
}

// EWMAResult is an exponentially weighted volatility estimate.
type EWMAResult struct {
	Lambda         float64 `json:"lambda"`
	VarianceDaily  float64 `json:"variance_ewma_daily"`
	StdDaily       float64 `json:"std_ewma_daily"`
	VarianceYearly float64 `json:"variance_ewma_yearly"`
	StdYearly      float64 `json:"std_ewma_yearly"`
}

// EWMALambda picks the smoothing parameter for n observations at the given
// accuracy: the lambda of the smallest table entry >= n, or 0.99 beyond the table.
func EWMALambda(n int, accuracy float64) (float64, error) {
	bounds, ok := ewmaAccuracyTable[accuracy]
	if !ok {
		return 0, fmt.Errorf("accuracy %v not in [0.01, 0.001, 0.0001]: %w", accuracy, ErrInvalidInput)
	}
	if n > bounds[len(bounds)-1] {
		return 0.99, nil
	}
	idx := sort.SearchInts(bounds, n)
	return float64(90+idx) / 100, nil
}

// EWMA estimates volatility from a price series using log returns weighted
// (1-λ)λ^(d-1), the newest return taking d = 1.
func EWMA(prices []float64, periodsPerYear int, accuracy float64) (EWMAResult, error) {
	if len(prices) < 2 {
		return EWMAResult{}, fmt.Errorf("ewma needs at least 2 prices: %w", ErrTooFewPrices)
	}
	if periodsPerYear <= 0 {
		periodsPerYear = 252
	}
	lambda, err := EWMALambda(len(prices), accuracy)
	if err != nil {
		return EWMAResult{}, err
	}

	returns := formulas.LogReturns(prices)
	variance := 0.0
	for i, u := range returns {
		age := len(returns) - i // newest has age 1
		variance += (1 - lambda) * math.Pow(lambda, float64(age-1)) * u * u
	}

	std := math.Sqrt(variance)
	yearly := std * math.Sqrt(float64(periodsPerYear))
	return EWMAResult{
		Lambda:         lambda,
		VarianceDaily:  variance,
		StdDaily:       std,
		VarianceYearly: yearly * yearly,
		StdYearly:      yearly,
	}, nil
}
