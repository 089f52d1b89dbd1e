package risk

import (
	"fmt"
	"math"
	"sort"

	"github.com/aristath/frontier/pkg/formulas"
)

// NormalizePrices expresses each return as a price level relative to base:
// base followed by base·(1+r) for every r. Levels do not compound.
func NormalizePrices(returns []float64, base float64) []float64 {
	out := make([]float64, 0, len(returns)+1)
	out = append(out, base)
	for _, r := range returns {
		out = append(out, base*(1+r))
	}
	return out
}

// Beta is the sensitivity of asset returns to market returns: cov(a, m) / var(m).
func Beta(asset, market []float64) (float64, error) {
	if len(asset) != len(market) {
		return 0, fmt.Errorf("%d asset returns for %d market returns: %w", len(asset), len(market), ErrInvalidInput)
	}
	if len(market) < 2 {
		return 0, fmt.Errorf("beta needs at least 2 returns: %w", ErrTooFewPrices)
	}
	v := formulas.Variance(market)
	if v == 0 {
		return 0, fmt.Errorf("market returns have zero variance: %w", ErrInvalidInput)
	}
	return formulas.Covariance(asset, market) / v, nil
}

// LowerPartialMoment is the mean of max(threshold - r, 0)^order.
func LowerPartialMoment(returns []float64, threshold float64, order int) float64 {
	if len(returns) == 0 {
		return 0
	}
	total := 0.0
	for _, r := range returns {
		total += math.Pow(math.Max(threshold-r, 0), float64(order))
	}
	return total / float64(len(returns))
}

// HigherPartialMoment is the mean of max(r - threshold, 0)^order.
func HigherPartialMoment(returns []float64, threshold float64, order int) float64 {
	if len(returns) == 0 {
		return 0
	}
	total := 0.0
	for _, r := range returns {
		total += math.Pow(math.Max(r-threshold, 0), float64(order))
	}
	return total / float64(len(returns))
}

// TailLoss is the expected tail loss as a return and in currency.
type TailLoss struct {
	Percentage float64 `json:"percentage_etl"`
	Financial  float64 `json:"financial_etl"`
}

// ExpectedTailLoss averages the nth lowest returns. When fewer than nth
// returns exist, all of them are averaged.
func ExpectedTailLoss(returns []float64, nth int, value float64) (TailLoss, error) {
	if len(returns) == 0 {
		return TailLoss{}, fmt.Errorf("tail loss needs returns: %w", ErrTooFewPrices)
	}
	if nth < 1 {
		return TailLoss{}, fmt.Errorf("nth lowest must be positive: %w", ErrInvalidInput)
	}
	sorted := append([]float64(nil), returns...)
	sort.Float64s(sorted)
	if nth > len(sorted) {
		nth = len(sorted)
	}
	pct := formulas.Mean(sorted[:nth])
	return TailLoss{Percentage: pct, Financial: pct * value}, nil
}

// ExpectedTailLossFromPrices is ExpectedTailLoss over simple returns of prices.
func ExpectedTailLossFromPrices(prices []float64, nth int, value float64) (TailLoss, error) {
	if len(prices) < 2 {
		return TailLoss{}, fmt.Errorf("tail loss needs at least 2 prices: %w", ErrTooFewPrices)
	}
	return ExpectedTailLoss(formulas.CalculateReturns(prices), nth, value)
}

// Decomposition splits portfolio variance into market and idiosyncratic parts.
type Decomposition struct {
	Variance   float64 `json:"variance_portfolio"`
	Systematic float64 `json:"systematic_risk"`
	Specific   float64 `json:"specific_risk"`
}

// SystematicSpecificRisk computes β_p²·σ_m² with β_p = w·β, and the remainder.
func SystematicSpecificRisk(variance, marketStd float64, weights, betas []float64) (Decomposition, error) {
	if len(weights) != len(betas) {
		return Decomposition{}, fmt.Errorf("%d weights for %d betas: %w", len(weights), len(betas), ErrInvalidInput)
	}
	betaP := formulas.Dot(weights, betas)
	systematic := betaP * betaP * marketStd * marketStd
	return Decomposition{
		Variance:   variance,
		Systematic: systematic,
		Specific:   variance - systematic,
	}, nil
}
