package optimization

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/aristath/frontier/pkg/formulas"
)

// Moments are the per-period mean vector and sample covariance of a return
// matrix, shared read-only by the generator and the frontier solver.
type Moments struct {
	Assets         []string
	Mean           []float64
	Cov            *mat.SymDense
	PeriodsPerYear int
}

// EstimateMoments computes row means and the unbiased sample covariance.
func EstimateMoments(m *ReturnMatrix, periodsPerYear int) (*Moments, error) {
	if m == nil || m.Data == nil {
		return nil, &ValidationError{Field: "returns", Reason: "return matrix is required"}
	}
	if periodsPerYear <= 0 {
		periodsPerYear = DefaultPeriodsPerYear
	}

	cov, err := formulas.CovarianceMatrix(m.Data)
	if err != nil {
		if errors.Is(err, formulas.ErrTooFewObservations) {
			return nil, fmt.Errorf("%w: %v", ErrInsufficientData, err)
		}
		return nil, fmt.Errorf("failed to estimate covariance: %w", err)
	}

	return &Moments{
		Assets:         m.Assets,
		Mean:           formulas.RowMeans(m.Data),
		Cov:            cov,
		PeriodsPerYear: periodsPerYear,
	}, nil
}

// NumAssets returns the dimension of the moments.
func (m *Moments) NumAssets() int {
	return len(m.Mean)
}

// Evaluate returns the annualized return, risk and Sharpe ratio of w. A zero
// risk yields an infinite or NaN Sharpe ratio, which is passed through as is.
func (m *Moments) Evaluate(w []float64, riskFree float64) Portfolio {
	periods := float64(m.PeriodsPerYear)
	mu := formulas.Dot(w, m.Mean) * periods
	variance := math.Max(formulas.QuadForm(w, m.Cov), 0)
	sigma := math.Sqrt(variance) * math.Sqrt(periods)

	return Portfolio{
		Weights: w,
		Mu:      mu,
		Sigma:   sigma,
		Sharpe:  SharpeRatio(mu, sigma, riskFree),
	}
}

// SharpeRatio returns (mu - riskFree) / sigma.
func SharpeRatio(mu, sigma, riskFree float64) float64 {
	return (mu - riskFree) / sigma
}

// MinWeights converts the latest close of each asset into the minimum
// allocation fraction that buys one unit: close / notional.
func MinWeights(lastCloses []float64, notional float64) ([]float64, error) {
	if notional <= 0 || math.IsNaN(notional) || math.IsInf(notional, 0) {
		return nil, &ValidationError{Field: "notional", Reason: "must be a positive amount"}
	}
	out := make([]float64, len(lastCloses))
	for i, c := range lastCloses {
		if c <= 0 || math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, &ValidationError{Field: "closes", Reason: fmt.Sprintf("close %d must be positive, got %v", i, c)}
		}
		out[i] = c / notional
	}
	return out, nil
}
