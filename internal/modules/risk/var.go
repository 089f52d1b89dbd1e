package risk

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/aristath/frontier/pkg/formulas"
)

// ParametricVaRInput holds the parameters of a normal VaR estimate.
type ParametricVaRInput struct {
	// Std is the standard deviation of returns over the nominal horizon H.
	Std float64
	// T is the number of periods the VaR covers.
	T float64
	// ConfidenceLevel is 1 - alpha, e.g. 0.95.
	ConfidenceLevel float64
	// Mu is the expected return over H.
	Mu float64
	// H is the nominal horizon used for scaling (default 252).
	H float64
	// Rho is the return autocorrelation; zero disables the correction.
	Rho float64
	// Value is the portfolio value in currency (default 1000).
	Value float64
}

// VaRResult is a VaR estimate in currency and as a fraction of value.
type VaRResult struct {
	Financial       float64 `json:"financial_var"`
	Percentage      float64 `json:"percentual_var"`
	DriftAdjustment float64 `json:"drifted_adjustment_to_var"`
}

func (in *ParametricVaRInput) validate() error {
	if in.H == 0 {
		in.H = 252
	}
	if in.Value == 0 {
		in.Value = 1000
	}
	if !(in.ConfidenceLevel > 0 && in.ConfidenceLevel < 1) {
		return fmt.Errorf("confidence level %v outside (0, 1): %w", in.ConfidenceLevel, ErrInvalidInput)
	}
	if in.Std < 0 || in.T <= 0 || in.H <= 0 {
		return fmt.Errorf("std, t and h must be positive: %w", ErrInvalidInput)
	}
	if in.Rho == 1 {
		return fmt.Errorf("autocorrelation of 1 has no scaled horizon: %w", ErrInvalidInput)
	}
	return nil
}

// scaledHorizon returns the variance scaling factor of the horizon. With
// autocorrelation ρ the horizon is h + 2ρ(1-ρ)⁻²((h-1)(1-ρ) - ρ(1-ρ^(h-1))).
func (in ParametricVaRInput) scaledHorizon() float64 {
	if in.Rho == 0 {
		return in.T / in.H
	}
	rho, h := in.Rho, in.H
	return h + 2*rho*math.Pow(1-rho, -2)*((h-1)*(1-rho)-rho*(1-math.Pow(rho, h-1)))
}

// ParametricVaR computes the normal linear VaR σ·sqrt(h)·z - (t/h)·μ.
func ParametricVaR(in ParametricVaRInput) (VaRResult, error) {
	if err := in.validate(); err != nil {
		return VaRResult{}, err
	}
	z := distuv.UnitNormal.Quantile(in.ConfidenceLevel)
	gross := in.Std * math.Sqrt(in.scaledHorizon()) * z
	drift := (in.T / in.H) * in.Mu
	pct := gross - drift
	return VaRResult{
		Financial:       in.Value * pct,
		Percentage:      pct,
		DriftAdjustment: gross - pct,
	}, nil
}

// EquityVaR scales the parametric VaR by the exposure-weighted portfolio beta.
// in.Value is ignored; the portfolio value is the sum of exposures.
func EquityVaR(in ParametricVaRInput, betas, exposures []float64) (VaRResult, error) {
	if len(betas) != len(exposures) || len(betas) == 0 {
		return VaRResult{}, fmt.Errorf("%d betas for %d exposures: %w", len(betas), len(exposures), ErrInvalidInput)
	}
	total := 0.0
	for _, e := range exposures {
		total += e
	}
	if total == 0 {
		return VaRResult{}, fmt.Errorf("exposures sum to zero: %w", ErrInvalidInput)
	}
	betaP := formulas.Dot(betas, exposures) / total

	base, err := ParametricVaR(in)
	if err != nil {
		return VaRResult{}, err
	}
	pct := base.Percentage * betaP
	return VaRResult{
		Financial:       pct * total,
		Percentage:      pct,
		DriftAdjustment: base.DriftAdjustment * betaP,
	}, nil
}

// InterestRateVaRInput describes a cash-flow map of rate-sensitive positions.
type InterestRateVaRInput struct {
	ConfidenceLevel float64
	// PV01 is the present value of a basis point per vertex.
	PV01 []float64
	// YieldVols is the volatility of each vertex yield.
	YieldVols []float64
	// Correlation is the flat correlation between vertex yields.
	Correlation float64
	T           float64
	H           float64
	Mu          float64
}

// InterestRateVaR computes z·sqrt(p'Σp) + μ·Σp where Σ has y_i² on the
// diagonal and ρ·y_i·y_j elsewhere, scaled by t/h.
func InterestRateVaR(in InterestRateVaRInput) (float64, error) {
	n := len(in.PV01)
	if n == 0 || len(in.YieldVols) != n {
		return 0, fmt.Errorf("%d pv01 entries for %d yields: %w", n, len(in.YieldVols), ErrInvalidInput)
	}
	if !(in.ConfidenceLevel > 0 && in.ConfidenceLevel < 1) || in.T <= 0 || in.H <= 0 {
		return 0, fmt.Errorf("confidence, t and h out of range: %w", ErrInvalidInput)
	}

	scale := in.T / in.H
	cov := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := in.Correlation * in.YieldVols[i] * in.YieldVols[j]
			if i == j {
				v = in.YieldVols[i] * in.YieldVols[i]
			}
			cov.SetSym(i, j, scale*v)
		}
	}

	z := distuv.UnitNormal.Quantile(in.ConfidenceLevel)
	variance := formulas.QuadForm(in.PV01, cov)
	drift := 0.0
	for _, p := range in.PV01 {
		drift += in.Mu * p
	}
	return z*math.Sqrt(math.Max(variance, 0)) + drift, nil
}
