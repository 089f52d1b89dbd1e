package optimization

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
)

// SelectorConfig configures matching of sampled portfolios to frontier points.
type SelectorConfig struct {
	// Tolerance is the initial absolute tolerance on risk.
	Tolerance float64
	// Pace multiplies the tolerance after each failed match.
	Pace float64
	// MaxWidenings caps the number of tolerance increases per frontier point.
	MaxWidenings int
}

// DefaultSelectorConfig returns the default matching parameters.
func DefaultSelectorConfig() SelectorConfig {
	return SelectorConfig{
		Tolerance:    1e-2,
		Pace:         5,
		MaxWidenings: 12,
	}
}

// relTolerance mirrors the relative term of a standard isclose comparison.
const relTolerance = 1e-5

// FrontierSelector assembles the frontier weight table from sampled portfolios.
type FrontierSelector struct {
	cfg SelectorConfig
	log zerolog.Logger
}

// NewFrontierSelector creates a new selector.
func NewFrontierSelector(cfg SelectorConfig, log zerolog.Logger) *FrontierSelector {
	def := DefaultSelectorConfig()
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = def.Tolerance
	}
	if cfg.Pace <= 1 {
		cfg.Pace = def.Pace
	}
	if cfg.MaxWidenings <= 0 {
		cfg.MaxWidenings = def.MaxWidenings
	}
	return &FrontierSelector{
		cfg: cfg,
		log: log.With().Str("component", "frontier_selector").Logger(),
	}
}

// Select matches every frontier point to the highest-return sampled portfolio
// whose risk lies within tolerance of the point's risk. The tolerance starts
// at cfg.Tolerance for each point and widens geometrically until a match is
// found or MaxWidenings is exceeded.
func (s *FrontierSelector) Select(f *Frontier, sampled *RandomPortfolios, riskFree float64) ([]FrontierRow, error) {
	if f == nil || sampled == nil {
		return nil, &ValidationError{Field: "inputs", Reason: "frontier and sampled portfolios are required"}
	}
	if len(f.Returns) != len(f.Risks) {
		return nil, &ValidationError{Field: "frontier", Reason: "returns and risks differ in length"}
	}
	if sampled.Len() == 0 {
		return nil, fmt.Errorf("no sampled portfolios to match: %w", ErrNoFrontierMatch)
	}

	rows := make([]FrontierRow, 0, len(f.Risks))
	widened := 0
	for k, risk := range f.Risks {
		idx, tol, widenings := s.match(risk, sampled)
		if idx < 0 {
			return nil, fmt.Errorf("frontier point %d (risk %.6g) after %d widenings: %w",
				k, risk, widenings, ErrNoFrontierMatch)
		}
		widened += widenings

		mu := f.Returns[k]
		rows = append(rows, FrontierRow{
			Weights:   sampled.Weights[idx],
			Mu:        mu,
			Sigma:     risk,
			Sharpe:    SharpeRatio(mu, risk, riskFree),
			Sample:    idx,
			Tolerance: tol,
		})
	}

	s.log.Debug().
		Int("points", len(rows)).
		Int("widenings", widened).
		Msg("Frontier matched to sampled portfolios")

	return rows, nil
}

// match returns the index of the best sampled portfolio, the tolerance that
// produced it and the number of widenings used. idx is -1 when the cap was hit.
func (s *FrontierSelector) match(risk float64, sampled *RandomPortfolios) (idx int, tol float64, widenings int) {
	tol = s.cfg.Tolerance
	for widenings = 0; widenings <= s.cfg.MaxWidenings; widenings++ {
		bound := tol + relTolerance*math.Abs(risk)
		best := -1
		for i, sigma := range sampled.Sigmas {
			if !(math.Abs(sigma-risk) <= bound) {
				continue
			}
			if best < 0 || sampled.Mus[i] > sampled.Mus[best] {
				best = i
			}
		}
		if best >= 0 {
			return best, tol, widenings
		}
		if widenings < s.cfg.MaxWidenings {
			tol *= s.cfg.Pace
		}
	}
	return -1, tol, s.cfg.MaxWidenings
}
