package optimization

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
)

// PickerConfig configures portfolio selection and share conversion.
type PickerConfig struct {
	// Notional is the total portfolio value in currency units.
	Notional float64
	// PriceDecimals is the precision prices are rounded to for notionals (default 2).
	PriceDecimals int
	// RequireAllNonZero restricts selection to portfolios holding every asset.
	RequireAllNonZero bool
}

// PortfolioPicker selects named portfolios from a sampled set and converts
// their weights into share quantities.
type PortfolioPicker struct {
	cfg PickerConfig
	log zerolog.Logger
}

// NewPortfolioPicker creates a new picker.
func NewPortfolioPicker(cfg PickerConfig, log zerolog.Logger) *PortfolioPicker {
	if cfg.PriceDecimals <= 0 {
		cfg.PriceDecimals = 2
	}
	return &PortfolioPicker{
		cfg: cfg,
		log: log.With().Str("component", "portfolio_picker").Logger(),
	}
}

// MaxSharpe selects the portfolio with the highest Sharpe ratio.
func (p *PortfolioPicker) MaxSharpe(sampled *RandomPortfolios, tickers []string, prices []float64) (*AllocationResult, error) {
	return p.pick(StrategyMaxSharpe, sampled, tickers, prices)
}

// MinSigma selects the portfolio with the lowest risk.
func (p *PortfolioPicker) MinSigma(sampled *RandomPortfolios, tickers []string, prices []float64) (*AllocationResult, error) {
	return p.pick(StrategyMinSigma, sampled, tickers, prices)
}

// Pick dispatches on the strategy name.
func (p *PortfolioPicker) Pick(strategy Strategy, sampled *RandomPortfolios, tickers []string, prices []float64) (*AllocationResult, error) {
	switch strategy {
	case StrategyMaxSharpe, StrategyMinSigma:
		return p.pick(strategy, sampled, tickers, prices)
	default:
		return nil, &ValidationError{Field: "strategy", Reason: fmt.Sprintf("unknown strategy %q", strategy)}
	}
}

func (p *PortfolioPicker) pick(strategy Strategy, sampled *RandomPortfolios, tickers []string, prices []float64) (*AllocationResult, error) {
	if err := p.validate(sampled, tickers, prices); err != nil {
		return nil, err
	}

	candidates := p.candidates(sampled)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%s with all non-zero weights: %w", strategy, ErrNoFeasiblePortfolio)
	}

	var idx int
	if strategy == StrategyMaxSharpe {
		idx = argBest(candidates, sampled.Sharpes, func(a, b float64) bool { return a > b })
	} else {
		idx = argBest(candidates, sampled.Sigmas, func(a, b float64) bool { return a < b })
	}
	if idx < 0 {
		return nil, fmt.Errorf("%s: every candidate statistic is NaN: %w", strategy, ErrNoFeasiblePortfolio)
	}

	weights := append([]float64(nil), sampled.Weights[idx]...)
	quantities, rounded, notionals, total := p.Quantities(weights, prices)

	p.log.Debug().
		Str("strategy", string(strategy)).
		Int("index", idx).
		Float64("sharpe", sampled.Sharpes[idx]).
		Float64("sigma", sampled.Sigmas[idx]).
		Float64("notional_total", total).
		Msg("Portfolio selected")

	return &AllocationResult{
		Strategy:      strategy,
		Tickers:       append([]string(nil), tickers...),
		Index:         idx,
		Weights:       weights,
		Risk:          sampled.Sigmas[idx],
		Return:        sampled.Mus[idx],
		Sharpe:        sampled.Sharpes[idx],
		Quantities:    quantities,
		Prices:        rounded,
		Notionals:     notionals,
		NotionalTotal: total,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// Quantities converts weights into share counts round(w·notional/price), and
// notionals as rounded price times quantity.
func (p *PortfolioPicker) Quantities(weights, prices []float64) (quantities []int64, rounded, notionals []float64, total float64) {
	quantities = make([]int64, len(weights))
	rounded = make([]float64, len(weights))
	notionals = make([]float64, len(weights))

	scale := math.Pow(10, float64(p.cfg.PriceDecimals))
	for i, w := range weights {
		quantities[i] = int64(math.RoundToEven(w * p.cfg.Notional / prices[i]))
		rounded[i] = math.RoundToEven(prices[i]*scale) / scale
		notionals[i] = rounded[i] * float64(quantities[i])
		total += notionals[i]
	}
	return quantities, rounded, notionals, total
}

func (p *PortfolioPicker) validate(sampled *RandomPortfolios, tickers []string, prices []float64) error {
	if sampled == nil || sampled.Len() == 0 {
		return fmt.Errorf("no sampled portfolios: %w", ErrNoFeasiblePortfolio)
	}
	if p.cfg.Notional <= 0 {
		return &ValidationError{Field: "notional", Reason: "must be a positive amount"}
	}
	n := len(sampled.Weights[0])
	if len(tickers) != n {
		return &ValidationError{Field: "tickers", Reason: fmt.Sprintf("%d tickers for %d assets", len(tickers), n)}
	}
	if len(prices) != n {
		return &ValidationError{Field: "prices", Reason: fmt.Sprintf("%d prices for %d assets", len(prices), n)}
	}
	for i, px := range prices {
		if !(px > 0) || math.IsInf(px, 0) {
			return &ValidationError{Field: "prices", Reason: fmt.Sprintf("price for %s must be positive", tickers[i])}
		}
	}
	return nil
}

func (p *PortfolioPicker) candidates(sampled *RandomPortfolios) []int {
	out := make([]int, 0, sampled.Len())
	for i, w := range sampled.Weights {
		if p.cfg.RequireAllNonZero && countNonZero(w) != len(w) {
			continue
		}
		out = append(out, i)
	}
	return out
}

// argBest returns the first candidate whose value beats every other under
// better. NaN values never win; infinite values compare normally.
func argBest(candidates []int, values []float64, better func(a, b float64) bool) int {
	best := -1
	for _, i := range candidates {
		v := values[i]
		if math.IsNaN(v) {
			continue
		}
		if best < 0 || better(v, values[best]) {
			best = i
		}
	}
	return best
}
