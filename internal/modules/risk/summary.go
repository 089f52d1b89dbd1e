package risk

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/aristath/frontier/pkg/formulas"
)

// SummaryConfig configures the per-asset risk bundle.
type SummaryConfig struct {
	PeriodsPerYear  int
	ConfidenceLevel float64
	// Horizon is the VaR horizon in periods.
	Horizon float64
	// Value is the position value VaR and tail loss are expressed against.
	Value float64
	// TailCount is the number of worst returns averaged for tail loss.
	TailCount int
	// Accuracy selects the EWMA smoothing table.
	Accuracy float64
}

// DefaultSummaryConfig returns one-day 95% measures on a 1000 unit position.
func DefaultSummaryConfig() SummaryConfig {
	return SummaryConfig{
		PeriodsPerYear:  252,
		ConfidenceLevel: 0.95,
		Horizon:         1,
		Value:           1000,
		TailCount:       10,
		Accuracy:        0.01,
	}
}

// Summary bundles the risk measures of a single price series.
type Summary struct {
	Ticker            string     `json:"ticker"`
	Observations      int        `json:"observations"`
	LastClose         float64    `json:"last_close"`
	MeanReturn        float64    `json:"mean_return"`
	AnnualizedReturn  float64    `json:"annualized_return"`
	AnnualizedVol     float64    `json:"annualized_volatility"`
	EWMA              EWMAResult `json:"ewma"`
	VaR               VaRResult  `json:"var"`
	TailLoss          TailLoss   `json:"tail_loss"`
	MaxDrawdown       float64    `json:"max_drawdown"`
	DownsideDeviation float64    `json:"downside_deviation"`
	UpsidePotential   float64    `json:"upside_potential"`
}

// Summarize computes the risk bundle of closes in ascending date order.
func Summarize(ticker string, closes []float64, cfg SummaryConfig) (*Summary, error) {
	if len(closes) < 3 {
		return nil, fmt.Errorf("%s has %d prices, need 3: %w", ticker, len(closes), ErrTooFewPrices)
	}
	def := DefaultSummaryConfig()
	if cfg.PeriodsPerYear <= 0 {
		cfg.PeriodsPerYear = def.PeriodsPerYear
	}
	if cfg.ConfidenceLevel == 0 {
		cfg.ConfidenceLevel = def.ConfidenceLevel
	}
	if cfg.Horizon <= 0 {
		cfg.Horizon = def.Horizon
	}
	if cfg.Value <= 0 {
		cfg.Value = def.Value
	}
	if cfg.TailCount <= 0 {
		cfg.TailCount = def.TailCount
	}
	if cfg.Accuracy == 0 {
		cfg.Accuracy = def.Accuracy
	}

	returns := formulas.CalculateReturns(closes)
	periods := float64(cfg.PeriodsPerYear)
	mean := formulas.Mean(returns)

	ewma, err := EWMA(closes, cfg.PeriodsPerYear, cfg.Accuracy)
	if err != nil {
		return nil, err
	}

	// VaR over the horizon from the daily std scaled to the nominal year.
	pvar, err := ParametricVaR(ParametricVaRInput{
		Std:             formulas.StdDev(returns) * math.Sqrt(periods),
		T:               cfg.Horizon,
		ConfidenceLevel: cfg.ConfidenceLevel,
		Mu:              mean * periods,
		H:               periods,
		Value:           cfg.Value,
	})
	if err != nil {
		return nil, err
	}

	etl, err := ExpectedTailLoss(returns, cfg.TailCount, cfg.Value)
	if err != nil {
		return nil, err
	}

	mdd, err := MaxDrawdown(closes)
	if err != nil {
		return nil, err
	}

	return &Summary{
		Ticker:            ticker,
		Observations:      len(closes),
		LastClose:         closes[len(closes)-1],
		MeanReturn:        mean,
		AnnualizedReturn:  mean * periods,
		AnnualizedVol:     formulas.AnnualizedVolatility(returns, cfg.PeriodsPerYear),
		EWMA:              ewma,
		VaR:               pvar,
		TailLoss:          etl,
		MaxDrawdown:       mdd,
		DownsideDeviation: math.Sqrt(LowerPartialMoment(returns, 0, 2)),
		UpsidePotential:   HigherPartialMoment(returns, 0, 1),
	}, nil
}

// PriceSource loads close series.
type PriceSource interface {
	Closes(ctx context.Context, ticker string, limit int) ([]float64, error)
}

// Service computes risk summaries from stored price history.
type Service struct {
	prices   PriceSource
	cfg      SummaryConfig
	lookback int
	log      zerolog.Logger
}

// NewService creates a new risk service reading up to lookback closes per
// asset (all history when lookback <= 0).
func NewService(prices PriceSource, cfg SummaryConfig, lookback int, log zerolog.Logger) *Service {
	return &Service{
		prices:   prices,
		cfg:      cfg,
		lookback: lookback,
		log:      log.With().Str("service", "risk").Logger(),
	}
}

// Summary loads the history of ticker and computes its risk bundle.
func (s *Service) Summary(ctx context.Context, ticker string) (*Summary, error) {
	closes, err := s.prices.Closes(ctx, ticker, s.lookback)
	if err != nil {
		return nil, fmt.Errorf("failed to load closes for %s: %w", ticker, err)
	}
	summary, err := Summarize(ticker, closes, s.cfg)
	if err != nil {
		return nil, err
	}
	s.log.Debug().Str("ticker", ticker).Int("observations", summary.Observations).Msg("Risk summary computed")
	return summary, nil
}
