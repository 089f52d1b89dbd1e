package optimization

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ErrRunNotFound is returned when a run ID is not in the cache.
var ErrRunNotFound = errors.New("run not found")

// Request describes one optimization run. Zero counts and notional fall back
// to the service defaults; RiskFreeRate and Seed do so only when nil, so an
// explicit zero is honoured.
type Request struct {
	Tickers           []string  `json:"tickers" msgpack:"tickers"`
	Notional          float64   `json:"notional" msgpack:"notional"`
	RiskFreeRate      *float64  `json:"risk_free,omitempty" msgpack:"risk_free"`
	Portfolios        int       `json:"portfolios" msgpack:"portfolios"`
	FrontierPoints    int       `json:"frontier_points" msgpack:"frontier_points"`
	Constrained       bool      `json:"constraints" msgpack:"constraints"`
	Multiplier        bool      `json:"multiplier" msgpack:"multiplier"`
	RequireAllNonZero bool      `json:"non_zero" msgpack:"non_zero"`
	Seed              *int64    `json:"seed,omitempty" msgpack:"seed"`
	Prices            []float64 `json:"prices,omitempty" msgpack:"prices"`
}

// RunResult is the outcome of a full optimization run.
type RunResult struct {
	ID                 string            `json:"id" msgpack:"id"`
	CreatedAt          time.Time         `json:"created_at" msgpack:"created_at"`
	Request            Request           `json:"request" msgpack:"request"`
	Assets             []string          `json:"assets" msgpack:"assets"`
	MinWeights         []float64         `json:"min_weights,omitempty" msgpack:"min_weights"`
	Sampled            int               `json:"sampled" msgpack:"sampled"`
	MaxSharpe          *AllocationResult `json:"max_sharpe" msgpack:"max_sharpe"`
	MinSigma           *AllocationResult `json:"min_sigma" msgpack:"min_sigma"`
	Frontier           []FrontierRow     `json:"frontier" msgpack:"frontier"`
	Optimal            []float64         `json:"optimal" msgpack:"optimal"`
	AnchorRiskAversion float64           `json:"anchor_risk_aversion" msgpack:"anchor_risk_aversion"`
	AnchorFromGrid     bool              `json:"anchor_from_grid" msgpack:"anchor_from_grid"`
	DurationMs         int64             `json:"duration_ms" msgpack:"duration_ms"`
}

// ServiceConfig holds defaults applied to requests that leave fields empty.
type ServiceConfig struct {
	Workers        int
	PeriodsPerYear int
	Portfolios     int
	FrontierPoints int
	Notional       float64
	RiskFreeRate   float64
	Sampler        SamplerConfig
	Selector       SelectorConfig
	Frontier       FrontierConfig
}

// Service runs the complete pipeline: inputs, sampling, frontier, matching and picking.
type Service struct {
	cfg      ServiceConfig
	market   MarketData
	store    AllocationStore
	cache    RunCache
	archiver RunArchiver
	log      zerolog.Logger
}

// NewService creates a new optimization service. store, cache and archiver may be nil.
func NewService(cfg ServiceConfig, market MarketData, store AllocationStore, cache RunCache, archiver RunArchiver, log zerolog.Logger) *Service {
	if cfg.PeriodsPerYear <= 0 {
		cfg.PeriodsPerYear = DefaultPeriodsPerYear
	}
	if cfg.Portfolios <= 0 {
		cfg.Portfolios = 5000
	}
	if cfg.FrontierPoints <= 0 {
		cfg.FrontierPoints = DefaultFrontierConfig().Points
	}
	return &Service{
		cfg:      cfg,
		market:   market,
		store:    store,
		cache:    cache,
		archiver: archiver,
		log:      log.With().Str("service", "optimization").Logger(),
	}
}

func (s *Service) withDefaults(req Request) Request {
	if req.Portfolios <= 0 {
		req.Portfolios = s.cfg.Portfolios
	}
	if req.FrontierPoints <= 0 {
		req.FrontierPoints = s.cfg.FrontierPoints
	}
	if req.Notional <= 0 {
		req.Notional = s.cfg.Notional
	}
	if req.RiskFreeRate == nil {
		rf := s.cfg.RiskFreeRate
		req.RiskFreeRate = &rf
	}
	if req.Seed == nil {
		seed := time.Now().UnixNano()
		req.Seed = &seed
	}
	return req
}

// Run executes one optimization run.
func (s *Service) Run(ctx context.Context, req Request) (*RunResult, error) {
	start := time.Now()
	req = s.withDefaults(req)
	if len(req.Tickers) == 0 {
		return nil, &ValidationError{Field: "tickers", Reason: "at least one ticker is required"}
	}
	if req.Notional <= 0 {
		return nil, &ValidationError{Field: "notional", Reason: "must be a positive amount"}
	}
	if req.Prices != nil && len(req.Prices) != len(req.Tickers) {
		return nil, &ValidationError{Field: "prices", Reason: fmt.Sprintf("%d prices for %d tickers", len(req.Prices), len(req.Tickers))}
	}

	runID := uuid.New().String()
	log := s.log.With().Str("run_id", runID).Logger()
	log.Info().Strs("tickers", req.Tickers).Int("portfolios", req.Portfolios).Msg("Starting optimization run")

	// 1. Inputs
	matrix, err := s.market.ReturnMatrix(ctx, req.Tickers)
	if err != nil {
		return nil, fmt.Errorf("failed to load return matrix: %w", err)
	}
	closes, err := s.market.LatestCloses(ctx, matrix.Assets)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest closes: %w", err)
	}
	prices, err := alignPrices(req, matrix.Assets, closes)
	if err != nil {
		return nil, err
	}

	samplerCfg := s.cfg.Sampler
	samplerCfg.Constrained = req.Constrained
	samplerCfg.Multiplier = req.Multiplier
	samplerCfg.MinWeights = nil
	var minWeights []float64
	if req.Constrained {
		minWeights, err = MinWeights(closes, req.Notional)
		if err != nil {
			return nil, err
		}
		samplerCfg.MinWeights = minWeights
	}

	mom, err := EstimateMoments(matrix, s.cfg.PeriodsPerYear)
	if err != nil {
		return nil, err
	}

	// 2. Random portfolios and frontier are independent.
	generator := NewPortfolioGenerator(GeneratorConfig{
		Count:        req.Portfolios,
		Workers:      s.cfg.Workers,
		Seed:         *req.Seed,
		RiskFreeRate: *req.RiskFreeRate,
		Sampler:      samplerCfg,
	}, log)
	frontierCfg := s.cfg.Frontier
	frontierCfg.Points = req.FrontierPoints
	frontierCfg.Workers = s.cfg.Workers
	solver := NewFrontierSolver(frontierCfg, log)

	var (
		sampled  *RandomPortfolios
		frontier *Frontier
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		sampled, err = generator.Generate(egCtx, mom)
		return err
	})
	eg.Go(func() error {
		var err error
		frontier, err = solver.Solve(egCtx, mom)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	// 3. Match frontier against samples and pick named portfolios.
	rows, err := NewFrontierSelector(s.cfg.Selector, log).Select(frontier, sampled, *req.RiskFreeRate)
	if err != nil {
		return nil, err
	}

	picker := NewPortfolioPicker(PickerConfig{
		Notional:          req.Notional,
		RequireAllNonZero: req.RequireAllNonZero,
	}, log)
	maxSharpe, err := picker.MaxSharpe(sampled, matrix.Assets, prices)
	if err != nil {
		return nil, err
	}
	minSigma, err := picker.MinSigma(sampled, matrix.Assets, prices)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	for _, a := range []*AllocationResult{maxSharpe, minSigma} {
		a.ID = uuid.New().String()
		a.RunID = runID
		a.CreatedAt = now
	}

	run := &RunResult{
		ID:                 runID,
		CreatedAt:          now,
		Request:            req,
		Assets:             matrix.Assets,
		MinWeights:         minWeights,
		Sampled:            sampled.Len(),
		MaxSharpe:          maxSharpe,
		MinSigma:           minSigma,
		Frontier:           rows,
		Optimal:            frontier.Optimal,
		AnchorRiskAversion: frontier.AnchorRiskAversion,
		AnchorFromGrid:     frontier.AnchorFromGrid,
		DurationMs:         time.Since(start).Milliseconds(),
	}

	// 4. Persist
	if s.store != nil {
		if err := s.store.SaveAllocations(ctx, []*AllocationResult{maxSharpe, minSigma}); err != nil {
			return nil, fmt.Errorf("failed to save allocations: %w", err)
		}
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, runID, run); err != nil {
			log.Warn().Err(err).Msg("Failed to cache run result")
		}
	}
	if s.archiver != nil {
		if err := s.archiver.ArchiveRun(ctx, run); err != nil {
			log.Warn().Err(err).Msg("Failed to archive run result")
		}
	}

	log.Info().
		Float64("max_sharpe", maxSharpe.Sharpe).
		Float64("min_sigma", minSigma.Risk).
		Int64("duration_ms", run.DurationMs).
		Msg("Optimization run completed")

	return run, nil
}

// GetRun returns a cached run result.
func (s *Service) GetRun(ctx context.Context, id string) (*RunResult, error) {
	if s.cache == nil {
		return nil, ErrRunNotFound
	}
	var run RunResult
	found, err := s.cache.Get(ctx, id, &run)
	if err != nil {
		return nil, fmt.Errorf("failed to read cached run: %w", err)
	}
	if !found {
		return nil, ErrRunNotFound
	}
	return &run, nil
}

// alignPrices returns live prices in asset order, defaulting to the latest closes.
func alignPrices(req Request, assets []string, closes []float64) ([]float64, error) {
	if req.Prices == nil {
		return closes, nil
	}
	byTicker := make(map[string]float64, len(req.Tickers))
	for i, t := range req.Tickers {
		byTicker[t] = req.Prices[i]
	}
	out := make([]float64, len(assets))
	for i, a := range assets {
		px, ok := byTicker[a]
		if !ok {
			return nil, &ValidationError{Field: "prices", Reason: "missing price for " + a}
		}
		out[i] = px
	}
	return out, nil
}
