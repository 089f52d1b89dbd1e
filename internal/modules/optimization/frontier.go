package optimization

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/frontier/pkg/formulas"
)

// FrontierConfig configures the efficient frontier sweep.
type FrontierConfig struct {
	// Points is the number of risk-aversion grid points.
	Points int
	// Workers bounds concurrent QP solves.
	Workers int
	// Tolerance is the QP optimality tolerance on the projected gradient step.
	Tolerance float64
	// MaxIterations bounds each QP solve.
	MaxIterations int
}

// DefaultFrontierConfig returns the default sweep configuration.
func DefaultFrontierConfig() FrontierConfig {
	return FrontierConfig{
		Points:        1000,
		Tolerance:     1e-10,
		MaxIterations: 100000,
	}
}

// FrontierSolver traces the long-only efficient frontier.
type FrontierSolver struct {
	cfg FrontierConfig
	log zerolog.Logger
}

// NewFrontierSolver creates a new frontier solver.
func NewFrontierSolver(cfg FrontierConfig, log zerolog.Logger) *FrontierSolver {
	def := DefaultFrontierConfig()
	if cfg.Points <= 0 {
		cfg.Points = def.Points
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = def.Tolerance
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = def.MaxIterations
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	return &FrontierSolver{
		cfg: cfg,
		log: log.With().Str("component", "frontier_solver").Logger(),
	}
}

// RiskAversionGrid returns the log-spaced grid 10^(5t/points - 1) for t in [0, points).
func RiskAversionGrid(points int) []float64 {
	grid := make([]float64, points)
	for t := range grid {
		grid[t] = math.Pow(10, 5*float64(t)/float64(points)-1)
	}
	return grid
}

// Solve runs the QP sweep and re-solves at the anchor risk aversion implied by
// a quadratic fit of risk against return. Any non-converging grid point aborts
// the sweep with a *SolverError.
func (s *FrontierSolver) Solve(ctx context.Context, mom *Moments) (*Frontier, error) {
	if mom == nil {
		return nil, &ValidationError{Field: "moments", Reason: "moments are required"}
	}
	if s.cfg.Points < 3 {
		return nil, &ValidationError{Field: "points", Reason: "at least 3 grid points are required"}
	}

	qp, err := newSimplexQP(mom.Cov, mom.Mean, s.cfg.Tolerance, s.cfg.MaxIterations)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare qp: %w", err)
	}

	grid := RiskAversionGrid(s.cfg.Points)
	f := &Frontier{
		RiskAversion: grid,
		Returns:      make([]float64, len(grid)),
		Risks:        make([]float64, len(grid)),
		Weights:      make([][]float64, len(grid)),
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(s.cfg.Workers)
	for t, lambda := range grid {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			w, iters, err := qp.solve(lambda)
			if err != nil {
				return &SolverError{GridIndex: t, RiskAversion: lambda, Iterations: iters, Err: err}
			}
			p := mom.Evaluate(w, 0)
			f.Weights[t] = w
			f.Returns[t] = p.Mu
			f.Risks[t] = p.Sigma
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	if err := s.solveAnchor(qp, f); err != nil {
		return nil, err
	}

	s.log.Debug().
		Int("points", len(grid)).
		Float64("anchor_risk_aversion", f.AnchorRiskAversion).
		Bool("anchor_from_grid", f.AnchorFromGrid).
		Msg("Efficient frontier computed")

	return f, nil
}

func (s *FrontierSolver) solveAnchor(qp *simplexQP, f *Frontier) error {
	level, ok := AnchorRiskAversion(f.Returns, f.Risks)
	if !ok {
		last := len(f.RiskAversion) - 1
		s.log.Warn().
			Float64("risk_aversion", f.RiskAversion[last]).
			Msg("Frontier fit gave no usable anchor, using most risk-averse grid point")
		f.Optimal = append([]float64(nil), f.Weights[last]...)
		f.AnchorRiskAversion = f.RiskAversion[last]
		f.AnchorFromGrid = true
		return nil
	}

	w, iters, err := qp.solve(level)
	if err != nil {
		return &SolverError{GridIndex: -1, RiskAversion: level, Iterations: iters, Err: err}
	}
	f.Optimal = w
	f.AnchorRiskAversion = level
	return nil
}

// AnchorRiskAversion fits risk = m0·r² + m1·r + m2 and returns sqrt(m2/m0).
// ok is false when the fit fails or the ratio is not a positive finite number.
func AnchorRiskAversion(returns, risks []float64) (float64, bool) {
	coef, err := formulas.PolyFit(returns, risks, 2)
	if err != nil || coef[0] == 0 {
		return 0, false
	}
	ratio := coef[2] / coef[0]
	if !(ratio > 0) || math.IsInf(ratio, 0) {
		return 0, false
	}
	return math.Sqrt(ratio), true
}
