package optimization

import (
	"context"
	"math/rand"
	"runtime"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// GeneratorConfig configures random portfolio generation.
type GeneratorConfig struct {
	Count        int
	Workers      int
	Seed         int64
	RiskFreeRate float64
	Sampler      SamplerConfig
}

// PortfolioGenerator draws random portfolios and evaluates them against a set
// of moments.
type PortfolioGenerator struct {
	cfg GeneratorConfig
	log zerolog.Logger
}

// NewPortfolioGenerator creates a new generator.
func NewPortfolioGenerator(cfg GeneratorConfig, log zerolog.Logger) *PortfolioGenerator {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	return &PortfolioGenerator{
		cfg: cfg,
		log: log.With().Str("component", "portfolio_generator").Logger(),
	}
}

// Generate samples cfg.Count portfolios. Work is split across workers, each
// with its own random source seeded from Seed+worker; results are concatenated
// in worker order so the output only depends on Seed, Count and Workers.
func (g *PortfolioGenerator) Generate(ctx context.Context, mom *Moments) (*RandomPortfolios, error) {
	if mom == nil {
		return nil, &ValidationError{Field: "moments", Reason: "moments are required"}
	}
	if g.cfg.Count <= 0 {
		return nil, &ValidationError{Field: "count", Reason: "must request at least one portfolio"}
	}

	sampler, err := NewWeightSampler(mom.NumAssets(), g.cfg.Sampler)
	if err != nil {
		return nil, err
	}

	workers := g.cfg.Workers
	if workers > g.cfg.Count {
		workers = g.cfg.Count
	}

	chunks := make([]*RandomPortfolios, workers)
	fallbacks := make([]int, workers)

	eg, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		n := g.cfg.Count / workers
		if w < g.cfg.Count%workers {
			n++
		}
		eg.Go(func() error {
			rng := rand.New(rand.NewSource(g.cfg.Seed + int64(w)))
			out := &RandomPortfolios{
				Mus:     make([]float64, 0, n),
				Sigmas:  make([]float64, 0, n),
				Sharpes: make([]float64, 0, n),
				Weights: make([][]float64, 0, n),
			}
			for i := 0; i < n; i++ {
				if i%256 == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				weights, outcome := sampler.SampleWithOutcome(rng)
				if outcome.State == StateFallback {
					fallbacks[w]++
				}
				p := mom.Evaluate(weights, g.cfg.RiskFreeRate)
				out.Mus = append(out.Mus, p.Mu)
				out.Sigmas = append(out.Sigmas, p.Sigma)
				out.Sharpes = append(out.Sharpes, p.Sharpe)
				out.Weights = append(out.Weights, p.Weights)
			}
			chunks[w] = out
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	result := &RandomPortfolios{}
	totalFallbacks := 0
	for w, c := range chunks {
		result.append(c)
		totalFallbacks += fallbacks[w]
	}

	g.log.Debug().
		Int("portfolios", result.Len()).
		Int("workers", workers).
		Int("fallbacks", totalFallbacks).
		Msg("Random portfolios generated")

	return result, nil
}
