package di

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/frontier/internal/config"
	"github.com/aristath/frontier/internal/modules/allocation"
	"github.com/aristath/frontier/internal/modules/historical"
	"github.com/aristath/frontier/internal/modules/optimization"
	"github.com/aristath/frontier/internal/modules/risk"
	"github.com/aristath/frontier/internal/modules/runcache"
	"github.com/aristath/frontier/internal/reliability"
)

// InitializeServices builds repositories and services on top of the open databases
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	container.PriceRepo = historical.NewPriceRepository(container.HistoryDB.Conn(), log)
	container.AllocationRepo = allocation.NewRepository(container.LedgerDB.Conn(), log)
	container.RunCache = runcache.New(container.CacheDB.Conn(), cfg.CacheTTL, log)

	// Interface value stays nil unless an archive is configured.
	var archiver optimization.RunArchiver
	if cfg.Archive.Enabled() {
		client, err := reliability.NewS3Client(ctx, reliability.S3Config{
			Bucket:          cfg.Archive.Bucket,
			Endpoint:        cfg.Archive.Endpoint,
			Region:          cfg.Archive.Region,
			AccessKeyID:     cfg.Archive.AccessKeyID,
			SecretAccessKey: cfg.Archive.SecretAccessKey,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to create archive client: %w", err)
		}
		container.Archive = reliability.NewRunArchiveService(client, log)
		archiver = container.Archive
	}

	frontier := optimization.DefaultFrontierConfig()
	frontier.Points = cfg.FrontierPoints
	frontier.Workers = cfg.Workers

	container.OptimizationService = optimization.NewService(optimization.ServiceConfig{
		Workers:        cfg.Workers,
		PeriodsPerYear: cfg.PeriodsPerYear,
		Portfolios:     cfg.Portfolios,
		FrontierPoints: cfg.FrontierPoints,
		Notional:       cfg.Notional,
		RiskFreeRate:   cfg.RiskFreeRate,
		Sampler:        optimization.DefaultSamplerConfig(),
		Selector:       optimization.DefaultSelectorConfig(),
		Frontier:       frontier,
	}, container.PriceRepo, container.AllocationRepo, container.RunCache, archiver, log)

	riskCfg := risk.DefaultSummaryConfig()
	riskCfg.PeriodsPerYear = cfg.PeriodsPerYear
	container.RiskService = risk.NewService(container.PriceRepo, riskCfg, cfg.RiskLookback, log)

	log.Info().
		Int("workers", cfg.Workers).
		Bool("archive", container.Archive != nil).
		Msg("Services initialized")
	return nil
}
