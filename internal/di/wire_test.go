package di

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/frontier/internal/config"
	"github.com/aristath/frontier/internal/scheduler"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		DataDir:             t.TempDir(),
		Workers:             2,
		Portfolios:          200,
		FrontierPoints:      20,
		PeriodsPerYear:      252,
		CacheTTL:            time.Hour,
		RiskLookback:        100,
		MaintenanceSchedule: "0 0 2 * * *",
	}
}

func TestInitializeDatabases(t *testing.T) {
	cfg := testConfig(t)

	container, err := InitializeDatabases(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	assert.NotNil(t, container.HistoryDB)
	assert.NotNil(t, container.LedgerDB)
	assert.NotNil(t, container.CacheDB)
	assert.Len(t, container.Databases(), 3)
	assert.Contains(t, container.DatabaseMap(), "ledger")

	assert.FileExists(t, filepath.Join(cfg.DataDir, "history.db"))
	assert.FileExists(t, filepath.Join(cfg.DataDir, "ledger.db"))
	assert.FileExists(t, filepath.Join(cfg.DataDir, "cache.db"))
}

func TestInitializeDatabases_InvalidPath(t *testing.T) {
	cfg := testConfig(t)
	// A regular file where the data directory should be.
	blocker := filepath.Join(cfg.DataDir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	cfg.DataDir = filepath.Join(blocker, "data")

	_, err := InitializeDatabases(cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestWire(t *testing.T) {
	container, err := Wire(context.Background(), testConfig(t), zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	assert.NotNil(t, container.PriceRepo)
	assert.NotNil(t, container.AllocationRepo)
	assert.NotNil(t, container.RunCache)
	assert.NotNil(t, container.OptimizationService)
	assert.NotNil(t, container.RiskService)
	assert.Nil(t, container.Archive, "archive is off without a bucket")
}

func TestWire_WithArchive(t *testing.T) {
	cfg := testConfig(t)
	cfg.Archive = config.ArchiveConfig{
		Bucket:          "runs",
		Endpoint:        "http://127.0.0.1:9000",
		Region:          "auto",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
	}

	container, err := Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	assert.NotNil(t, container.Archive)
}

func TestRegisterJobs(t *testing.T) {
	cfg := testConfig(t)
	container, err := Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	sched := scheduler.New(zerolog.Nop())
	jobs, err := RegisterJobs(container, cfg, sched, zerolog.Nop())
	require.NoError(t, err)
	assert.NotNil(t, jobs.Maintenance)
	assert.Nil(t, jobs.Optimize, "no schedule configured")

	require.NoError(t, jobs.Maintenance.Run())

	cfg.Schedule = "@daily"
	cfg.Universe = []string{"AAA", "BBB"}
	cfg.Notional = 10000
	jobs, err = RegisterJobs(container, cfg, scheduler.New(zerolog.Nop()), zerolog.Nop())
	require.NoError(t, err)
	assert.NotNil(t, jobs.Optimize)

	cfg.Schedule = "never"
	_, err = RegisterJobs(container, cfg, scheduler.New(zerolog.Nop()), zerolog.Nop())
	assert.Error(t, err)
}
