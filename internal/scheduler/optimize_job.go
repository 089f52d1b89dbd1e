package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/frontier/internal/modules/optimization"
)

// Optimizer runs a full optimization.
type Optimizer interface {
	Run(ctx context.Context, req optimization.Request) (*optimization.RunResult, error)
}

// OptimizeJob re-optimizes a fixed universe on a schedule. Overlapping
// invocations are skipped rather than queued.
type OptimizeJob struct {
	request   optimization.Request
	runner    Optimizer
	timeout   time.Duration
	running   atomic.Bool
	lastRunID atomic.Value
	log       zerolog.Logger
}

// ErrJobRunning is returned by Run when a previous invocation is still active.
var ErrJobRunning = errors.New("job already running")

// NewOptimizeJob creates a job that submits req on every tick.
func NewOptimizeJob(runner Optimizer, req optimization.Request, timeout time.Duration, log zerolog.Logger) *OptimizeJob {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &OptimizeJob{
		request: req,
		runner:  runner,
		timeout: timeout,
		log:     log.With().Str("job", "optimize_universe").Logger(),
	}
}

// Name returns the job name
func (j *OptimizeJob) Name() string {
	return "optimize_universe"
}

// LastRunID returns the id of the most recent successful run, or "".
func (j *OptimizeJob) LastRunID() string {
	id, _ := j.lastRunID.Load().(string)
	return id
}

// Run executes one optimization of the configured universe
func (j *OptimizeJob) Run() error {
	if !j.running.CompareAndSwap(false, true) {
		j.log.Warn().Msg("Optimization already running, skipping")
		return ErrJobRunning
	}
	defer j.running.Store(false)

	if len(j.request.Tickers) == 0 {
		return fmt.Errorf("no universe configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	result, err := j.runner.Run(ctx, j.request)
	if err != nil {
		return fmt.Errorf("scheduled optimization failed: %w", err)
	}
	j.lastRunID.Store(result.ID)

	j.log.Info().
		Str("run_id", result.ID).
		Int("assets", len(result.Assets)).
		Int64("duration_ms", result.DurationMs).
		Msg("Scheduled optimization completed")
	return nil
}
