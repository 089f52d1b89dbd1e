package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/frontier/internal/config"
	"github.com/aristath/frontier/internal/modules/optimization"
	"github.com/aristath/frontier/internal/reliability"
	"github.com/aristath/frontier/internal/scheduler"
)

// JobInstances holds the jobs registered with the scheduler
type JobInstances struct {
	Optimize    *scheduler.OptimizeJob // nil without a schedule
	Maintenance *reliability.DailyMaintenanceJob
}

// RegisterJobs creates the background jobs and adds them to sched
func RegisterJobs(container *Container, cfg *config.Config, sched *scheduler.Scheduler, log zerolog.Logger) (*JobInstances, error) {
	jobs := &JobInstances{}

	var rotator reliability.ArchiveRotator
	if container.Archive != nil {
		rotator = container.Archive
	}
	jobs.Maintenance = reliability.NewDailyMaintenanceJob(
		container.DatabaseMap(),
		container.RunCache,
		rotator,
		cfg.Archive.RetentionDays,
		log,
	)
	if cfg.MaintenanceSchedule != "" {
		if err := sched.AddJob(cfg.MaintenanceSchedule, jobs.Maintenance); err != nil {
			return nil, fmt.Errorf("failed to register maintenance job: %w", err)
		}
	}

	if cfg.Schedule != "" {
		jobs.Optimize = scheduler.NewOptimizeJob(container.OptimizationService, optimization.Request{
			Tickers:  cfg.Universe,
			Notional: cfg.Notional,
		}, 0, log)
		if err := sched.AddJob(cfg.Schedule, jobs.Optimize); err != nil {
			return nil, fmt.Errorf("failed to register optimize job: %w", err)
		}
	}

	return jobs, nil
}
