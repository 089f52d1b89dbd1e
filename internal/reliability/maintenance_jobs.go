package reliability

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/frontier/internal/database"
)

// CachePurger drops expired cache entries.
type CachePurger interface {
	Purge(ctx context.Context) (int64, error)
}

// ArchiveRotator deletes old archives.
type ArchiveRotator interface {
	RotateArchives(ctx context.Context, retentionDays int) (int, error)
}

// DailyMaintenanceJob checks database health, checkpoints WAL files, purges
// the run cache and rotates archived runs.
type DailyMaintenanceJob struct {
	databases     map[string]*database.DB
	cache         CachePurger
	archive       ArchiveRotator
	retentionDays int
	timeout       time.Duration
	log           zerolog.Logger
}

// NewDailyMaintenanceJob creates a new daily maintenance job. cache and
// archive may be nil.
func NewDailyMaintenanceJob(
	databases map[string]*database.DB,
	cache CachePurger,
	archive ArchiveRotator,
	retentionDays int,
	log zerolog.Logger,
) *DailyMaintenanceJob {
	return &DailyMaintenanceJob{
		databases:     databases,
		cache:         cache,
		archive:       archive,
		retentionDays: retentionDays,
		timeout:       10 * time.Minute,
		log:           log.With().Str("job", "daily_maintenance").Logger(),
	}
}

// Name returns the job name
func (j *DailyMaintenanceJob) Name() string {
	return "daily_maintenance"
}

// Run executes the daily maintenance job
func (j *DailyMaintenanceJob) Run() error {
	j.log.Info().Msg("Starting daily maintenance")
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	// Integrity failures abort; everything after is best effort.
	for name, db := range j.databases {
		if err := db.HealthCheck(ctx); err != nil {
			j.log.Error().Str("database", name).Err(err).Msg("CRITICAL: database health check failed")
			return fmt.Errorf("health check failed for %s: %w", name, err)
		}
	}

	for name, db := range j.databases {
		if err := db.WALCheckpoint(ctx, "TRUNCATE"); err != nil {
			j.log.Warn().Str("database", name).Err(err).Msg("WAL checkpoint failed")
		}
	}

	if j.cache != nil {
		purged, err := j.cache.Purge(ctx)
		if err != nil {
			j.log.Warn().Err(err).Msg("Failed to purge run cache")
		} else {
			j.log.Debug().Int64("purged", purged).Msg("Run cache purged")
		}
	}

	if j.archive != nil {
		if _, err := j.archive.RotateArchives(ctx, j.retentionDays); err != nil {
			j.log.Warn().Err(err).Msg("Failed to rotate archives")
		}
	}

	j.log.Info().
		Dur("duration", time.Since(startTime)).
		Int("databases", len(j.databases)).
		Msg("Daily maintenance completed")
	return nil
}
