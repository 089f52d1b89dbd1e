// Package scheduler runs background jobs on cron schedules.
package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job represents a scheduled job
type Job interface {
	Run() error
	Name() string
}

// JobStatus is a snapshot of one registered job.
type JobStatus struct {
	Name           string    `json:"name"`
	Schedule       string    `json:"schedule"`
	Runs           int64     `json:"runs"`
	Failures       int64     `json:"failures"`
	LastRun        time.Time `json:"last_run"`
	LastDurationMs int64     `json:"last_duration_ms"`
	LastError      string    `json:"last_error,omitempty"`
	NextRun        time.Time `json:"next_run"`
}

type entry struct {
	id     cron.EntryID
	job    Job
	status JobStatus
}

// Scheduler manages background jobs
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger

	mu      sync.Mutex
	entries []*entry
}

// New creates a new scheduler. Schedules carry a leading seconds field.
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds()),
		log:  log.With().Str("component", "scheduler").Logger(),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("jobs", len(s.cron.Entries())).Msg("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers job under a six-field cron expression or a descriptor
// such as "@every 30s".
func (s *Scheduler) AddJob(schedule string, job Job) error {
	e := &entry{job: job, status: JobStatus{Name: job.Name(), Schedule: schedule}}

	id, err := s.cron.AddFunc(schedule, func() { s.execute(e) })
	if err != nil {
		return fmt.Errorf("invalid schedule %q for %s: %w", schedule, job.Name(), err)
	}

	s.mu.Lock()
	e.id = id
	s.entries = append(s.entries, e)
	s.mu.Unlock()

	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")
	return nil
}

// RunNow executes a job immediately, outside its schedule. Registered jobs
// have the run recorded in their status.
func (s *Scheduler) RunNow(job Job) error {
	s.log.Info().Str("job", job.Name()).Msg("Running job immediately")

	s.mu.Lock()
	var found *entry
	for _, e := range s.entries {
		if e.job == job {
			found = e
			break
		}
	}
	s.mu.Unlock()

	if found == nil {
		return job.Run()
	}
	return s.execute(found)
}

// Status returns a snapshot of every registered job in registration order.
func (s *Scheduler) Status() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobStatus, 0, len(s.entries))
	for _, e := range s.entries {
		st := e.status
		st.NextRun = s.cron.Entry(e.id).Next
		out = append(out, st)
	}
	return out
}

func (s *Scheduler) execute(e *entry) (err error) {
	log := s.log.With().Str("job", e.status.Name).Logger()
	log.Debug().Msg("Running job")
	start := time.Now()

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("job panicked: %v", p)
		}
		s.record(e, start, err)
		if err != nil {
			log.Error().Err(err).Msg("Job failed")
			return
		}
		log.Debug().Dur("duration", time.Since(start)).Msg("Job completed")
	}()

	return e.job.Run()
}

func (s *Scheduler) record(e *entry, start time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e.status.Runs++
	e.status.LastRun = start
	e.status.LastDurationMs = time.Since(start).Milliseconds()
	e.status.LastError = ""
	if err != nil {
		e.status.Failures++
		e.status.LastError = err.Error()
	}
}
