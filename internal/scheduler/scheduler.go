// Package scheduler runs background jobs such as periodic news population
// at fixed intervals.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job represents a scheduled task.
type Job struct {
	Name     string
	Interval time.Duration
	// RunAtStart runs the job once before the first tick.
	RunAtStart bool
	Fn         func(ctx context.Context) error
}

// Scheduler runs jobs at their configured intervals.
type Scheduler struct {
	jobs   []Job
	logger *slog.Logger
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

// NewScheduler creates a new scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{
		logger: slog.Default(),
		done:   make(chan struct{}),
	}
}

// Add registers a job with the scheduler. Jobs without a positive interval
// are ignored.
func (s *Scheduler) Add(job Job) {
	if job.Interval <= 0 {
		s.logger.Debug("job disabled", "name", job.Name)
		return
	}
	s.jobs = append(s.jobs, job)
}

// run executes job once. Failures are logged and the job stays scheduled.
func (s *Scheduler) run(ctx context.Context, job Job) {
	s.logger.Info("running job", "name", job.Name)
	start := time.Now()
	if err := job.Fn(ctx); err != nil {
		s.logger.Error("job failed", "name", job.Name, "error", err, "duration", time.Since(start))
		return
	}
	s.logger.Info("job completed", "name", job.Name, "duration", time.Since(start))
}

// Start launches one loop per job and returns immediately. Loops stop when
// ctx is cancelled or Stop is called. A job never overlaps with itself.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("scheduler started", "jobs", len(s.jobs))
	for _, job := range s.jobs {
		s.wg.Add(1)
		go func(job Job) {
			defer s.wg.Done()
			s.loop(ctx, job)
		}(job)
	}
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	if job.RunAtStart {
		s.run(ctx, job)
	}

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			s.run(ctx, job)
		}
	}
}

// Stop signals all loops to exit and waits for running jobs to return.
func (s *Scheduler) Stop() {
	s.once.Do(func() { close(s.done) })
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}
