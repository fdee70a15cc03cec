package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Scheduler runs maintenance jobs until stopped.
type Scheduler struct {
	jobs   map[string]*Job
	logger *slog.Logger
	mu     sync.RWMutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a new scheduler
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		jobs:   make(map[string]*Job),
		logger: logger.With("component", "scheduler"),
	}
}

// AddJob registers a job. Jobs must be added before Start.
func (s *Scheduler) AddJob(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return fmt.Errorf("scheduler already started")
	}
	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("job with name %s already exists", job.Name)
	}
	s.jobs[job.Name] = job
	s.logger.Debug("job added", "job", job.Name, "schedule", job.Schedule)
	return nil
}

// Start launches one runner per job.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, s.cancel = context.WithCancel(ctx)
	for _, job := range s.jobs {
		job := job
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runLoop(ctx, job)
		}()
	}
	s.logger.Info("scheduler started", "jobs", len(s.jobs))
}

// Stop cancels all runners and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) runLoop(ctx context.Context, job *Job) {
	logger := s.logger.With("job", job.Name)
	for {
		next := job.NextRun(time.Now())
		s.mu.Lock()
		job.state.NextRunAt = next
		s.mu.Unlock()

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.execute(ctx, job, logger)
		}
	}
}

// RunJobNow triggers a job immediately (bypassing schedule)
func (s *Scheduler) RunJobNow(ctx context.Context, name string) error {
	s.mu.RLock()
	job, exists := s.jobs[name]
	s.mu.RUnlock()

	if !exists {
		return fmt.Errorf("job not found: %s", name)
	}
	return s.execute(ctx, job, s.logger.With("job", name))
}

func (s *Scheduler) execute(ctx context.Context, job *Job, logger *slog.Logger) error {
	start := time.Now()
	err := job.Run(ctx)
	duration := time.Since(start)

	s.mu.Lock()
	job.state.LastRunAt = start
	job.state.LastDuration = duration
	job.state.RunCount++
	if err != nil {
		job.state.ErrorCount++
		job.state.LastError = err.Error()
	} else {
		job.state.LastError = ""
	}
	s.mu.Unlock()

	if err != nil {
		logger.Error("job failed", "error", err, "duration", duration)
		return err
	}
	logger.Debug("job completed", "duration", duration)
	return nil
}

// State returns a job's execution state.
func (s *Scheduler) State(name string) (JobState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[name]
	if !ok {
		return JobState{}, false
	}
	return job.state, true
}

// GetStats returns scheduler statistics
func (s *Scheduler) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var totalRuns, totalErrors int64
	for _, job := range s.jobs {
		totalRuns += job.state.RunCount
		totalErrors += job.state.ErrorCount
	}

	return map[string]any{
		"total_jobs":   len(s.jobs),
		"total_runs":   totalRuns,
		"total_errors": totalErrors,
	}
}
