package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Func is the work a job performs on each run.
type Func func(ctx context.Context) error

// Job is a named function run on a cron schedule.
type Job struct {
	Name     string
	Schedule string // standard cron expression or descriptor such as "@every 5m"
	Run      Func

	schedule cron.Schedule
	state    JobState
}

// JobState tracks job execution state
type JobState struct {
	LastRunAt    time.Time     `json:"lastRunAt,omitempty"`
	NextRunAt    time.Time     `json:"nextRunAt,omitempty"`
	RunCount     int64         `json:"runCount"`
	ErrorCount   int64         `json:"errorCount"`
	LastError    string        `json:"lastError,omitempty"`
	LastDuration time.Duration `json:"lastDuration,omitempty"`
}

// NewJob validates spec and returns a job ready to be added.
func NewJob(name, spec string, run Func) (*Job, error) {
	if name == "" {
		return nil, fmt.Errorf("job name required")
	}
	if run == nil {
		return nil, fmt.Errorf("job %s: run function required", name)
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("job %s: invalid schedule %q: %w", name, spec, err)
	}
	return &Job{Name: name, Schedule: spec, Run: run, schedule: sched}, nil
}

// NextRun returns the first activation strictly after from.
func (j *Job) NextRun(from time.Time) time.Time {
	return j.schedule.Next(from)
}
