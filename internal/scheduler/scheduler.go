package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/precip-timelapse/internal/timelapse"
)

// Scheduler drives recurring animation ticks on top of gocron. It implements
// timelapse.Ticker.
type Scheduler struct {
	scheduler *gocron.Scheduler
}

// New creates a new Scheduler. Call Start before handing it to an animator.
func New() *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{scheduler: s}
}

// Start starts the underlying scheduler.
func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

// Every implements timelapse.Ticker. The job first fires one interval from
// now and runs in singleton mode, so a slow tick delays the next one instead
// of overlapping it.
func (s *Scheduler) Every(interval time.Duration, fn func()) (timelapse.TickerHandle, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("scheduler: interval must be positive, got %s", interval)
	}

	job, err := s.scheduler.Every(interval).WaitForSchedule().SingletonMode().Do(fn)
	if err != nil {
		return nil, fmt.Errorf("scheduler: schedule job: %w", err)
	}
	return &jobHandle{scheduler: s.scheduler, job: job}, nil
}

// Jobs returns the number of scheduled jobs. It is reported by /health for
// diagnostics: at most one while an animation is running.
func (s *Scheduler) Jobs() int {
	return s.scheduler.Len()
}

type jobHandle struct {
	once      sync.Once
	scheduler *gocron.Scheduler
	job       *gocron.Job
}

func (h *jobHandle) Stop() {
	h.once.Do(func() {
		h.scheduler.RemoveByReference(h.job)
	})
}
