// Package scheduler runs the periodic housekeeping jobs: expiring idle
// editor sessions, dropping expired notices and forgetting idle rate-limit
// buckets.
package scheduler

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
)

// Scheduler wraps a gocron scheduler. Jobs run in singleton mode so a slow
// sweep is never stacked on top of itself.
type Scheduler struct {
	logger    zerolog.Logger
	scheduler *gocron.Scheduler
}

func New(logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		logger:    logger.With().Str("component", "scheduler").Logger(),
		scheduler: gocron.NewScheduler(time.UTC),
	}
}

// Every registers fn to run every interval, starting as soon as the
// scheduler starts. fn returns the number of items it removed, which is
// logged when non-zero.
func (s *Scheduler) Every(name string, interval time.Duration, fn func() int) error {
	if interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive, got %s", name, interval)
	}
	_, err := s.scheduler.Every(interval).SingletonMode().Tag(name).Do(func() {
		if n := fn(); n > 0 {
			s.logger.Debug().Str("job", name).Int("removed", n).Msg("sweep")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	return nil
}

// Jobs returns the number of registered jobs.
func (s *Scheduler) Jobs() int {
	return s.scheduler.Len()
}

func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
	s.logger.Info().Int("jobs", s.scheduler.Len()).Msg("scheduler started")
}

func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}
