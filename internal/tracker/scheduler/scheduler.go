package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

// CycleRunner is one pipeline's scheduled entry point.
type CycleRunner interface {
	RunCycle(ctx context.Context) error
}

// Scheduler runs each registered pipeline on its own interval. Jobs are
// singletons: a cycle that overruns its interval is skipped, not stacked.
type Scheduler struct {
	scheduler *gocron.Scheduler
	logger    *slog.Logger
}

func NewScheduler(logger *slog.Logger) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		logger:    logger,
	}
}

func (s *Scheduler) Add(name string, runner CycleRunner, interval time.Duration) {
	_, err := s.scheduler.Every(interval).
		SingletonMode().
		Do(func() {
			if err := runner.RunCycle(context.Background()); err != nil {
				s.logger.Error("cycle failed",
					"pipeline", name,
					"error", err,
				)
			}
		})
	if err != nil {
		s.logger.Error("failed to schedule pipeline",
			"pipeline", name,
			"error", err,
		)

		return
	}

	s.logger.Info("pipeline scheduled",
		"pipeline", name,
		"interval", interval.String(),
	)
}

func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	s.scheduler.Stop()
}
