package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/example/learnstats/internal/logging"
	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// Reconciler runs one maintenance pass, logging rather than returning failures
type Reconciler interface {
	Trigger(ctx context.Context)
}

// Scheduler periodically runs maintenance so a quiet cluster still
// reconciles without request traffic
type Scheduler struct {
	scheduler  *gocron.Scheduler
	reconciler Reconciler
	interval   time.Duration
	logger     *zap.Logger
}

// New creates a new scheduler instance. An interval of zero disables it.
func New(reconciler Reconciler, interval time.Duration, logger *zap.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	// a slow pass must not overlap the next tick
	s.SingletonModeAll()
	return &Scheduler{
		scheduler:  s,
		reconciler: reconciler,
		interval:   interval,
		logger:     logging.OrNop(logger).Named("scheduler"),
	}
}

// Start begins the sweep in the background
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		s.logger.Info("maintenance sweep disabled")
		return nil
	}

	if _, err := s.scheduler.Every(s.interval).Do(s.sweep); err != nil {
		return fmt.Errorf("failed to schedule maintenance sweep: %w", err)
	}

	// Start the scheduler in a non-blocking manner
	s.scheduler.StartAsync()
	s.logger.Info("maintenance sweep started", zap.Duration("interval", s.interval))
	return nil
}

// Running reports whether the sweep is active
func (s *Scheduler) Running() bool {
	return s.scheduler.IsRunning()
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout())
	defer cancel()
	s.reconciler.Trigger(ctx)
}

// timeout bounds one pass by the sweep interval, with a floor for short
// intervals
func (s *Scheduler) timeout() time.Duration {
	if s.interval < time.Minute {
		return time.Minute
	}
	return s.interval
}
