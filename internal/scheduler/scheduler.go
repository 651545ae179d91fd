// Package scheduler runs the background loops that keep the process tracker
// moving: due-process promotion onto SQS and cron-driven recovery of stale
// claims.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/payorch/payorch-backend-sqs/internal/tracker"
)

// StaleClaimAge is how long a promoted process may sit without progress
// before the recovery cron re-arms it. It must comfortably exceed the longest
// expected workflow execution.
const StaleClaimAge = 15 * time.Minute

// Scheduler owns the promotion ticker and the recovery cron.
type Scheduler struct {
	tracker  *tracker.Tracker
	cron     *cron.Cron
	stop     chan struct{}
	stopOnce sync.Once
	logger   *slog.Logger
}

// New creates a Scheduler over the tracker.
func New(trk *tracker.Tracker, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		tracker: trk,
		cron:    cron.New(),
		stop:    make(chan struct{}),
		logger:  logger,
	}
}

// Start begins the background loops.
func (s *Scheduler) Start() error {
	// Promote due tracker processes onto the queue.
	go s.runLoop("due-promoter", 1*time.Second, s.tracker.PromoteDue)

	// Re-arm processes whose consumer died after claiming them. Finished
	// records need no reaper; the table TTL ages them out.
	_, err := s.cron.AddFunc("@every 5m", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.tracker.RequeueStale(ctx, StaleClaimAge); err != nil {
			s.logger.Error("stale process recovery failed", "error", err)
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop signals all background loops to stop.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		cronCtx := s.cron.Stop()
		<-cronCtx.Done()
	})
}

func (s *Scheduler) runLoop(name string, interval time.Duration, fn func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := fn(ctx); err != nil {
				s.logger.Error("scheduler loop error", "loop", name, "error", err)
			}
			cancel()
		}
	}
}
