// Package scheduler runs periodic maintenance jobs in the API process
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oilclothshop/backend/internal/config"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultRunTimeout bounds a single sweep
const DefaultRunTimeout = 30 * time.Second

// Purger deletes expired submissions
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// PurgeScheduler removes expired submissions on a cron schedule
type PurgeScheduler struct {
	purger     Purger
	logger     *zap.Logger
	cron       *cron.Cron
	runTimeout time.Duration
	wg         sync.WaitGroup
}

// NewPurgeScheduler creates a scheduler for the given cron expression.
// Standard five-field expressions and descriptors such as "@every 1m" are accepted.
// With schedule "off" Start and Stop do nothing.
func NewPurgeScheduler(purger Purger, schedule string, logger *zap.Logger) (*PurgeScheduler, error) {
	s := &PurgeScheduler{
		purger:     purger,
		logger:     logger,
		runTimeout: DefaultRunTimeout,
	}
	if schedule == config.PurgeScheduleDisabled {
		return s, nil
	}

	// an overrunning sweep makes the next tick a no-op instead of piling up
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("invalid purge schedule %q: %w", schedule, err)
	}
	s.cron = c

	return s, nil
}

// Start runs one sweep immediately and then follows the schedule
func (s *PurgeScheduler) Start() {
	if s.cron == nil {
		s.logger.Info("Expired submission sweep disabled")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run()
	}()
	s.cron.Start()
	s.logger.Info("Expired submission sweep started")
}

// Stop halts the schedule and waits for a running sweep to finish
func (s *PurgeScheduler) Stop() {
	if s.cron == nil {
		return
	}

	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.logger.Info("Expired submission sweep stopped")
}

func (s *PurgeScheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
	defer cancel()

	start := time.Now()
	count, err := s.purger.PurgeExpired(ctx)
	if err != nil {
		s.logger.Error("Failed to purge expired submissions", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return
	}
	s.logger.Debug("Expired submission sweep finished", zap.Int64("count", count), zap.Duration("duration", time.Since(start)))
}
