// Package scheduler owns the timers that drive the periodic SLA sweeps.
// The sweep bodies live on SLAService and stay directly testable; this
// package only decides when they run.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/facilities-service/internal/config"
	"github.com/spec-kit/facilities-service/internal/service"
)

// Scheduler drives the breach-detection and auto-close sweeps on fixed
// intervals. A sweep run that fails is abandoned and fully retried on the
// next tick; no partial-resume state is kept.
type Scheduler struct {
	slaService *service.SLAService
	logger     *zap.Logger
	cfg        config.SLAConfig

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New initializes a scheduler instance.
func New(slaService *service.SLAService, logger *zap.Logger, cfg config.SLAConfig) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		slaService: slaService,
		logger:     logger,
		cfg:        cfg,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start launches both sweep loops. Each runs once immediately, then on its
// ticker.
func (s *Scheduler) Start() {
	s.logger.Info("starting SLA scheduler",
		zap.Duration("breach_interval", s.cfg.BreachSweepInterval()),
		zap.Duration("auto_close_interval", s.cfg.AutoCloseSweepInterval()))

	s.wg.Add(2)
	go s.runLoop("sla_breach", s.cfg.BreachSweepInterval(), s.runBreachSweep)
	go s.runLoop("auto_close", s.cfg.AutoCloseSweepInterval(), s.runAutoCloseSweep)
}

// Stop cancels the loops and waits for in-flight sweeps to finish.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	s.logger.Info("SLA scheduler stopped")
}

func (s *Scheduler) runLoop(name string, interval time.Duration, sweep func(context.Context, time.Time) error) {
	defer s.wg.Done()

	if err := sweep(s.ctx, time.Now()); err != nil {
		s.logger.Error("sweep failed", zap.String("sweep", name), zap.Error(err))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case now := <-ticker.C:
			if err := sweep(s.ctx, now); err != nil {
				// Retried wholesale on the next tick.
				s.logger.Error("sweep failed", zap.String("sweep", name), zap.Error(err))
			}
		}
	}
}

func (s *Scheduler) runBreachSweep(ctx context.Context, now time.Time) error {
	_, err := s.slaService.RunBreachSweep(ctx, now)
	return err
}

func (s *Scheduler) runAutoCloseSweep(ctx context.Context, now time.Time) error {
	_, err := s.slaService.RunAutoCloseSweep(ctx, now)
	return err
}
