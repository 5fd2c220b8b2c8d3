package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/vmgd-scraper-service/internal/config"
	"github.com/couchcryptid/vmgd-scraper-service/internal/domain"
	"github.com/couchcryptid/vmgd-scraper-service/internal/observability"
)

// Runner executes one scrape session.
type Runner interface {
	RunOnce(ctx context.Context) (*domain.ScrapeSession, error)
}

// Scheduler drives the pipeline on a fixed cadence and accepts manual
// triggers. At most one run is active at a time; a tick or trigger that
// arrives while a run is in flight is dropped, never queued.
type Scheduler struct {
	runner     Runner
	interval   time.Duration
	runTimeout time.Duration
	logger     *slog.Logger
	metrics    *observability.Metrics

	clock   clockwork.Clock
	running atomic.Bool
	trigger chan struct{}
	wg      sync.WaitGroup
}

// New builds a scheduler around the runner with the configured cadence.
func New(runner Runner, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Scheduler {
	return &Scheduler{
		runner:     runner,
		interval:   cfg.ScrapeInterval,
		runTimeout: cfg.RunTimeout,
		logger:     logger,
		metrics:    metrics,
		clock:      clockwork.NewRealClock(),
		trigger:    make(chan struct{}, 1),
	}
}

// Run launches an immediate first run, then fires on every interval tick or
// manual trigger until ctx is cancelled. It returns only after any in-flight
// run has finished, so callers get graceful shutdown by waiting on it.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	s.launch(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping, waiting for in-flight run")
			s.wg.Wait()
			return
		case <-ticker.Chan():
			s.launch(ctx)
		case <-s.trigger:
			s.launch(ctx)
		}
	}
}

// TriggerNow requests an immediate run. Returns false when a run is already
// active or a trigger is already pending; the request is dropped.
func (s *Scheduler) TriggerNow() bool {
	if s.running.Load() {
		s.metrics.TriggersDropped.Inc()
		return false
	}
	select {
	case s.trigger <- struct{}{}:
		return true
	default:
		s.metrics.TriggersDropped.Inc()
		return false
	}
}

// launch starts one run unless another is active. The run gets a context
// detached from the scheduler's, bounded only by the run timeout, so
// shutdown lets it complete instead of cancelling it mid-write.
func (s *Scheduler) launch(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.metrics.TriggersDropped.Inc()
		s.logger.Info("run already active, trigger dropped")
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)

		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.runTimeout)
		defer cancel()

		if _, err := s.runner.RunOnce(runCtx); err != nil {
			// A failed run never stops the cadence; the next tick retries.
			s.logger.Error("scrape run failed", "error", err)
		}
	}()
}
