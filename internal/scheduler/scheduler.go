package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/repuestos/internal/clock"
	"github.com/smallbiznis/repuestos/internal/config"
	obsmetrics "github.com/smallbiznis/repuestos/internal/observability/metrics"
	productdomain "github.com/smallbiznis/repuestos/internal/product/domain"
	"github.com/smallbiznis/repuestos/internal/providers/ledger"
	"github.com/smallbiznis/repuestos/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log        *zap.Logger
	ProductSvc productdomain.Service
	Ledger     ledger.Provider
	Holder     *config.SyncConfigHolder
	GenID      *snowflake.Node
	Clock      clock.Clock
	Locker     *ratelimit.Locker `optional:"true"`
}

type Scheduler struct {
	log        *zap.Logger
	holder     *config.SyncConfigHolder
	genID      *snowflake.Node
	clock      clock.Clock
	productSvc productdomain.Service
	ledger     ledger.Provider
	locker     *ratelimit.Locker
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.ProductSvc == nil || p.Ledger == nil || p.Holder == nil || p.GenID == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:        p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		holder:     p.Holder,
		genID:      p.GenID,
		clock:      p.Clock,
		productSvc: p.ProductSvc,
		ledger:     p.Ledger,
		locker:     p.Locker,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name, batchSize)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if owner {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	// deadline is a soft timeout; the next tick picks up the rest
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce performs a single sweep when syncing is enabled.
func (s *Scheduler) RunOnce(parent context.Context) error {
	if !s.current().Enabled {
		return nil
	}
	return s.Sweep(parent)
}

// Sweep runs the resync job once regardless of the enabled flag.
func (s *Scheduler) Sweep(parent context.Context) error {
	cfg := s.current()
	return s.runJob(parent, JobLedgerResync, cfg.BatchSize, cfg.Timeout, s.LedgerResyncJob)
}

func (s *Scheduler) RunForever(ctx context.Context) {
	interval := s.interval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(interval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		runLag := s.clock.Now().Sub(nextRun)
		if runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		// sync.yml may have changed the interval since the last tick
		if next := s.interval(); next != interval {
			interval = next
			ticker.Reset(interval)
		}
		nextRun = s.clock.Now().Add(interval)
	}
}

// LedgerResyncJob pushes unsynced products to the ledger. Only one instance
// sweeps at a time when a redis lock is configured.
func (s *Scheduler) LedgerResyncJob(ctx context.Context) error {
	run := jobRunFromContext(ctx)
	schedMetrics := obsmetrics.Scheduler()

	if !s.ledger.Enabled() {
		schedMetrics.IncBatchDeferred(JobLedgerResync, obsmetrics.SchedulerBatchDeferredReasonLedgerDisabled)
		s.logger(ctx).Debug("scheduler.ledger_resync.skipped", zap.String("reason", "ledger_disabled"))
		return nil
	}

	cfg := s.current()
	err := s.locker.WithLock(ctx, ledgerResyncLockKey, cfg.Timeout, func(ctx context.Context) error {
		summary, err := s.productSvc.ResyncPending(ctx, cfg.BatchSize)
		if err != nil {
			return err
		}
		run.AddProcessed(summary.Synced)
		run.AddErrors(summary.Attempted - summary.Synced)
		schedMetrics.AddBatchProcessed(JobLedgerResync, "products", summary.Attempted)
		s.logger(ctx).Info("scheduler.ledger_resync.batch",
			zap.Int("attempted", summary.Attempted),
			zap.Int("synced", summary.Synced),
		)
		return nil
	})
	if errors.Is(err, ratelimit.ErrLockHeld) {
		schedMetrics.IncBatchDeferred(JobLedgerResync, obsmetrics.SchedulerBatchDeferredReasonLockHeld)
		s.logger(ctx).Debug("scheduler.ledger_resync.skipped", zap.String("reason", "lock_held"))
		return nil
	}
	if err != nil {
		s.logSchedulerError(ctx, run, "scheduler.ledger_resync.failed", JobLedgerResync, err)
	}
	return err
}
