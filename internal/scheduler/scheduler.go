package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/robfig/cron/v3"
	"github.com/smallbiznis/cliprail/internal/accrual"
	"github.com/smallbiznis/cliprail/internal/clock"
	obsmetrics "github.com/smallbiznis/cliprail/internal/observability/metrics"
	"github.com/smallbiznis/cliprail/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const JobAccrualCycle = "accrual_cycle"

var (
	ErrInvalidConfig   = errors.New("invalid_scheduler_config")
	ErrCycleInProgress = errors.New("accrual_cycle_in_progress")
)

// CycleRunner is the accrual engine as seen by the scheduler.
type CycleRunner interface {
	RunCycle(ctx context.Context) (accrual.CycleResult, error)
}

type Params struct {
	fx.In

	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Runner CycleRunner
	Locker *ratelimit.Locker `optional:"true"`
	Config Config            `optional:"true"`
}

type Scheduler struct {
	log      *zap.Logger
	cfg      Config
	genID    *snowflake.Node
	clock    clock.Clock
	runner   CycleRunner
	guard    cycleGuard
	schedule cron.Schedule
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.Runner == nil {
		return nil, ErrInvalidConfig
	}
	cfg := p.Config.withDefaults()

	var schedule cron.Schedule
	if cfg.Schedule != "" {
		parsed, err := cron.ParseStandard(cfg.Schedule)
		if err != nil {
			return nil, fmt.Errorf("%w: schedule %q: %v", ErrInvalidConfig, cfg.Schedule, err)
		}
		schedule = parsed
	}

	log := p.Log.Named("scheduler").With(zap.String("component", "scheduler"))
	return &Scheduler{
		log:      log,
		cfg:      cfg,
		genID:    p.GenID,
		clock:    p.Clock,
		runner:   p.Runner,
		guard:    newCycleGuard(p.Locker, cfg.LockTTL, log),
		schedule: schedule,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name, trigger string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context, run *jobRun) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name, trigger, batchSize)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx, run)
	schedMetrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if errors.Is(err, ErrCycleInProgress) {
		return err
	}
	if owner {
		if err != nil {
			run.fail()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	// A deadline ends the cycle early; the next one resumes from the start.
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out", append([]zap.Field{zap.Duration("timeout", timeout)}, errorFields(err)...)...)
		return nil
	}

	log.Error("job failed", errorFields(err)...)
	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce runs one scheduled cycle. A cycle already running elsewhere is not
// an error.
func (s *Scheduler) RunOnce(parent context.Context) error {
	if !s.cfg.Enabled {
		obsmetrics.Scheduler().IncJobSkipped(JobAccrualCycle, obsmetrics.SchedulerSkipReasonDisabled)
		return nil
	}
	_, err := s.runCycle(parent, triggerSchedule)
	if errors.Is(err, ErrCycleInProgress) {
		return nil
	}
	return err
}

// RunAccrualCycle is the entry point for both the loop and manual triggers.
// It returns ErrCycleInProgress when another run holds the cycle lock.
func (s *Scheduler) RunAccrualCycle(parent context.Context) (accrual.CycleResult, error) {
	return s.runCycle(parent, triggerManual)
}

func (s *Scheduler) runCycle(parent context.Context, trigger string) (accrual.CycleResult, error) {
	var result accrual.CycleResult
	err := s.runJob(parent, JobAccrualCycle, trigger, s.cfg.BatchSize, s.cfg.CycleTimeout, func(ctx context.Context, run *jobRun) error {
		lockStart := s.clock.Now()
		release, ok, err := s.guard.acquire(ctx)
		obsmetrics.Scheduler().ObserveDBLockWait(obsmetrics.LockResourceCycle, s.clock.Now().Sub(lockStart))
		if err != nil {
			return err
		}
		if !ok {
			obsmetrics.Scheduler().IncJobSkipped(JobAccrualCycle, obsmetrics.SchedulerSkipReasonLockHeld)
			s.logger(ctx).Info("scheduler.job.skipped",
				zap.String("job", JobAccrualCycle),
				zap.String("run_id", run.runID),
				zap.String("reason", obsmetrics.SchedulerSkipReasonLockHeld),
			)
			return ErrCycleInProgress
		}
		defer release()

		result, err = s.runner.RunCycle(ctx)
		run.record(result)
		return err
	})
	return result, err
}

// nextRun uses the cron schedule when one is configured, else the fixed
// interval.
func (s *Scheduler) nextRun(after time.Time) time.Time {
	if s.schedule != nil {
		return s.schedule.Next(after)
	}
	return after.Add(s.cfg.RunInterval)
}

func (s *Scheduler) RunForever(ctx context.Context) {
	schedMetrics := obsmetrics.Scheduler()
	nextRun := s.clock.Now()

	for {
		runLag := s.clock.Now().Sub(nextRun)
		if runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		// Failures are logged and counted by runJob.
		_ = s.RunOnce(ctx)
		nextRun = s.nextRun(s.clock.Now())

		timer := time.NewTimer(nextRun.Sub(s.clock.Now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
