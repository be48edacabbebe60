package scheduler

import (
	"context"
	"time"

	"github.com/smallbiznis/cliprail/internal/accrual"
	obscontext "github.com/smallbiznis/cliprail/internal/observability/context"
	obslogger "github.com/smallbiznis/cliprail/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/cliprail/internal/observability/metrics"
	"go.uber.org/zap"
)

const (
	triggerSchedule = "schedule"
	triggerManual   = "manual"
)

// jobRun is the bookkeeping for one scheduler job invocation. Nested runJob
// calls share the outermost run through the context.
type jobRun struct {
	job       string
	runID     string
	trigger   string
	batchSize int
	startedAt time.Time

	result accrual.CycleResult
	errors int
}

type jobRunKey struct{}

func (r *jobRun) record(result accrual.CycleResult) {
	if r == nil {
		return
	}
	r.result = result
	r.errors += result.Failed
}

func (r *jobRun) fail() {
	if r != nil && r.errors == 0 {
		r.errors = 1
	}
}

func (s *Scheduler) ensureJobRun(ctx context.Context, job, trigger string, batchSize int) (context.Context, *jobRun, bool) {
	if existing, ok := ctx.Value(jobRunKey{}).(*jobRun); ok && existing != nil {
		return ctx, existing, false
	}
	run := &jobRun{
		job:       job,
		runID:     s.genID.Generate().String(),
		trigger:   trigger,
		batchSize: batchSize,
		startedAt: s.clock.Now(),
	}
	ctx = context.WithValue(ctx, jobRunKey{}, run)
	ctx = obscontext.WithActor(ctx, "system", "scheduler")
	return ctx, run, true
}

func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}

func (s *Scheduler) logJobStart(ctx context.Context, run *jobRun) {
	s.logger(ctx).Info("scheduler.job.start",
		zap.String("job", run.job),
		zap.String("run_id", run.runID),
		zap.String("trigger", run.trigger),
		zap.Int("batch_size", run.batchSize),
	)
}

func (s *Scheduler) logJobFinish(ctx context.Context, run *jobRun) {
	fields := []zap.Field{
		zap.String("job", run.job),
		zap.String("run_id", run.runID),
		zap.String("trigger", run.trigger),
		zap.Int64("duration_ms", s.clock.Now().Sub(run.startedAt).Milliseconds()),
		zap.Int("clips_updated", run.result.ClipsUpdated),
		zap.Int("newly_verified", run.result.NewlyVerified),
		zap.String("earnings_added", run.result.TotalEarningsAdded.String()),
		zap.Int("skipped", run.result.Skipped),
		zap.Int("error_count", run.errors),
	}
	log := s.logger(ctx)
	if run.errors > 0 {
		log.Warn("scheduler.job.finish", fields...)
		return
	}
	log.Info("scheduler.job.finish", fields...)
}

func errorFields(err error) []zap.Field {
	return []zap.Field{
		zap.Error(err),
		zap.String("error_type", obsmetrics.ClassifySchedulerErrorType(err)),
		zap.Bool("retryable", obsmetrics.IsSchedulerErrorRetryable(err)),
	}
}
