package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/cliprail/internal/accrual"
	"github.com/smallbiznis/cliprail/internal/clock"
	obsmetrics "github.com/smallbiznis/cliprail/internal/observability/metrics"
	"github.com/smallbiznis/cliprail/internal/ratelimit"
	"github.com/smallbiznis/cliprail/internal/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type stubRunner struct {
	calls atomic.Int32
	run   func(ctx context.Context) (accrual.CycleResult, error)
}

func (r *stubRunner) RunCycle(ctx context.Context) (accrual.CycleResult, error) {
	r.calls.Add(1)
	if r.run == nil {
		return accrual.CycleResult{}, nil
	}
	return r.run(ctx)
}

func newTestScheduler(t *testing.T, runner CycleRunner, locker *ratelimit.Locker, cfg Config) *Scheduler {
	t.Helper()
	s, err := New(Params{
		Log:    zap.NewNop(),
		GenID:  testutil.NewNode(t),
		Clock:  clock.NewFakeClock(time.Date(2026, 3, 1, 10, 2, 0, 0, time.UTC)),
		Runner: runner,
		Locker: locker,
		Config: cfg,
	})
	require.NoError(t, err)
	return s
}

func newTestMetrics(t *testing.T) *prometheus.Registry {
	t.Helper()
	registry := prometheus.NewRegistry()
	restore := swapPrometheusRegistry(registry)
	t.Cleanup(restore)

	obsmetrics.ResetSchedulerMetricsForTest()
	obsmetrics.SchedulerWithConfig(obsmetrics.Config{
		ServiceName: "cliprail",
		Environment: "test",
	})
	return registry
}

func TestRunJobTimeoutDoesNotReturnErrorAndIncrementsTimeout(t *testing.T) {
	registry := newTestMetrics(t)

	runner := &stubRunner{run: func(ctx context.Context) (accrual.CycleResult, error) {
		<-ctx.Done()
		return accrual.CycleResult{ClipsUpdated: 3}, ctx.Err()
	}}
	s := newTestScheduler(t, runner, nil, Config{Enabled: true, CycleTimeout: 5 * time.Millisecond})

	result, err := s.RunAccrualCycle(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	require.Equal(t, 3, result.ClipsUpdated)

	labels := map[string]string{
		"service": "cliprail",
		"env":     "test",
		"job":     JobAccrualCycle,
	}
	if got := getCounterValue(t, registry, "cliprail_scheduler_job_timeouts_total", labels); got != 1 {
		t.Fatalf("expected timeout count 1, got %v", got)
	}

	errorLabels := map[string]string{
		"service": "cliprail",
		"env":     "test",
		"job":     JobAccrualCycle,
		"reason":  obsmetrics.SchedulerJobReasonDeadlineExceeded,
	}
	if got := getCounterValue(t, registry, "cliprail_scheduler_job_errors_total", errorLabels); got != 1 {
		t.Fatalf("expected error count 1, got %v", got)
	}
}

func TestRunAccrualCycleReturnsRunnerError(t *testing.T) {
	newTestMetrics(t)

	boom := errors.New("boom")
	runner := &stubRunner{run: func(context.Context) (accrual.CycleResult, error) {
		return accrual.CycleResult{}, boom
	}}
	s := newTestScheduler(t, runner, nil, Config{Enabled: true})

	_, err := s.RunAccrualCycle(context.Background())
	require.ErrorIs(t, err, boom)
	require.ErrorIs(t, s.RunOnce(context.Background()), boom)
}

func TestRunJobLogsErrorClassification(t *testing.T) {
	newTestMetrics(t)

	core, logs := observer.New(zap.InfoLevel)
	runner := &stubRunner{run: func(context.Context) (accrual.CycleResult, error) {
		return accrual.CycleResult{}, &pgconn.PgError{Code: "40001"}
	}}
	s, err := New(Params{
		Log:    zap.New(core),
		GenID:  testutil.NewNode(t),
		Clock:  clock.NewFakeClock(time.Date(2026, 3, 1, 10, 2, 0, 0, time.UTC)),
		Runner: runner,
		Config: Config{Enabled: true},
	})
	require.NoError(t, err)

	_, err = s.RunAccrualCycle(context.Background())
	require.Error(t, err)

	failed := logs.FilterMessage("job failed").All()
	require.Len(t, failed, 1)
	fields := failed[0].ContextMap()
	require.Equal(t, obsmetrics.SchedulerErrorTypeDB, fields["error_type"])
	require.Equal(t, true, fields["retryable"])
	require.Equal(t, JobAccrualCycle, fields["job"])

	logs.TakeAll()
	runner.run = func(ctx context.Context) (accrual.CycleResult, error) {
		return accrual.CycleResult{}, errors.New("offer_not_found")
	}
	_, err = s.RunAccrualCycle(context.Background())
	require.Error(t, err)
	failed = logs.FilterMessage("job failed").All()
	require.Len(t, failed, 1)
	require.Equal(t, obsmetrics.SchedulerErrorTypeBusinessRule, failed[0].ContextMap()["error_type"])
	require.Equal(t, false, failed[0].ContextMap()["retryable"])
}

func TestRunOnceDisabledSkipsRunner(t *testing.T) {
	registry := newTestMetrics(t)

	runner := &stubRunner{}
	s := newTestScheduler(t, runner, nil, Config{Enabled: false})

	require.NoError(t, s.RunOnce(context.Background()))
	require.Zero(t, runner.calls.Load())

	labels := map[string]string{
		"service": "cliprail",
		"env":     "test",
		"job":     JobAccrualCycle,
		"reason":  obsmetrics.SchedulerSkipReasonDisabled,
	}
	if got := getCounterValue(t, registry, "cliprail_scheduler_job_skipped_total", labels); got != 1 {
		t.Fatalf("expected skipped count 1, got %v", got)
	}

	// Manual triggers still run while the loop is off.
	_, err := s.RunAccrualCycle(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, runner.calls.Load())
}

func TestRunOnceSkipsWhenRedisLockHeld(t *testing.T) {
	registry := newTestMetrics(t)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	locker := ratelimit.NewLocker(client)

	token, ok, err := locker.TryLock(context.Background(), cycleLockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	runner := &stubRunner{}
	s := newTestScheduler(t, runner, locker, Config{Enabled: true})

	require.NoError(t, s.RunOnce(context.Background()))
	require.Zero(t, runner.calls.Load())

	_, err = s.RunAccrualCycle(context.Background())
	require.ErrorIs(t, err, ErrCycleInProgress)

	labels := map[string]string{
		"service": "cliprail",
		"env":     "test",
		"job":     JobAccrualCycle,
		"reason":  obsmetrics.SchedulerSkipReasonLockHeld,
	}
	if got := getCounterValue(t, registry, "cliprail_scheduler_job_skipped_total", labels); got != 2 {
		t.Fatalf("expected skipped count 2, got %v", got)
	}

	require.NoError(t, locker.Release(context.Background(), cycleLockKey, token))
	require.NoError(t, s.RunOnce(context.Background()))
	require.EqualValues(t, 1, runner.calls.Load())
	require.False(t, mr.Exists(cycleLockKey), "lock should be released after the cycle")
}

func TestRunAccrualCycleRejectsOverlap(t *testing.T) {
	newTestMetrics(t)

	started := make(chan struct{})
	release := make(chan struct{})
	runner := &stubRunner{run: func(context.Context) (accrual.CycleResult, error) {
		close(started)
		<-release
		return accrual.CycleResult{Skipped: 1}, nil
	}}
	s := newTestScheduler(t, runner, nil, Config{Enabled: true})

	done := make(chan error, 1)
	go func() {
		_, err := s.RunAccrualCycle(context.Background())
		done <- err
	}()
	<-started

	_, err := s.RunAccrualCycle(context.Background())
	require.ErrorIs(t, err, ErrCycleInProgress)

	close(release)
	require.NoError(t, <-done)
	require.EqualValues(t, 1, runner.calls.Load())
}

func TestNextRun(t *testing.T) {
	after := time.Date(2026, 3, 1, 10, 2, 0, 0, time.UTC)

	interval := newTestScheduler(t, &stubRunner{}, nil, Config{RunInterval: 10 * time.Minute})
	require.Equal(t, after.Add(10*time.Minute), interval.nextRun(after))

	cron := newTestScheduler(t, &stubRunner{}, nil, Config{Schedule: "*/5 * * * *"})
	require.Equal(t, time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC), cron.nextRun(after))
}

func TestNewValidation(t *testing.T) {
	_, err := New(Params{Log: zap.NewNop(), GenID: testutil.NewNode(t), Clock: clock.NewFakeClock(time.Time{})})
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(Params{
		Log:    zap.NewNop(),
		GenID:  testutil.NewNode(t),
		Clock:  clock.NewFakeClock(time.Time{}),
		Runner: &stubRunner{},
		Config: Config{Schedule: "every tuesday"},
	})
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{CycleTimeout: time.Hour}.withDefaults()
	require.Equal(t, 15*time.Minute, cfg.RunInterval)
	require.Equal(t, 100, cfg.BatchSize)
	require.Greater(t, cfg.LockTTL, cfg.CycleTimeout)
}

func swapPrometheusRegistry(registry *prometheus.Registry) func() {
	oldRegisterer := prometheus.DefaultRegisterer
	oldGatherer := prometheus.DefaultGatherer
	prometheus.DefaultRegisterer = registry
	prometheus.DefaultGatherer = registry
	return func() {
		prometheus.DefaultRegisterer = oldRegisterer
		prometheus.DefaultGatherer = oldGatherer
		obsmetrics.ResetSchedulerMetricsForTest()
	}
}

func getCounterValue(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metricFamilies {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.Metric {
			if !labelsMatch(metric, labels) {
				continue
			}
			if metric.Counter == nil {
				t.Fatalf("metric %s is not a counter", name)
			}
			return metric.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	if len(metric.Label) != len(labels) {
		return false
	}
	for _, label := range metric.Label {
		if labels[label.GetName()] != label.GetValue() {
			return false
		}
	}
	return true
}
