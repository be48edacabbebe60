package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	ClipResultApplied         = "applied"
	ClipResultBudgetExhausted = "budget_exhausted"
	ClipResultRefreshed       = "refreshed"
	ClipResultUnverified      = "unverified"
	ClipResultInactive        = "inactive"
	ClipResultUnavailable     = "unavailable"
	ClipResultFailed          = "failed"
)

const (
	StatsResultOK          = "ok"
	StatsResultUnavailable = "unavailable"
	StatsResultError       = "error"
	StatsResultCacheHit    = "cache_hit"
)

// AccrualMetrics tracks the earnings engine and its upstream stats fetches.
type AccrualMetrics struct {
	clipsProcessed  *prometheus.CounterVec
	earnings        prometheus.Counter
	budgetExhausted prometheus.Counter
	retries         prometheus.Counter
	cycleDuration   prometheus.Histogram
	statsFetches    *prometheus.CounterVec
	statsDuration   *prometheus.HistogramVec
}

var (
	accrualMetricsOnce sync.Once
	accrualMetrics     *AccrualMetrics
)

// Accrual returns the singleton accrual metrics registry.
func Accrual() *AccrualMetrics {
	return AccrualWithConfig(Config{})
}

func AccrualWithConfig(cfg Config) *AccrualMetrics {
	accrualMetricsOnce.Do(func() {
		accrualMetrics = newAccrualMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return accrualMetrics
}

// ResetAccrualMetricsForTest resets the accrual metrics singleton for tests.
func ResetAccrualMetricsForTest() {
	accrualMetricsOnce = sync.Once{}
	accrualMetrics = nil
}

func newAccrualMetrics(registerer prometheus.Registerer, cfg Config) *AccrualMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	labels := constLabels(cfg)

	m := &AccrualMetrics{
		clipsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "cliprail_accrual_clips_processed_total",
			Help:        "Clips visited by the accrual engine by outcome.",
			ConstLabels: labels,
		}, []string{"result"}),
		earnings: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "cliprail_accrual_earnings_total",
			Help:        "Currency credited to creators by accrual and approval.",
			ConstLabels: labels,
		}),
		budgetExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "cliprail_accrual_budget_exhausted_total",
			Help:        "Offers deactivated because their budget was spent.",
			ConstLabels: labels,
		}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "cliprail_accrual_tx_retries_total",
			Help:        "Per-clip transactions replayed after a serialization failure or deadlock.",
			ConstLabels: labels,
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "cliprail_accrual_cycle_duration_seconds",
			Help:        "Wall time of one accrual cycle.",
			Buckets:     []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200, 1800, 3600},
			ConstLabels: labels,
		}),
		statsFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "cliprail_stats_fetch_total",
			Help:        "Video stats lookups by provider and result.",
			ConstLabels: labels,
		}, []string{"provider", "result"}),
		statsDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "cliprail_stats_fetch_duration_seconds",
			Help:        "Latency of video stats lookups.",
			Buckets:     []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
			ConstLabels: labels,
		}, []string{"provider"}),
	}

	registerer.MustRegister(
		m.clipsProcessed,
		m.earnings,
		m.budgetExhausted,
		m.retries,
		m.cycleDuration,
		m.statsFetches,
		m.statsDuration,
	)
	return m
}

func (m *AccrualMetrics) IncClip(result string) {
	if m == nil {
		return
	}
	m.clipsProcessed.WithLabelValues(result).Inc()
}

// AddEarnings records a credited amount. Prometheus counters are float64,
// which is precise enough for an operational signal.
func (m *AccrualMetrics) AddEarnings(amount float64) {
	if m == nil || amount <= 0 {
		return
	}
	m.earnings.Add(amount)
}

func (m *AccrualMetrics) IncBudgetExhausted() {
	if m == nil {
		return
	}
	m.budgetExhausted.Inc()
}

func (m *AccrualMetrics) IncRetry() {
	if m == nil {
		return
	}
	m.retries.Inc()
}

func (m *AccrualMetrics) ObserveCycle(duration time.Duration) {
	if m == nil {
		return
	}
	m.cycleDuration.Observe(duration.Seconds())
}

func (m *AccrualMetrics) ObserveStatsFetch(provider, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.statsFetches.WithLabelValues(provider, result).Inc()
	if result != StatsResultCacheHit {
		m.statsDuration.WithLabelValues(provider).Observe(duration.Seconds())
	}
}
