package stats

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/cliprail/internal/observability/metrics"
)

type instrumented struct {
	next    Provider
	metrics *metrics.AccrualMetrics
}

func Instrumented(next Provider, m *metrics.AccrualMetrics) Provider {
	if m == nil {
		return next
	}
	return &instrumented{next: next, metrics: m}
}

func (i *instrumented) Name() string { return i.next.Name() }

func (i *instrumented) FetchVideoStats(ctx context.Context, url string) (*Stats, error) {
	start := time.Now()
	s, err := Fetch(ctx, i.next, url)
	result := metrics.StatsResultOK
	switch {
	case errors.Is(err, ErrUnavailable):
		result = metrics.StatsResultUnavailable
	case err != nil:
		result = metrics.StatsResultError
	}
	i.metrics.ObserveStatsFetch(i.next.Name(), result, time.Since(start))
	return s, err
}
