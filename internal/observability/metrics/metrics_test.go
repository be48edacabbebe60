package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("platform", "youtube"),
		attribute.String("user_id", "456"),
		attribute.String("clip_id", "789"),
		attribute.String("result", "accepted"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	if attrs[0].Key != "platform" || attrs[1].Key != "result" {
		t.Fatalf("unexpected attributes retained: %v", attrs)
	}
}

func TestMetricsCountsDomainEvents(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := New(Config{ServiceName: "cliprail-test"}, provider)
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}

	ctx := context.Background()
	m.RecordClipSubmission(ctx, "youtube", "accepted")
	m.RecordClipSubmission(ctx, "youtube", "accepted")
	m.RecordTransaction(ctx, "earning")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	totals := map[string]int64{}
	for _, scope := range rm.ScopeMetrics {
		for _, inst := range scope.Metrics {
			sum, ok := inst.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, point := range sum.DataPoints {
				totals[inst.Name] += point.Value
			}
		}
	}
	if totals[instClipSubmissions] != 2 || totals[instTransactions] != 1 {
		t.Fatalf("unexpected totals %v", totals)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordNotification(context.Background(), "clip_approved", "sent")
	m.RecordRateLimitDenied(context.Background(), "clip_submit", "user")
}
