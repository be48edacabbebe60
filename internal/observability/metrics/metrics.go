package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

const (
	instClipSubmissions     = "cliprail_clip_submissions_total"
	instModerationDecisions = "cliprail_moderation_decisions_total"
	instTransactions        = "cliprail_transactions_total"
	instNotifications       = "cliprail_notifications_total"
	instRateLimitDenied     = "cliprail_rate_limit_denied_total"
)

var instrumentDescriptions = map[string]string{
	instClipSubmissions:     "Clip submissions by platform and outcome.",
	instModerationDecisions: "Moderation decisions on pending clips.",
	instTransactions:        "Ledger transactions written, by type.",
	instNotifications:       "Notification deliveries, by event and result.",
	instRateLimitDenied:     "Requests refused by a rate limiter.",
}

// Metrics exposes application-level OTLP instruments. A nil *Metrics records
// nothing, which keeps tests free of provider setup.
type Metrics struct {
	counters map[string]metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "cliprail"
	}
	meter := provider.Meter(name)

	counters := make(map[string]metric.Int64Counter, len(instrumentDescriptions))
	for inst, desc := range instrumentDescriptions {
		counter, err := meter.Int64Counter(inst, metric.WithDescription(desc))
		if err != nil {
			return nil, fmt.Errorf("metric %s: %w", inst, err)
		}
		counters[inst] = counter
	}
	return &Metrics{counters: counters}, nil
}

func (m *Metrics) add(ctx context.Context, inst string, attrs ...attribute.KeyValue) {
	if m == nil {
		return
	}
	counter, ok := m.counters[inst]
	if !ok {
		return
	}
	counter.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attrs...)...))
}

func label(key, value string) attribute.KeyValue {
	return attribute.String(key, strings.TrimSpace(value))
}

// RecordClipSubmission counts submissions by platform and outcome.
func (m *Metrics) RecordClipSubmission(ctx context.Context, platform, result string) {
	m.add(ctx, instClipSubmissions, label("platform", platform), label("result", result))
}

func (m *Metrics) RecordModerationDecision(ctx context.Context, decision string) {
	m.add(ctx, instModerationDecisions, label("decision", decision))
}

func (m *Metrics) RecordTransaction(ctx context.Context, txType string) {
	m.add(ctx, instTransactions, label("type", txType))
}

// RecordNotification counts deliveries; result is sent, error or dropped.
func (m *Metrics) RecordNotification(ctx context.Context, eventType, result string) {
	m.add(ctx, instNotifications, label("event_type", eventType), label("result", result))
}

func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint, reason string) {
	m.add(ctx, instRateLimitDenied, label("endpoint", endpoint), label("reason", reason))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"platform":   {},
	"result":     {},
	"decision":   {},
	"type":       {},
	"endpoint":   {},
	"event_type": {},
	"reason":     {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
