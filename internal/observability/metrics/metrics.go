// Package metrics exposes the engine's otel instruments. A noop provider is
// installed when export is disabled so call sites never branch.
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
}

// Metrics exposes application-level instruments.
type Metrics struct {
	postings       metric.Int64Counter
	replays        metric.Int64Counter
	matches        metric.Int64Counter
	batchCloses    metric.Int64Counter
	recoveryRepair metric.Int64Counter
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

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "", "grpc":
		return otlpmetricgrpc.New(context.Background(),
			otlpmetricgrpc.WithEndpoint(endpoint),
			otlpmetricgrpc.WithInsecure(),
		)
	case "http", "http/protobuf":
		return otlpmetrichttp.New(context.Background(),
			otlpmetrichttp.WithEndpoint(endpoint),
			otlpmetrichttp.WithInsecure(),
		)
	default:
		return nil, fmt.Errorf("unsupported otlp protocol %q", protocol)
	}
}

// New builds the engine instruments on the registered provider.
func New(provider metric.MeterProvider, cfg Config) (*Metrics, error) {
	meter := provider.Meter(cfg.ServiceName)

	postings, err := meter.Int64Counter("folio_postings_total",
		metric.WithDescription("Accepted ledger postings by transaction type"))
	if err != nil {
		return nil, err
	}
	replays, err := meter.Int64Counter("folio_posting_replays_total",
		metric.WithDescription("Idempotent posting replays detected"))
	if err != nil {
		return nil, err
	}
	matches, err := meter.Int64Counter("folio_settlement_matches_total",
		metric.WithDescription("Settlement records matched by confidence"))
	if err != nil {
		return nil, err
	}
	batchCloses, err := meter.Int64Counter("folio_batch_closes_total",
		metric.WithDescription("Batch snapshots closed by type and status"))
	if err != nil {
		return nil, err
	}
	recoveryRepair, err := meter.Int64Counter("folio_recovery_repairs_total",
		metric.WithDescription("Recovery repairs applied by kind"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		postings:       postings,
		replays:        replays,
		matches:        matches,
		batchCloses:    batchCloses,
		recoveryRepair: recoveryRepair,
	}, nil
}

func (m *Metrics) RecordPosting(ctx context.Context, txType string) {
	if m == nil {
		return
	}
	m.postings.Add(ctx, 1, metric.WithAttributes(attribute.String("type", txType)))
}

func (m *Metrics) RecordReplay(ctx context.Context, txType string) {
	if m == nil {
		return
	}
	m.replays.Add(ctx, 1, metric.WithAttributes(attribute.String("type", txType)))
}

func (m *Metrics) RecordMatch(ctx context.Context, confidence string) {
	if m == nil {
		return
	}
	m.matches.Add(ctx, 1, metric.WithAttributes(attribute.String("confidence", confidence)))
}

func (m *Metrics) RecordBatchClose(ctx context.Context, batchType, status string) {
	if m == nil {
		return
	}
	m.batchCloses.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", batchType),
		attribute.String("status", status),
	))
}

func (m *Metrics) RecordRecoveryRepair(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.recoveryRepair.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}
