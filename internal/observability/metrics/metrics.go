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

// Metrics exposes domain instruments for invoicing and the customer ledger.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	invoicesCreated      metric.Int64Counter
	invoiceLines         metric.Int64Counter
	ledgerEntries        metric.Int64Counter
	allocationConflicts  metric.Int64Counter
	creditLimitRejection metric.Int64Counter
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
				log.Info("shutting down meter provider")
				return provider.Shutdown(ctx)
			},
		})
	}

	log.Info("metrics initialized",
		zap.String("endpoint", cfg.ExporterEndpoint),
		zap.String("protocol", cfg.ExporterProtocol),
	)
	return provider, nil
}

// New creates the domain instruments on the given provider.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "billbook"
	}
	meter := provider.Meter(name)

	invoicesCreated, err := meter.Int64Counter("billbook_invoices_created_total",
		metric.WithDescription("Invoices committed with an allocated number."))
	if err != nil {
		return nil, err
	}
	invoiceLines, err := meter.Int64Counter("billbook_invoice_lines_total",
		metric.WithDescription("Line items priced on committed invoices."))
	if err != nil {
		return nil, err
	}
	ledgerEntries, err := meter.Int64Counter("billbook_ledger_entries_total",
		metric.WithDescription("Ledger entries appended by kind."))
	if err != nil {
		return nil, err
	}
	allocationConflicts, err := meter.Int64Counter("billbook_invoice_allocation_conflicts_total",
		metric.WithDescription("Invoice number allocations that lost a race and were retried or surfaced."))
	if err != nil {
		return nil, err
	}
	creditLimitRejection, err := meter.Int64Counter("billbook_credit_limit_rejections_total",
		metric.WithDescription("Credit entries refused because they would exceed the customer limit."))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		invoicesCreated:      invoicesCreated,
		invoiceLines:         invoiceLines,
		ledgerEntries:        ledgerEntries,
		allocationConflicts:  allocationConflicts,
		creditLimitRejection: creditLimitRejection,
	}, nil
}

// RecordInvoiceCreated counts a committed invoice and its lines.
func (m *Metrics) RecordInvoiceCreated(ctx context.Context, paymentMode string, lines int) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("payment_mode", normalizeLabel(paymentMode)))
	m.invoicesCreated.Add(ctx, 1, metric.WithAttributes(attrs...))
	if lines > 0 {
		m.invoiceLines.Add(ctx, int64(lines), metric.WithAttributes(attrs...))
	}
}

func (m *Metrics) RecordLedgerEntry(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("kind", normalizeLabel(kind)))
	m.ledgerEntries.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordAllocationConflict(ctx context.Context, attempt int) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.Int("attempt", attempt))
	m.allocationConflicts.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordCreditLimitRejection(ctx context.Context) {
	if m == nil {
		return
	}
	m.creditLimitRejection.Add(ctx, 1)
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
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

func normalizeLabel(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return "unknown"
	}
	return value
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"payment_mode": {},
	"kind":         {},
	"attempt":      {},
	"route":        {},
	"status_code":  {},
	"reason":       {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
// Customer and invoice identifiers never become labels.
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
