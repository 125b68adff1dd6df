package telemetry

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/sammcj/pdfmaster/internal/response"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const defaultMetricExportInterval = 60 * time.Second

var (
	metricsMutex        sync.RWMutex
	globalMeterProvider *sdkmetric.MeterProvider
	metricsEnabled      bool

	operationCalls    metric.Int64Counter
	operationDuration metric.Float64Histogram
	operationErrors   metric.Int64Counter
	uploadBytes       metric.Int64Counter
)

// InitMetrics initialises the meter provider. It should be called after InitTracer.
func InitMetrics(logger *logrus.Logger) (func() error, error) {
	metricsMutex.Lock()
	defer metricsMutex.Unlock()

	noopShutdown := func() error { return nil }

	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") == "" {
		logger.Debug("OTEL Metrics: Not configured, using noop meter")
		metricsEnabled = false
		return noopShutdown, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var (
		exporter sdkmetric.Exporter
		err      error
	)
	switch otlpProtocol() {
	case "grpc":
		exporter, err = otlpmetricgrpc.New(ctx)
	default:
		exporter, err = otlpmetrichttp.New(ctx)
	}
	if err != nil {
		metricsEnabled = false
		return noopShutdown, err
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(metricExportInterval(logger)),
		)),
		sdkmetric.WithResource(newResource(ctx, logger)),
	)
	otel.SetMeterProvider(provider)

	if err := initInstruments(provider.Meter(instrumentationName)); err != nil {
		_ = provider.Shutdown(ctx)
		return noopShutdown, err
	}
	globalMeterProvider = provider
	metricsEnabled = true
	logger.Info("OTEL Metrics: Meter initialised successfully")

	return func() error {
		metricsMutex.Lock()
		defer metricsMutex.Unlock()

		if globalMeterProvider == nil {
			return nil
		}
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		err := globalMeterProvider.Shutdown(shutdownCtx)
		globalMeterProvider = nil
		metricsEnabled = false
		return err
	}, nil
}

func initInstruments(meter metric.Meter) error {
	var err error
	if operationCalls, err = meter.Int64Counter(MetricOperationCalls,
		metric.WithDescription("Total operation invocations"),
		metric.WithUnit("{call}"),
	); err != nil {
		return err
	}
	if operationDuration, err = meter.Float64Histogram(MetricOperationDuration,
		metric.WithDescription("Operation execution time"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000),
	); err != nil {
		return err
	}
	if operationErrors, err = meter.Int64Counter(MetricOperationErrors,
		metric.WithDescription("Failed operations by error category"),
		metric.WithUnit("{error}"),
	); err != nil {
		return err
	}
	uploadBytes, err = meter.Int64Counter(MetricUploadBytes,
		metric.WithDescription("Bytes accepted from uploads"),
		metric.WithUnit("By"),
	)
	return err
}

// IsMetricsEnabled reports whether metrics are exported.
func IsMetricsEnabled() bool {
	metricsMutex.RLock()
	defer metricsMutex.RUnlock()
	return metricsEnabled
}

// RecordOperation records one operation call, its duration and any error.
func RecordOperation(ctx context.Context, operation, transport string, duration time.Duration, err error) {
	if !IsMetricsEnabled() {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(AttrOperationName, operation),
		attribute.String(AttrTransport, transport),
		attribute.Bool(AttrOperationSuccess, err == nil),
	}
	operationCalls.Add(ctx, 1, metric.WithAttributes(attrs...))
	operationDuration.Record(ctx, float64(duration.Microseconds())/1000, metric.WithAttributes(attrs...))

	if err != nil {
		operationErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String(AttrOperationName, operation),
			attribute.String(AttrErrorCategory, CategoriseError(err)),
		))
	}
}

// RecordUpload adds the size of an accepted upload.
func RecordUpload(ctx context.Context, ext string, size int64) {
	if !IsMetricsEnabled() {
		return
	}
	uploadBytes.Add(ctx, size, metric.WithAttributes(attribute.String(AttrUploadExtension, ext)))
}

// CategoriseError names the class of err for metric attributes.
func CategoriseError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return response.KindOf(err).String()
	}
}

func metricExportInterval(logger *logrus.Logger) time.Duration {
	raw := os.Getenv("OTEL_METRIC_EXPORT_INTERVAL")
	if raw == "" {
		return defaultMetricExportInterval
	}
	// OTEL_METRIC_EXPORT_INTERVAL is specified in milliseconds.
	d, err := time.ParseDuration(raw + "ms")
	if err != nil || d <= 0 {
		logger.WithField("value", raw).Warn("OTEL Metrics: Invalid export interval, using default")
		return defaultMetricExportInterval
	}
	return d
}
