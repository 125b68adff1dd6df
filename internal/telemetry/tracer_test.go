package telemetry

import (
	"testing"
	"time"

	"github.com/sammcj/pdfmaster/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRatio(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{in: "0.25", want: 0.25},
		{in: " 0.5 ", want: 0.5},
		{in: "-1", want: 0},
		{in: "3", want: 1},
		{in: "half", want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.InDelta(t, tt.want, parseRatio(tt.in), 1e-9)
		})
	}
}

func TestOTLPProtocol(t *testing.T) {
	tests := []struct {
		name     string
		protocol string
		endpoint string
		want     string
	}{
		{name: "explicit", protocol: "grpc", endpoint: "http://collector:4318", want: "grpc"},
		{name: "grpc port", endpoint: "http://collector:4317", want: "grpc"},
		{name: "default", endpoint: "http://collector:4318", want: "http/protobuf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", tt.protocol)
			t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", tt.endpoint)
			assert.Equal(t, tt.want, otlpProtocol())
		})
	}
}

func TestMaxAttributeLength(t *testing.T) {
	tests := []struct {
		env  string
		want int
	}{
		{env: "", want: defaultMaxAttributeSize},
		{env: "10", want: minAttributeSize},
		{env: "2048", want: 2048},
		{env: "1000000", want: maxAttributeSize},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Setenv("PDFMASTER_TRACING_MAX_ATTRIBUTE_SIZE", tt.env)
			assert.Equal(t, tt.want, maxAttributeLength())
		})
	}
}

func TestServiceNameAndEnvironment(t *testing.T) {
	t.Setenv("OTEL_SERVICE_NAME", "")
	assert.Equal(t, "pdfmaster", serviceName())
	t.Setenv("OTEL_SERVICE_NAME", "pdf-api")
	assert.Equal(t, "pdf-api", serviceName())

	t.Setenv("ENVIRONMENT", "")
	t.Setenv("ENV", "")
	t.Setenv("DEPLOYMENT_ENV", "staging")
	assert.Equal(t, "staging", deploymentEnvironment())
}

func TestInitWithoutEndpointIsNoop(t *testing.T) {
	t.Setenv("OTEL_SDK_DISABLED", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	logger := testutils.CreateTestLogger()

	shutdownTracer, err := InitTracer(logger)
	require.NoError(t, err)
	shutdownMetrics, err := InitMetrics(logger)
	require.NoError(t, err)

	assert.False(t, IsEnabled())
	assert.False(t, IsMetricsEnabled())
	assert.NoError(t, shutdownTracer())
	assert.NoError(t, shutdownMetrics())
}

func TestMetricExportInterval(t *testing.T) {
	logger := testutils.CreateTestLogger()

	t.Setenv("OTEL_METRIC_EXPORT_INTERVAL", "")
	assert.Equal(t, defaultMetricExportInterval, metricExportInterval(logger))

	t.Setenv("OTEL_METRIC_EXPORT_INTERVAL", "1500")
	assert.Equal(t, 1500*time.Millisecond, metricExportInterval(logger))

	t.Setenv("OTEL_METRIC_EXPORT_INTERVAL", "soon")
	assert.Equal(t, defaultMetricExportInterval, metricExportInterval(logger))
}
