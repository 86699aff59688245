package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/CodeMonkeyCybersecurity/osintrecon/internal/config"
	"github.com/CodeMonkeyCybersecurity/osintrecon/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNewDisabledReturnsNoop(t *testing.T) {
	tel, err := New(context.Background(), config.TelemetryConfig{Enabled: false})
	require.NoError(t, err)

	assert.IsType(t, &noopTelemetry{}, tel)
	tel.RecordLookup(context.Background(), types.LookupKindHost, types.LookupStatusSuccess, time.Second)
	assert.NoError(t, tel.Close())
}

func TestNewRejectsUnknownExporter(t *testing.T) {
	tel, err := New(context.Background(), config.TelemetryConfig{
		Enabled:      true,
		ServiceName:  "osintrecon-test",
		ExporterType: "carrier-pigeon",
		SampleRate:   1.0,
	})

	assert.Error(t, err)
	assert.Nil(t, tel)
	assert.Contains(t, err.Error(), "unsupported exporter type")
}

func TestRecordLookupDataPoints(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	tel, err := newTelemetry(ctx,
		config.TelemetryConfig{ServiceName: "osintrecon-test", SampleRate: 1.0},
		sdktrace.WithSyncer(tracetest.NewInMemoryExporter()),
		reader,
	)
	require.NoError(t, err)
	defer tel.Close()

	tel.RecordLookup(ctx, types.LookupKindHost, types.LookupStatusFailed, 250*time.Millisecond)
	tel.RecordLookup(ctx, types.LookupKindHost, types.LookupStatusFailed, 750*time.Millisecond)
	tel.RecordLookup(ctx, types.LookupKindResolve, types.LookupStatusSuccess, 10*time.Millisecond)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	metrics := map[string]metricdata.Metrics{}
	for _, m := range rm.ScopeMetrics[0].Metrics {
		metrics[m.Name] = m
	}

	counter, ok := metrics[lookupCounterName].Data.(metricdata.Sum[int64])
	require.True(t, ok, "counter should be an int64 sum")
	require.Len(t, counter.DataPoints, 2)

	hostFailed := attribute.NewSet(
		attribute.String("lookup.kind", "shodan"),
		attribute.String("lookup.status", "failed"),
	)
	resolveOK := attribute.NewSet(
		attribute.String("lookup.kind", "resolve"),
		attribute.String("lookup.status", "success"),
	)

	counts := map[attribute.Distinct]int64{}
	for _, dp := range counter.DataPoints {
		counts[dp.Attributes.Equivalent()] = dp.Value
	}
	assert.Equal(t, int64(2), counts[hostFailed.Equivalent()])
	assert.Equal(t, int64(1), counts[resolveOK.Equivalent()])

	histogram, ok := metrics[lookupDurationName].Data.(metricdata.Histogram[float64])
	require.True(t, ok, "duration should be a float64 histogram")
	require.Len(t, histogram.DataPoints, 2)
	for _, dp := range histogram.DataPoints {
		if dp.Attributes.Equivalent() == hostFailed.Equivalent() {
			assert.Equal(t, uint64(2), dp.Count)
			assert.InDelta(t, 1.0, dp.Sum, 1e-9)
		}
	}
}

func TestNewOTLPExportsMetricsOnClose(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
	)
	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer collector.Close()

	tel, err := New(context.Background(), config.TelemetryConfig{
		Enabled:      true,
		ServiceName:  "osintrecon-test",
		ExporterType: "otlp",
		Endpoint:     strings.TrimPrefix(collector.URL, "http://"),
		SampleRate:   0,
	})
	require.NoError(t, err)

	tel.RecordLookup(context.Background(), types.LookupKindRegistration, types.LookupStatusFailed, 20*time.Millisecond)
	require.NoError(t, tel.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, paths, "/v1/metrics")
}
