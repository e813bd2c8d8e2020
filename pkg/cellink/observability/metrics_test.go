package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// setupMetricsTest installs a manual-reader meter provider for the test.
func setupMetricsTest(t *testing.T) *sdkmetric.ManualReader {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	original := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)

	t.Cleanup(func() {
		otel.SetMeterProvider(original)
		if err := provider.Shutdown(context.Background()); err != nil {
			t.Logf("shutting down meter provider: %v", err)
		}
	})
	return reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) *metricdata.ResourceMetrics {
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return &rm
}

func findMetric(rm *metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumFor returns the counter value recorded with attribute node=node.
func sumFor(t *testing.T, m *metricdata.Metrics, node string) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "expected Sum[int64]")
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value("node"); ok && v.AsString() == node {
			return dp.Value
		}
	}
	return 0
}

func TestNewMetricsRecorder(t *testing.T) {
	setupMetricsTest(t)

	recorder := NewMetricsRecorder()
	require.NotNil(t, recorder)
	_, isNoop := recorder.(NoopMetrics)
	assert.False(t, isNoop)
}

func TestRecordNodeExecution(t *testing.T) {
	reader := setupMetricsTest(t)
	m, err := newOtelMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordNodeExecution(ctx, "square", 3*time.Millisecond, nil)
	m.RecordNodeExecution(ctx, "square", 4*time.Millisecond, nil)
	m.RecordNodeExecution(ctx, "divide", time.Millisecond, errors.New("division by zero"))

	rm := collectMetrics(t, reader)

	executions := findMetric(rm, "cellink.node.executions")
	require.NotNil(t, executions)
	assert.Equal(t, int64(2), sumFor(t, executions, "square"))
	assert.Equal(t, int64(1), sumFor(t, executions, "divide"))

	errs := findMetric(rm, "cellink.node.errors")
	require.NotNil(t, errs)
	assert.Equal(t, int64(1), sumFor(t, errs, "divide"))
	assert.Equal(t, int64(0), sumFor(t, errs, "square"))

	latency := findMetric(rm, "cellink.node.latency_ms")
	require.NotNil(t, latency)
	hist, ok := latency.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	assert.NotEmpty(t, hist.DataPoints)
}

func TestRecordNodeDead(t *testing.T) {
	reader := setupMetricsTest(t)
	m, err := newOtelMetrics()
	require.NoError(t, err)

	m.RecordNodeDead(context.Background(), "plus")

	dead := findMetric(collectMetrics(t, reader), "cellink.node.dead")
	require.NotNil(t, dead)
	assert.Equal(t, int64(1), sumFor(t, dead, "plus"))
}

func TestRecordRun(t *testing.T) {
	reader := setupMetricsTest(t)
	m, err := newOtelMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordRun(ctx, true, 20*time.Millisecond)
	m.RecordRun(ctx, false, 10*time.Millisecond)

	rm := collectMetrics(t, reader)

	runs := findMetric(rm, "cellink.run.count")
	require.NotNil(t, runs)
	sum, ok := runs.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Len(t, sum.DataPoints, 2, "one data point per success value")

	assert.NotNil(t, findMetric(rm, "cellink.run.latency_ms"))
}
