package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records scheduler metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordNodeExecution records one forward computation with its duration
	// and error status.
	RecordNodeExecution(ctx context.Context, node string, duration time.Duration, err error)

	// RecordNodeDead records a node that was marked dead without running.
	RecordNodeDead(ctx context.Context, node string)

	// RecordRun records a converged scheduler run.
	RecordRun(ctx context.Context, success bool, duration time.Duration)
}

type otelMetrics struct {
	nodeExecutions metric.Int64Counter
	nodeLatency    metric.Float64Histogram
	nodeErrors     metric.Int64Counter
	nodeDead       metric.Int64Counter
	runCount       metric.Int64Counter
	runLatency     metric.Float64Histogram
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("cellink")

	nodeExecutions, err := meter.Int64Counter("cellink.node.executions",
		metric.WithDescription("Number of forward computations run by the scheduler"),
	)
	if err != nil {
		return nil, err
	}

	nodeLatency, err := meter.Float64Histogram("cellink.node.latency_ms",
		metric.WithDescription("Forward computation latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	nodeErrors, err := meter.Int64Counter("cellink.node.errors",
		metric.WithDescription("Number of forward computations that raised an error"),
	)
	if err != nil {
		return nil, err
	}

	nodeDead, err := meter.Int64Counter("cellink.node.dead",
		metric.WithDescription("Number of nodes marked dead without running"),
	)
	if err != nil {
		return nil, err
	}

	runCount, err := meter.Int64Counter("cellink.run.count",
		metric.WithDescription("Number of scheduler runs"),
	)
	if err != nil {
		return nil, err
	}

	runLatency, err := meter.Float64Histogram("cellink.run.latency_ms",
		metric.WithDescription("Scheduler run latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		nodeExecutions: nodeExecutions,
		nodeLatency:    nodeLatency,
		nodeErrors:     nodeErrors,
		nodeDead:       nodeDead,
		runCount:       runCount,
		runLatency:     runLatency,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder backed by the global OTel
// meter provider. If instrument creation fails it logs a warning and returns
// NoopMetrics{}.
//
// Configure the provider first:
//
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

func (m *otelMetrics) RecordNodeExecution(ctx context.Context, node string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("node", node))

	m.nodeExecutions.Add(ctx, 1, attrs)
	m.nodeLatency.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	if err != nil {
		m.nodeErrors.Add(ctx, 1, attrs)
	}
}

func (m *otelMetrics) RecordNodeDead(ctx context.Context, node string) {
	m.nodeDead.Add(ctx, 1, metric.WithAttributes(attribute.String("node", node)))
}

func (m *otelMetrics) RecordRun(ctx context.Context, success bool, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.Bool("success", success))
	m.runCount.Add(ctx, 1, attrs)
	m.runLatency.Record(ctx, float64(duration.Microseconds())/1000, attrs)
}
