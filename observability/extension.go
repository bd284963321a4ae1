// Package observability provides an extension that records cluster-wide
// rendering metrics through OpenTelemetry.
package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jjones-jr/parview/cluster"
	"github.com/jjones-jr/parview/dataset"
	"github.com/jjones-jr/parview/ext"
	"github.com/jjones-jr/parview/grid"
	"github.com/jjones-jr/parview/id"
	"github.com/jjones-jr/parview/render"
)

// meterName is the instrumentation scope name for parview metrics.
const meterName = "github.com/jjones-jr/parview/observability"

// Compile-time interface checks.
var (
	_ ext.Extension     = (*MetricsExtension)(nil)
	_ ext.ActorReady    = (*MetricsExtension)(nil)
	_ ext.ActorClosed   = (*MetricsExtension)(nil)
	_ ext.FrameRendered = (*MetricsExtension)(nil)
	_ ext.FrameFailed   = (*MetricsExtension)(nil)
	_ ext.BlockAssigned = (*MetricsExtension)(nil)
	_ ext.DatasetLoaded = (*MetricsExtension)(nil)
	_ ext.WorkerJoined  = (*MetricsExtension)(nil)
	_ ext.WorkerLeft    = (*MetricsExtension)(nil)
)

// MetricsExtension records lifecycle metrics for the rendering cluster.
// Register it on a node to track frame throughput and latency, active
// actor and worker counts, block assignments, and dataset load times.
type MetricsExtension struct {
	framesRendered  metric.Int64Counter
	framesFailed    metric.Int64Counter
	renderDuration  metric.Float64Histogram
	activeActors    metric.Int64UpDownCounter
	activeWorkers   metric.Int64UpDownCounter
	blocksAssigned  metric.Int64Counter
	datasetDuration metric.Float64Histogram
}

// NewMetricsExtension creates a MetricsExtension on the global OTel
// MeterProvider. Without a configured provider the instruments are
// noops and the extension costs nothing.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the
// provided meter. This variant allows injecting a specific
// MeterProvider for testing.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	m := &MetricsExtension{}

	// On error the OTel API returns noop instruments, so the extension
	// degrades gracefully.
	m.framesRendered, _ = meter.Int64Counter(
		"parview.frame.rendered",
		metric.WithDescription("Total frames rendered by actors"),
		metric.WithUnit("{frame}"),
	)
	m.framesFailed, _ = meter.Int64Counter(
		"parview.frame.failed",
		metric.WithDescription("Total render requests that failed"),
		metric.WithUnit("{frame}"),
	)
	m.renderDuration, _ = meter.Float64Histogram(
		"parview.frame.duration",
		metric.WithDescription("Per-frame render time in seconds"),
		metric.WithUnit("s"),
	)
	m.activeActors, _ = meter.Int64UpDownCounter(
		"parview.actor.active",
		metric.WithDescription("Actors currently holding a block"),
		metric.WithUnit("{actor}"),
	)
	m.activeWorkers, _ = meter.Int64UpDownCounter(
		"parview.worker.active",
		metric.WithDescription("Workers currently registered in the cluster"),
		metric.WithUnit("{worker}"),
	)
	m.blocksAssigned, _ = meter.Int64Counter(
		"parview.block.assigned",
		metric.WithDescription("Block-to-worker assignments made by the partitioner"),
		metric.WithUnit("{block}"),
	)
	m.datasetDuration, _ = meter.Float64Histogram(
		"parview.dataset.load.duration",
		metric.WithDescription("Dataset fetch-and-cache time in seconds"),
		metric.WithUnit("s"),
	)
	return m
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnActorReady implements ext.ActorReady.
func (m *MetricsExtension) OnActorReady(ctx context.Context, _ id.ActorID, block grid.Block) error {
	m.activeActors.Add(ctx, 1, metric.WithAttributes(attribute.Int("rank", block.Rank)))
	return nil
}

// OnActorClosed implements ext.ActorClosed.
func (m *MetricsExtension) OnActorClosed(ctx context.Context, _ id.ActorID) error {
	m.activeActors.Add(ctx, -1)
	return nil
}

// OnFrameRendered implements ext.FrameRendered.
func (m *MetricsExtension) OnFrameRendered(ctx context.Context, f *render.Frame, elapsed time.Duration) error {
	attrs := metric.WithAttributes(attribute.Int("rank", f.Rank))
	m.framesRendered.Add(ctx, 1, attrs)
	m.renderDuration.Record(ctx, elapsed.Seconds(), attrs)
	return nil
}

// OnFrameFailed implements ext.FrameFailed.
func (m *MetricsExtension) OnFrameFailed(ctx context.Context, _ id.ActorID, _ error) error {
	m.framesFailed.Add(ctx, 1)
	return nil
}

// OnBlockAssigned implements ext.BlockAssigned.
func (m *MetricsExtension) OnBlockAssigned(ctx context.Context, block grid.Block) error {
	m.blocksAssigned.Add(ctx, 1, metric.WithAttributes(attribute.Int("rank", block.Rank)))
	return nil
}

// OnDatasetLoaded implements ext.DatasetLoaded.
func (m *MetricsExtension) OnDatasetLoaded(ctx context.Context, meta *dataset.Meta, elapsed time.Duration) error {
	m.datasetDuration.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(attribute.String("dataset", meta.Name)))
	return nil
}

// OnWorkerJoined implements ext.WorkerJoined.
func (m *MetricsExtension) OnWorkerJoined(ctx context.Context, _ *cluster.Worker) error {
	m.activeWorkers.Add(ctx, 1)
	return nil
}

// OnWorkerLeft implements ext.WorkerLeft.
func (m *MetricsExtension) OnWorkerLeft(ctx context.Context, _ id.WorkerID) error {
	m.activeWorkers.Add(ctx, -1)
	return nil
}
