package observability_test

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/jjones-jr/parview/grid"
	"github.com/jjones-jr/parview/id"
	"github.com/jjones-jr/parview/observability"
	"github.com/jjones-jr/parview/render"
)

func setupExtension() (*sdkmetric.ManualReader, *observability.MetricsExtension) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	return reader, observability.NewMetricsExtensionWithMeter(mp.Meter("test"))
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	return rm
}

func sumValue(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("%s: expected Sum[int64], got %T", name, m.Data)
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func TestMetricsExtensionFrames(t *testing.T) {
	reader, m := setupExtension()
	ctx := context.Background()

	frame := render.NewFrame(2, 2)
	frame.Rank = 1
	_ = m.OnFrameRendered(ctx, frame, 25*time.Millisecond)
	_ = m.OnFrameRendered(ctx, frame, 30*time.Millisecond)
	_ = m.OnFrameFailed(ctx, id.NewActorID(), errors.New("boom"))

	rm := collect(t, reader)
	if got := sumValue(t, rm, "parview.frame.rendered"); got != 2 {
		t.Errorf("frames rendered = %d, want 2", got)
	}
	if got := sumValue(t, rm, "parview.frame.failed"); got != 1 {
		t.Errorf("frames failed = %d, want 1", got)
	}
}

func TestMetricsExtensionActorGauge(t *testing.T) {
	reader, m := setupExtension()
	ctx := context.Background()

	_ = m.OnActorReady(ctx, id.NewActorID(), grid.Block{Rank: 0})
	_ = m.OnActorReady(ctx, id.NewActorID(), grid.Block{Rank: 1})
	_ = m.OnActorClosed(ctx, id.NewActorID())

	rm := collect(t, reader)
	if got := sumValue(t, rm, "parview.actor.active"); got != 1 {
		t.Errorf("active actors = %d, want 1", got)
	}
}

func TestMetricsExtensionNoopSafeByDefault(t *testing.T) {
	// Without a global MeterProvider the instruments are noops and the
	// hooks must not panic.
	m := observability.NewMetricsExtension()
	ctx := context.Background()

	if err := m.OnFrameRendered(ctx, render.NewFrame(1, 1), time.Millisecond); err != nil {
		t.Fatalf("frame rendered hook: %v", err)
	}
	if err := m.OnWorkerJoined(ctx, nil); err != nil {
		t.Fatalf("worker joined hook: %v", err)
	}
}
