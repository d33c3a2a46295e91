package reactivecell

import (
	"testing"
	"time"
)

// TestLatencyMetricsExactPercentiles verifies the exact-sort fallback used
// below the sketch's minimum sample count.
func TestLatencyMetricsExactPercentiles(t *testing.T) {
	var l LatencyMetrics
	for _, d := range []time.Duration{
		4 * time.Millisecond,
		1 * time.Millisecond,
		3 * time.Millisecond,
		2 * time.Millisecond,
	} {
		l.record(d)
	}

	l.sample()

	if l.Max != 4*time.Millisecond {
		t.Errorf("Max = %v, want 4ms", l.Max)
	}
	if l.P50 != 3*time.Millisecond {
		t.Errorf("P50 = %v, want 3ms", l.P50)
	}
	if l.Mean != 2500*time.Microsecond {
		t.Errorf("Mean = %v, want 2.5ms", l.Mean)
	}
	if l.count() != 4 {
		t.Errorf("count = %d, want 4", l.count())
	}
}

// TestLatencyMetricsSketchPath verifies the streaming sketch keeps the
// percentile ordering invariant over a larger sample stream.
func TestLatencyMetricsSketchPath(t *testing.T) {
	var l LatencyMetrics
	for i := 1; i <= 200; i++ {
		l.record(time.Duration(i) * time.Microsecond)
	}

	l.sample()

	if l.P50 > l.P90 || l.P90 > l.P95 || l.P95 > l.P99 {
		t.Errorf("percentile ordering violated: P50=%v P90=%v P95=%v P99=%v",
			l.P50, l.P90, l.P95, l.P99)
	}
	if l.Max != 200*time.Microsecond {
		t.Errorf("Max = %v, want 200µs", l.Max)
	}
	if l.P99 > l.Max {
		t.Errorf("P99 %v exceeds Max %v", l.P99, l.Max)
	}
	if l.Mean == 0 {
		t.Error("Mean should be non-zero")
	}
}

func TestQueueDepthMetrics(t *testing.T) {
	var q QueueDepthMetrics

	q.update("microtask", 3)
	q.update("microtask", 7)
	q.update("microtask", 2)
	q.update("idle", 1)

	snap := q.snapshot()

	micro, ok := snap["microtask"]
	if !ok {
		t.Fatal("missing microtask gauge")
	}
	if micro.Current != 2 {
		t.Errorf("Current = %d, want 2", micro.Current)
	}
	if micro.Max != 7 {
		t.Errorf("Max = %d, want 7", micro.Max)
	}
	if micro.Avg <= 0 {
		t.Errorf("Avg = %f, want > 0", micro.Avg)
	}
	if _, ok := snap["idle"]; !ok {
		t.Error("missing idle gauge")
	}
}

func TestTPSCounterBasic(t *testing.T) {
	counter := NewTPSCounter(time.Second, 100*time.Millisecond)

	for i := 0; i < 10; i++ {
		counter.Increment()
	}

	if tps := counter.TPS(); tps <= 0 {
		t.Errorf("TPS = %f, want > 0 after increments", tps)
	}
}

func TestTPSCounterRotatesOutOldBuckets(t *testing.T) {
	counter := NewTPSCounter(100*time.Millisecond, 10*time.Millisecond)

	counter.Increment()
	time.Sleep(150 * time.Millisecond)

	if tps := counter.TPS(); tps != 0 {
		t.Errorf("TPS = %f, want 0 after the full window has rotated out", tps)
	}
}

func TestTPSCounterRejectsBadConfiguration(t *testing.T) {
	for _, tc := range []struct {
		name   string
		window time.Duration
		bucket time.Duration
	}{
		{"zero window", 0, time.Millisecond},
		{"zero bucket", time.Second, 0},
		{"bucket exceeds window", time.Millisecond, time.Second},
	} {
		t.Run(tc.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("expected panic")
				}
			}()
			NewTPSCounter(tc.window, tc.bucket)
		})
	}
}

// TestMetricsSnapshotNilSafe verifies a disabled engine's nil *Metrics still
// yields a usable zero snapshot.
func TestMetricsSnapshotNilSafe(t *testing.T) {
	var m *Metrics
	snap := m.Snapshot()
	if snap.DispatchCount != 0 {
		t.Errorf("DispatchCount = %d, want 0", snap.DispatchCount)
	}
	if snap.QueueDepth == nil {
		t.Error("QueueDepth map should be non-nil even when disabled")
	}
	m.recordDispatch(time.Millisecond)
	m.recordQueueDepth("microtask", 1)
}

// TestMetricsQueueDepthEndToEnd verifies queue depth gauges are fed from the
// real enqueue/drain path.
func TestMetricsQueueDepthEndToEnd(t *testing.T) {
	e, err := New(WithMetrics(true))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(e.Shutdown)

	c := e.NewCell(0)
	sub := NewSubscriber(func() {})
	if _, _, err := c.Subscribe(sub, WithClock(ClockMicrotask)); err != nil {
		t.Fatal(err)
	}

	c.Set(1)

	snap := e.Metrics()
	gauge, ok := snap.QueueDepth["microtask"]
	if !ok {
		t.Fatal("missing microtask depth gauge")
	}
	if gauge.Max < 1 {
		t.Errorf("Max depth = %d, want >= 1", gauge.Max)
	}
	if gauge.Current != 0 {
		t.Errorf("Current depth = %d, want 0 after the checkpoint drain", gauge.Current)
	}
	if snap.DispatchCount < 1 {
		t.Errorf("DispatchCount = %d, want >= 1", snap.DispatchCount)
	}
}
