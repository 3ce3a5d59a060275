package monitor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pioneer-egui/timeline/internal/frame"
)

type capturedPoint struct {
	bucket string
	line   string
}

type fakeWriter struct {
	mu     sync.Mutex
	points []capturedPoint
	err    error
}

func (w *fakeWriter) WritePoint(_ context.Context, bucket string, p *influxdb2_write.Point) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.points = append(w.points, capturedPoint{bucket: bucket, line: influxdb2_write.PointToLineProtocol(p, time.Millisecond)})
	return nil
}

func (w *fakeWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.points)
}

func newService(w PointWriter, cfg Config) *Service {
	return NewService(cfg, Dependencies{
		Writer: w,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

var t0 = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

func TestFlush_AggregatesWindow(t *testing.T) {
	w := &fakeWriter{}
	s := newService(w, Config{Host: "bench"})

	s.Observe(frame.TickStats{Frame: 1, Drained: 2, Replayed: 1, Backlog: 5, Duration: 2 * time.Millisecond})
	s.Observe(frame.TickStats{Frame: 2, Drained: 3, Replayed: 0, Backlog: 1, Duration: 4 * time.Millisecond})

	require.NoError(t, s.Flush(context.Background(), t0))
	require.Equal(t, 1, w.count())

	got := w.points[0]
	assert.Equal(t, DefaultBucket, got.bucket)
	assert.Contains(t, got.line, "frame_loop,host=bench ")
	assert.Contains(t, got.line, "ticks=2i")
	assert.Contains(t, got.line, "drained=5i")
	assert.Contains(t, got.line, "replayed=1i")
	assert.Contains(t, got.line, "backlog=1i")
	assert.Contains(t, got.line, "max_backlog=5i")
	assert.Contains(t, got.line, "avg_tick_ms=3")
	assert.Contains(t, got.line, "frame=2i")
}

func TestFlush_ResetsWindow(t *testing.T) {
	w := &fakeWriter{}
	s := newService(w, Config{})

	s.Observe(frame.TickStats{Frame: 1, Drained: 4, Backlog: 7})
	require.NoError(t, s.Flush(context.Background(), t0))
	require.NoError(t, s.Flush(context.Background(), t0.Add(time.Second)))
	assert.Equal(t, 1, w.count(), "empty window is skipped")

	s.Observe(frame.TickStats{Frame: 2, Drained: 1, Backlog: 7})
	p := s.Point(t0)
	require.NotNil(t, p)
	line := influxdb2_write.PointToLineProtocol(p, time.Millisecond)
	assert.Contains(t, line, "ticks=1i")
	assert.Contains(t, line, "drained=1i")
}

func TestPoint_NilWhenEmpty(t *testing.T) {
	s := newService(&fakeWriter{}, Config{})
	assert.Nil(t, s.Point(t0))
}

func TestFlush_WriterError(t *testing.T) {
	w := &fakeWriter{err: errors.New("backup file closed")}
	s := newService(w, Config{Bucket: "custom"})
	s.Observe(frame.TickStats{Frame: 1})
	assert.Error(t, s.Flush(context.Background(), t0))
}

func TestStartStop(t *testing.T) {
	w := &fakeWriter{}
	s := newService(w, Config{Interval: 5 * time.Millisecond})

	s.Start()
	s.Start()
	assert.True(t, s.IsRunning())

	s.Observe(frame.TickStats{Frame: 1})
	require.Eventually(t, func() bool { return w.count() >= 1 }, 2*time.Second, time.Millisecond)

	s.Observe(frame.TickStats{Frame: 2})
	s.Stop()
	assert.False(t, s.IsRunning())
	assert.GreaterOrEqual(t, w.count(), 2, "stop flushes the last window")

	s.Stop()
}
