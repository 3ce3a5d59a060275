// Package monitor aggregates frame loop statistics and periodically writes
// them to InfluxDB.
package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/pioneer-egui/timeline/internal/frame"
)

const (
	Measurement   = "frame_loop"
	DefaultBucket = "pioneer_performance"
)

// PointWriter is satisfied by *influx.Manager.
type PointWriter interface {
	WritePoint(ctx context.Context, bucket string, point *influxdb2_write.Point) error
}

// Config holds monitor settings.
type Config struct {
	Interval time.Duration
	Bucket   string
	Host     string
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Writer PointWriter
	Logger *slog.Logger
}

// window accumulates stats between flushes.
type window struct {
	ticks      int64
	drained    int64
	replayed   int64
	backlog    int64
	maxBacklog int64
	busy       time.Duration
	lastFrame  uint64
}

// Service aggregates TickStats and flushes them on an interval.
type Service struct {
	cfg  Config
	deps Dependencies

	mu        sync.Mutex
	win       window
	isRunning bool
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(cfg Config, deps Dependencies) *Service {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.Bucket == "" {
		cfg.Bucket = DefaultBucket
	}
	return &Service{cfg: cfg, deps: deps}
}

// Observe implements frame.StatsSink.
func (s *Service) Observe(ts frame.TickStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.win.ticks++
	s.win.drained += int64(ts.Drained)
	s.win.replayed += int64(ts.Replayed)
	s.win.backlog = int64(ts.Backlog)
	if s.win.backlog > s.win.maxBacklog {
		s.win.maxBacklog = s.win.backlog
	}
	s.win.busy += ts.Duration
	s.win.lastFrame = ts.Frame
}

// Point builds the point for the current window without resetting it.
// It returns nil when no tick was observed.
func (s *Service) Point(now time.Time) *influxdb2_write.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pointLocked(now)
}

func (s *Service) pointLocked(now time.Time) *influxdb2_write.Point {
	w := s.win
	if w.ticks == 0 {
		return nil
	}
	avgMs := float64(w.busy) / float64(w.ticks) / float64(time.Millisecond)

	tags := map[string]string{}
	if s.cfg.Host != "" {
		tags["host"] = s.cfg.Host
	}
	return influxdb2_write.NewPoint(Measurement, tags, map[string]any{
		"ticks":       w.ticks,
		"drained":     w.drained,
		"replayed":    w.replayed,
		"backlog":     w.backlog,
		"max_backlog": w.maxBacklog,
		"avg_tick_ms": avgMs,
		"frame":       int64(w.lastFrame),
	}, now)
}

// Flush writes the current window and starts a new one. Empty windows are
// skipped.
func (s *Service) Flush(ctx context.Context, now time.Time) error {
	s.mu.Lock()
	p := s.pointLocked(now)
	s.win = window{backlog: s.win.backlog}
	s.mu.Unlock()

	if p == nil || s.deps.Writer == nil {
		return nil
	}
	return s.deps.Writer.WritePoint(ctx, s.cfg.Bucket, p)
}

// IsRunning returns whether the flush loop is running
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// Start starts the flush goroutine
func (s *Service) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		s.deps.Logger.Debug("Starting frame monitor", "interval", s.cfg.Interval, "bucket", s.cfg.Bucket)

		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				if err := s.Flush(context.Background(), time.Now()); err != nil {
					s.deps.Logger.Error("Final monitor flush failed", "error", err)
				}
				return
			case now := <-ticker.C:
				if err := s.Flush(context.Background(), now); err != nil {
					s.deps.Logger.Error("Monitor flush failed", "error", err)
				}
			}
		}
	}()
}

// Stop stops the flush loop after a final flush and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	stop, done := s.stopChan, s.done
	s.stopChan = nil
	s.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	<-done
}
