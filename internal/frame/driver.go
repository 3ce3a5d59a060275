// Package frame drives the per-frame tick: drain network input, step the
// script, advance playback and hand a snapshot to the renderer.
package frame

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/pioneer-egui/timeline/internal/dispatcher"
	"github.com/pioneer-egui/timeline/internal/ingest"
)

// DefaultMinInterval gates ticks to roughly 60 per second.
const DefaultMinInterval = 16 * time.Millisecond

// Source yields pending network messages without blocking.
type Source interface {
	Drain() []ingest.Message
	Backlog() int
}

// MessageSink receives each drained message. Payloads are opaque.
type MessageSink interface {
	Handle(msg ingest.Message)
}

// Stepper is the script hook run once per tick with the time since the
// previous tick.
type Stepper interface {
	Step(dt time.Duration) error
}

// Timeline is the part of the dispatcher the driver needs.
type Timeline interface {
	AdvancePlayback() int
	Snapshot() dispatcher.Snapshot
}

// Renderer draws one frame from a consistent snapshot.
type Renderer interface {
	Render(snap dispatcher.Snapshot)
}

// StatsSink observes per-tick statistics.
type StatsSink interface {
	Observe(stats TickStats)
}

// TickStats describes one admitted tick.
type TickStats struct {
	Frame    uint64
	At       time.Time
	Drained  int
	Replayed int
	Backlog  int
	Duration time.Duration
}

// Config holds driver settings.
type Config struct {
	MinInterval time.Duration
}

// Deps are the driver's collaborators. Only Timeline is required.
type Deps struct {
	Source   Source
	Sink     MessageSink
	Stepper  Stepper
	Timeline Timeline
	Renderer Renderer
	Stats    StatsSink
}

// Driver runs the frame loop on a single goroutine.
type Driver struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger

	last  time.Time
	frame atomic.Uint64
}

// New creates a driver.
func New(cfg Config, deps Deps, logger *slog.Logger) *Driver {
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = DefaultMinInterval
	}
	if deps.Sink == nil {
		deps.Sink = LogSink{Logger: logger}
	}
	return &Driver{cfg: cfg, deps: deps, logger: logger}
}

// Tick runs one frame at now unless less than the minimum interval has
// passed since the previous admitted tick. It reports whether the tick ran.
func (d *Driver) Tick(now time.Time) (TickStats, bool) {
	var dt time.Duration
	if !d.last.IsZero() {
		dt = now.Sub(d.last)
		if dt < d.cfg.MinInterval {
			return TickStats{}, false
		}
	}
	d.last = now
	frame := d.frame.Add(1)
	start := time.Now()

	stats := TickStats{Frame: frame, At: now}

	if d.deps.Source != nil {
		msgs := d.deps.Source.Drain()
		for _, m := range msgs {
			d.deps.Sink.Handle(m)
		}
		stats.Drained = len(msgs)
	}

	if d.deps.Stepper != nil {
		if err := d.deps.Stepper.Step(dt); err != nil {
			d.logger.Error("Script step failed", "frame", frame, "error", err)
		}
	}

	stats.Replayed = d.deps.Timeline.AdvancePlayback()

	snap := d.deps.Timeline.Snapshot()
	if d.deps.Renderer != nil {
		d.deps.Renderer.Render(snap)
	}

	if d.deps.Source != nil {
		stats.Backlog = d.deps.Source.Backlog()
	}
	stats.Duration = time.Since(start)

	if d.deps.Stats != nil {
		d.deps.Stats.Observe(stats)
	}
	return stats, true
}

// Run ticks until ctx is cancelled.
func (d *Driver) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.MinInterval)
	defer ticker.Stop()

	d.logger.Info("Frame loop started", "minInterval", d.cfg.MinInterval)
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Frame loop stopped", "frames", d.frame.Load())
			return nil
		case now := <-ticker.C:
			d.Tick(now)
		}
	}
}

// Frames returns the number of admitted ticks. Safe to call from any
// goroutine.
func (d *Driver) Frames() uint64 {
	return d.frame.Load()
}

// LogSink logs each message at debug level.
type LogSink struct {
	Logger *slog.Logger
}

// Handle implements MessageSink.
func (s LogSink) Handle(msg ingest.Message) {
	s.Logger.Debug("Network message", "conn", msg.ConnID, "payload", msg.Payload)
}

// LogRenderer logs a summary of every Every-th snapshot. It stands in for a
// real renderer when running headless.
type LogRenderer struct {
	Logger *slog.Logger
	Every  uint64

	frames uint64
}

// Render implements Renderer.
func (r *LogRenderer) Render(snap dispatcher.Snapshot) {
	r.frames++
	if r.Every == 0 || r.frames%r.Every != 0 {
		return
	}
	r.Logger.Info("Frame",
		"frame", r.frames,
		"label", snap.State.Label,
		"slider", snap.State.Slider,
		"rotation", snap.State.Rotation,
		"recording", snap.Recording,
		"recordedEvents", snap.RecordedEvents,
		"playing", snap.Playing,
		"cursor", snap.PlaybackCursor,
	)
}
