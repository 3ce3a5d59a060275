package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/pioneer-egui/timeline/internal/command"
	"github.com/pioneer-egui/timeline/internal/playback"
	"github.com/pioneer-egui/timeline/internal/recorder"
	"github.com/pioneer-egui/timeline/internal/state"
)

// ErrPoisoned is the panic value raised by every call after a panic escaped
// a critical section. Shared state may be inconsistent at that point.
var ErrPoisoned = errors.New("dispatcher state poisoned by earlier panic")

// Event is a named command invocation with a JSON-shaped payload.
type Event struct {
	Command   string
	Payload   json.RawMessage
	Origin    command.Origin
	Timestamp time.Time
}

// HandlerFunc processes an event and returns a result.
type HandlerFunc func(Event) (any, error)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*handlerConfig)

type handlerConfig struct {
	logged bool
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(c *handlerConfig) {
		c.logged = true
	}
}

// Config controls dispatcher behaviour.
type Config struct {
	// RecordReplayed makes commands re-applied by playback eligible for
	// recording. Off by default so a replay never grows the log it reads.
	RecordReplayed bool

	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

// Dispatcher is the only path by which the UI/3D state mutates. It owns the
// state, the recorder and the playback scheduler, and guards all three with
// one lock. Each command application is exactly one critical section.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	logger   Logger
	cfg      Config
	now      func() time.Time

	mu       sync.Mutex
	poisoned bool
	ui       *state.State
	rec      *recorder.Recorder
	player   *playback.Scheduler

	// OTEL metrics
	applied  metric.Int64Counter
	rejected metric.Int64Counter
	recorded metric.Int64Counter
	replayed metric.Int64Counter
	logSize  metric.Int64ObservableGauge
}

// New creates a Dispatcher with a handler registered for every command type.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger Logger, cfg Config) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		logger:   logger,
		cfg:      cfg,
		now:      cfg.Now,
		ui:       state.New(),
		rec:      recorder.New(),
		player:   playback.New(),
	}
	if d.now == nil {
		d.now = time.Now
	}

	if err := d.initMetrics(); err != nil {
		return nil, err
	}

	for _, typ := range command.Types {
		d.Register(typ, d.handleNamed, Logged())
	}

	return d, nil
}

func (d *Dispatcher) initMetrics() error {
	m := meter()

	var err error

	d.applied, err = m.Int64Counter(
		"dispatcher.commands.applied",
		metric.WithDescription("Total commands applied to state"),
	)
	if err != nil {
		return fmt.Errorf("creating applied counter: %w", err)
	}

	d.rejected, err = m.Int64Counter(
		"dispatcher.commands.rejected",
		metric.WithDescription("Total commands rejected by validation"),
	)
	if err != nil {
		return fmt.Errorf("creating rejected counter: %w", err)
	}

	d.recorded, err = m.Int64Counter(
		"dispatcher.events.recorded",
		metric.WithDescription("Total events appended to the recording log"),
	)
	if err != nil {
		return fmt.Errorf("creating recorded counter: %w", err)
	}

	d.replayed, err = m.Int64Counter(
		"dispatcher.events.replayed",
		metric.WithDescription("Total events re-applied by playback"),
	)
	if err != nil {
		return fmt.Errorf("creating replayed counter: %w", err)
	}

	d.logSize, err = m.Int64ObservableGauge(
		"dispatcher.recording.size",
		metric.WithDescription("Current number of events in the recording log"),
	)
	if err != nil {
		return fmt.Errorf("creating recording size gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			d.mu.Lock()
			n := d.rec.Len()
			d.mu.Unlock()
			o.ObserveInt64(d.logSize, int64(n))
			return nil
		},
		d.logSize,
	)
	if err != nil {
		return fmt.Errorf("registering recording size callback: %w", err)
	}

	return nil
}

// Register adds a handler for the given command name with optional
// configuration. Handlers reach state only through Apply.
func (d *Dispatcher) Register(name string, h HandlerFunc, opts ...Option) {
	cfg := &handlerConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := h

	if cfg.logged {
		handler = d.withLogging(name, handler)
	}

	d.handlers[name] = handler
}

// Dispatch routes an event to its registered handler.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	h, ok := d.handlers[e.Command]
	if !ok {
		d.rejected.Add(context.Background(), 1, metric.WithAttributes(attribute.String("command", e.Command)))
		return nil, fmt.Errorf("%w: unknown command: %s", command.ErrValidation, e.Command)
	}
	return h(e)
}

// HasHandler returns true if a handler is registered for the command.
func (d *Dispatcher) HasHandler(name string) bool {
	_, ok := d.handlers[name]
	return ok
}

// Issue applies c on behalf of a script. It implements command.Issuer.
func (d *Dispatcher) Issue(c command.Command) (any, error) {
	if c == nil {
		return d.Apply(c, command.OriginScript)
	}
	start := time.Now()
	d.logger.Debug("issuing command", "command", c.Type(), "origin", command.OriginScript.String())

	result, err := d.Apply(c, command.OriginScript)
	d.logOutcome(c.Type(), start, err)
	return result, err
}

func (d *Dispatcher) handleNamed(e Event) (any, error) {
	c, err := command.Decode(e.Command, e.Payload)
	if err != nil {
		d.rejected.Add(context.Background(), 1, metric.WithAttributes(attribute.String("command", e.Command)))
		return nil, err
	}
	return d.Apply(c, e.Origin)
}

// Apply validates and applies c in one critical section. When recording is
// active and c is recordable, the event is appended in the same section.
// The result is the captured log for stop_recording and nil otherwise.
func (d *Dispatcher) Apply(c command.Command, origin command.Origin) (any, error) {
	if err := command.Validate(c); err != nil {
		d.rejected.Add(context.Background(), 1)
		return nil, err
	}
	cmdAttr := metric.WithAttributes(attribute.String("command", c.Type()))

	result, recorded, err := d.applyOnce(c, origin)
	if err != nil {
		d.rejected.Add(context.Background(), 1, cmdAttr)
		return nil, err
	}

	d.applied.Add(context.Background(), 1, cmdAttr)
	if recorded {
		d.recorded.Add(context.Background(), 1, cmdAttr)
	}
	if obj, ok := c.(command.Add3DObject); ok {
		d.logger.Info("add 3d object requested", "payload", string(obj.Data), "origin", origin.String())
	}
	return result, nil
}

func (d *Dispatcher) applyOnce(c command.Command, origin command.Origin) (result any, recorded bool, err error) {
	d.lock()
	defer d.unlock()
	return d.applyLocked(c, origin, d.now())
}

// applyLocked must be called with d.mu held.
func (d *Dispatcher) applyLocked(c command.Command, origin command.Origin, now time.Time) (any, bool, error) {
	var payload json.RawMessage
	record := command.Recordable(c) && d.rec.Active() &&
		(origin != command.OriginReplay || d.cfg.RecordReplayed)
	if record {
		var err error
		payload, err = command.Payload(c)
		if err != nil {
			return nil, false, fmt.Errorf("%w: %v", command.ErrValidation, err)
		}
	}

	var result any
	switch c := c.(type) {
	case command.SetLabel:
		d.ui.SetLabel(c.Text)
	case command.SetSlider:
		d.ui.SetSlider(c.Value)
	case command.SetInput:
		d.ui.SetInput(c.Text)
	case command.SetCheckbox:
		d.ui.SetCheckbox(c.ID, c.Checked)
	case command.SetComboBox:
		d.ui.SetComboBox(c.ID, c.Selected, c.Options)
	case command.SetRadio:
		d.ui.SetRadio(c.ID, c.Selected)
	case command.SetProgress:
		d.ui.SetProgress(c.ID, c.Value)
	case command.Rotate3D:
		d.ui.Rotate(c.Angle)
	case command.Add3DObject:
		// No scene graph yet; the request is logged by Apply.
	case command.StartRecording:
		d.rec.Start(now)
	case command.StopRecording:
		result = d.rec.Stop()
	case command.StartPlayback:
		d.player.Start(now, d.rec.Len())
	case command.StopPlayback:
		d.player.Stop()
	default:
		return nil, false, fmt.Errorf("%w: unsupported command type %T", command.ErrValidation, c)
	}

	if record {
		d.rec.Append(c.Type(), command.ComponentID(c), payload, now)
	}
	return result, record, nil
}

// AdvancePlayback re-applies every recorded event that is due. Each event is
// applied in its own critical section, in recorded order. Events appended to
// the log during the call are left for later calls. It returns the number of
// events replayed successfully; events that fail to apply still move the
// cursor but are not counted.
func (d *Dispatcher) AdvancePlayback() int {
	pending := d.pendingReplays()
	n := 0
	for i := 0; i < pending; i++ {
		ev, ok, recorded, err := d.replayNext()
		if !ok {
			break
		}
		cmdAttr := metric.WithAttributes(attribute.String("command", ev.EventType))
		if err != nil {
			d.logger.Error("replay failed", "command", ev.EventType, "timestamp", ev.Timestamp, "error", err)
			d.rejected.Add(context.Background(), 1, cmdAttr)
			continue
		}
		n++
		d.replayed.Add(context.Background(), 1, cmdAttr)
		if recorded {
			d.recorded.Add(context.Background(), 1, cmdAttr)
		}
	}
	return n
}

func (d *Dispatcher) pendingReplays() int {
	d.lock()
	defer d.unlock()
	if !d.player.Playing() {
		return 0
	}
	return d.rec.Len() - d.player.Cursor()
}

func (d *Dispatcher) replayNext() (ev recorder.Event, ok, recorded bool, err error) {
	d.lock()
	defer d.unlock()

	now := d.now()
	ev, ok = d.player.Next(now, d.rec.Events())
	if !ok {
		return ev, false, false, nil
	}

	c, err := command.Decode(ev.EventType, ev.EventData)
	if err != nil {
		return ev, true, false, err
	}
	_, recorded, err = d.applyLocked(c, command.OriginReplay, now)
	return ev, true, recorded, err
}

// Snapshot is a consistent view of state and recorder/player control fields.
type Snapshot struct {
	State state.Snapshot

	Recording          bool
	RecordingStartedAt time.Time
	RecordingSession   string
	RecordedEvents     int

	Playing           bool
	PlaybackStartedAt time.Time
	PlaybackCursor    int
}

// Snapshot reads everything under the lock in one critical section.
func (d *Dispatcher) Snapshot() Snapshot {
	d.lock()
	defer d.unlock()
	return Snapshot{
		State:              d.ui.Snapshot(),
		Recording:          d.rec.Active(),
		RecordingStartedAt: d.rec.StartedAt(),
		RecordingSession:   d.rec.SessionID(),
		RecordedEvents:     d.rec.Len(),
		Playing:            d.player.Playing(),
		PlaybackStartedAt:  d.player.StartedAt(),
		PlaybackCursor:     d.player.Cursor(),
	}
}

// RecordedEvents returns a copy of the current or most recent log.
func (d *Dispatcher) RecordedEvents() []recorder.Event {
	d.lock()
	defer d.unlock()
	events := d.rec.Events()
	out := make([]recorder.Event, len(events))
	copy(out, events)
	return out
}

func (d *Dispatcher) lock() {
	d.mu.Lock()
	if d.poisoned {
		d.mu.Unlock()
		panic(ErrPoisoned)
	}
}

// unlock must be deferred directly so it can observe a panic.
func (d *Dispatcher) unlock() {
	if r := recover(); r != nil {
		d.poisoned = true
		d.mu.Unlock()
		panic(r)
	}
	d.mu.Unlock()
}

func (d *Dispatcher) withLogging(name string, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		start := time.Now()
		d.logger.Debug("handling event", "command", name, "origin", e.Origin.String(), "payload", len(e.Payload))

		result, err := h(e)
		d.logOutcome(name, start, err)

		return result, err
	}
}

func (d *Dispatcher) logOutcome(name string, start time.Time, err error) {
	if err != nil {
		d.logger.Error("event failed", "command", name, "duration", time.Since(start), "error", err)
	} else {
		d.logger.Debug("event complete", "command", name, "duration", time.Since(start))
	}
}
