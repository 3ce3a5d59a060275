// Package recorder captures applied commands as timestamped events.
package recorder

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is one recorded command application.
// Timestamp is milliseconds since the recording session started.
type Event struct {
	EventType   string          `json:"eventType"`
	ComponentID string          `json:"componentId"`
	EventData   json.RawMessage `json:"eventData"`
	Timestamp   uint64          `json:"timestamp"`
}

// Recorder is a two-state machine: idle or recording. It holds the log of
// the current or most recently stopped session.
//
// Recorder does no locking; the dispatcher calls it inside its critical
// sections.
type Recorder struct {
	active    bool
	startedAt time.Time
	sessionID string
	events    []Event
}

// New creates an idle recorder with an empty log.
func New() *Recorder {
	return &Recorder{}
}

// Start begins a new session at now, discarding the previous log.
// It returns false and changes nothing if a session is already active.
func (r *Recorder) Start(now time.Time) bool {
	if r.active {
		return false
	}
	r.active = true
	r.startedAt = now
	r.sessionID = uuid.NewString()
	r.events = nil
	return true
}

// Append adds an event stamped with the time elapsed since Start. It is a
// no-op when idle.
func (r *Recorder) Append(eventType, componentID string, data json.RawMessage, now time.Time) bool {
	if !r.active {
		return false
	}
	r.events = append(r.events, Event{
		EventType:   eventType,
		ComponentID: componentID,
		EventData:   data,
		Timestamp:   elapsedMillis(r.startedAt, now),
	})
	return true
}

// Stop ends the session and returns a copy of its log. The log is kept for
// playback. When idle, Stop returns an empty slice.
func (r *Recorder) Stop() []Event {
	if !r.active {
		return []Event{}
	}
	r.active = false
	r.startedAt = time.Time{}
	return r.copyEvents()
}

// Active reports whether a session is being recorded.
func (r *Recorder) Active() bool { return r.active }

// StartedAt returns the session start instant, or the zero time when idle.
func (r *Recorder) StartedAt() time.Time { return r.startedAt }

// SessionID identifies the current or most recent session.
func (r *Recorder) SessionID() string { return r.sessionID }

// Len returns the number of events in the log.
func (r *Recorder) Len() int { return len(r.events) }

// Events returns the log without copying. Callers must not modify it and
// must not retain it past the critical section.
func (r *Recorder) Events() []Event { return r.events }

func (r *Recorder) copyEvents() []Event {
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func elapsedMillis(start, now time.Time) uint64 {
	d := now.Sub(start)
	if d < 0 {
		return 0
	}
	return uint64(d.Milliseconds())
}
