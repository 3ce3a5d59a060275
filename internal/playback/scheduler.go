// Package playback schedules recorded events for re-application on a
// timeline relative to the start of playback.
package playback

import (
	"time"

	"github.com/pioneer-egui/timeline/internal/recorder"
)

// Scheduler is a two-state machine: idle or playing. It owns a cursor into
// an event log it does not own.
//
// Like the recorder it does no locking of its own.
type Scheduler struct {
	playing   bool
	startedAt time.Time
	cursor    int
}

// New creates an idle scheduler.
func New() *Scheduler {
	return &Scheduler{}
}

// Start begins playback at now. It does nothing and returns false when
// already playing or when the log is empty.
func (s *Scheduler) Start(now time.Time, logLen int) bool {
	if s.playing || logLen == 0 {
		return false
	}
	s.playing = true
	s.cursor = 0
	s.startedAt = now
	return true
}

// Stop aborts playback, resetting the cursor. Unreplayed events are left
// untouched. It returns false when not playing.
func (s *Scheduler) Stop() bool {
	if !s.playing {
		return false
	}
	s.reset()
	return true
}

// Next returns the event at the cursor when it is due at now and advances
// the cursor. Once the cursor passes the end of log, the scheduler returns
// to idle. Callers loop on Next until it reports false.
func (s *Scheduler) Next(now time.Time, log []recorder.Event) (recorder.Event, bool) {
	if !s.playing {
		return recorder.Event{}, false
	}
	if s.cursor >= len(log) {
		s.reset()
		return recorder.Event{}, false
	}

	elapsed := now.Sub(s.startedAt).Milliseconds()
	ev := log[s.cursor]
	if elapsed < 0 || ev.Timestamp > uint64(elapsed) {
		return recorder.Event{}, false
	}

	s.cursor++
	if s.cursor >= len(log) {
		s.reset()
	}
	return ev, true
}

// Playing reports whether a playback session is active.
func (s *Scheduler) Playing() bool { return s.playing }

// Cursor returns the index of the next event to replay.
func (s *Scheduler) Cursor() int { return s.cursor }

// StartedAt returns the playback start instant, or the zero time when idle.
func (s *Scheduler) StartedAt() time.Time { return s.startedAt }

func (s *Scheduler) reset() {
	s.playing = false
	s.cursor = 0
	s.startedAt = time.Time{}
}
