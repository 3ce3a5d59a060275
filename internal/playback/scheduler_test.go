package playback

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pioneer-egui/timeline/internal/recorder"
)

var t0 = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

func logAt(stamps ...uint64) []recorder.Event {
	log := make([]recorder.Event, len(stamps))
	for i, ts := range stamps {
		log[i] = recorder.Event{EventType: "rotate_3d", Timestamp: ts}
	}
	return log
}

// drain collects every event due at now.
func drain(s *Scheduler, now time.Time, log []recorder.Event) []recorder.Event {
	var out []recorder.Event
	for {
		ev, ok := s.Next(now, log)
		if !ok {
			return out
		}
		out = append(out, ev)
	}
}

func TestStart_EmptyLogIsNoop(t *testing.T) {
	s := New()
	assert.False(t, s.Start(t0, 0))
	assert.False(t, s.Playing())
}

func TestStart_ResetsCursor(t *testing.T) {
	s := New()
	require.True(t, s.Start(t0, 3))
	assert.True(t, s.Playing())
	assert.Equal(t, 0, s.Cursor())
	assert.Equal(t, t0, s.StartedAt())
}

func TestStart_WhilePlayingIsNoop(t *testing.T) {
	s := New()
	log := logAt(0, 100)
	s.Start(t0, len(log))
	drain(s, t0, log)

	assert.False(t, s.Start(t0.Add(time.Hour), len(log)))
	assert.Equal(t, 1, s.Cursor())
	assert.Equal(t, t0, s.StartedAt())
}

func TestNext_ReleasesOnlyDueEvents(t *testing.T) {
	s := New()
	log := logAt(0, 50)
	s.Start(t0, len(log))

	first := drain(s, t0.Add(10*time.Millisecond), log)
	require.Len(t, first, 1)
	assert.Equal(t, uint64(0), first[0].Timestamp)
	assert.True(t, s.Playing())

	second := drain(s, t0.Add(60*time.Millisecond), log)
	require.Len(t, second, 1)
	assert.Equal(t, uint64(50), second[0].Timestamp)
	assert.False(t, s.Playing(), "playback completes when the cursor reaches the end")

	assert.Empty(t, drain(s, t0.Add(200*time.Millisecond), log))
	assert.False(t, s.Playing())
}

func TestNext_ManyEventsInOneTick(t *testing.T) {
	s := New()
	log := logAt(0, 1, 1, 2, 3, 5, 8, 13)
	s.Start(t0, len(log))

	got := drain(s, t0.Add(time.Second), log)
	require.Len(t, got, len(log))
	for i := range log {
		assert.Equal(t, log[i].Timestamp, got[i].Timestamp)
	}
	assert.False(t, s.Playing())
}

func TestNext_NeverSkips(t *testing.T) {
	s := New()
	log := logAt(0, 10, 20, 30, 40)
	s.Start(t0, len(log))

	var replayed []recorder.Event
	for ms := 0; ms <= 50; ms += 7 {
		replayed = append(replayed, drain(s, t0.Add(time.Duration(ms)*time.Millisecond), log)...)
	}
	assert.Equal(t, log, replayed)
}

func TestNext_IdleReturnsNothing(t *testing.T) {
	s := New()
	_, ok := s.Next(t0, logAt(0))
	assert.False(t, ok)
}

func TestNext_ShrunkLogCompletes(t *testing.T) {
	s := New()
	s.Start(t0, 3)

	_, ok := s.Next(t0.Add(time.Second), nil)
	assert.False(t, ok)
	assert.False(t, s.Playing())
}

func TestStop_MidSession(t *testing.T) {
	s := New()
	log := logAt(0, 500, 1000)
	s.Start(t0, len(log))
	drain(s, t0.Add(10*time.Millisecond), log)
	require.Equal(t, 1, s.Cursor())

	assert.True(t, s.Stop())
	assert.False(t, s.Playing())
	assert.Equal(t, 0, s.Cursor())
	assert.True(t, s.StartedAt().IsZero())

	assert.False(t, s.Stop(), "stopping twice is a no-op")
}
