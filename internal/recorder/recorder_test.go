package recorder

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

func TestStart_ClearsPreviousLog(t *testing.T) {
	r := New()
	require.True(t, r.Start(t0))
	r.Append("set_label", "", json.RawMessage(`{"text":"A"}`), t0)
	r.Stop()
	require.Equal(t, 1, r.Len())

	require.True(t, r.Start(t0.Add(time.Second)))
	assert.Equal(t, 0, r.Len())
	assert.True(t, r.Active())
	assert.Equal(t, t0.Add(time.Second), r.StartedAt())
}

func TestStart_WhileRecordingIsNoop(t *testing.T) {
	r := New()
	require.True(t, r.Start(t0))
	session := r.SessionID()
	r.Append("rotate_3d", "", json.RawMessage(`{"angle":1}`), t0.Add(10*time.Millisecond))

	assert.False(t, r.Start(t0.Add(time.Hour)))
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, t0, r.StartedAt())
	assert.Equal(t, session, r.SessionID())
}

func TestAppend_IdleIsNoop(t *testing.T) {
	r := New()
	assert.False(t, r.Append("set_label", "", json.RawMessage(`{}`), t0))
	assert.Equal(t, 0, r.Len())
}

func TestStop_ReturnsEventsInOrder(t *testing.T) {
	r := New()
	r.Start(t0)

	const n = 25
	for i := 0; i < n; i++ {
		r.Append("rotate_3d", "", json.RawMessage(`{"angle":1}`), t0.Add(time.Duration(i*3)*time.Millisecond))
	}

	events := r.Stop()
	require.Len(t, events, n)
	for i := 1; i < n; i++ {
		assert.LessOrEqual(t, events[i-1].Timestamp, events[i].Timestamp)
	}
	assert.Equal(t, uint64(72), events[n-1].Timestamp)
	assert.False(t, r.Active())
	assert.True(t, r.StartedAt().IsZero())
	assert.Equal(t, n, r.Len(), "log retained for playback")
}

func TestStop_IdleReturnsEmpty(t *testing.T) {
	r := New()
	events := r.Stop()
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestStop_ReturnsCopy(t *testing.T) {
	r := New()
	r.Start(t0)
	r.Append("set_label", "", json.RawMessage(`{"text":"A"}`), t0)

	events := r.Stop()
	events[0].EventType = "tampered"

	assert.Equal(t, "set_label", r.Events()[0].EventType)
}

func TestAppend_ClockBeforeStartStampsZero(t *testing.T) {
	r := New()
	r.Start(t0)
	r.Append("set_label", "", json.RawMessage(`{"text":"A"}`), t0.Add(-time.Second))
	assert.Equal(t, uint64(0), r.Events()[0].Timestamp)
}

func TestEvent_WireShape(t *testing.T) {
	r := New()
	r.Start(t0)
	r.Append("set_label", "", json.RawMessage(`{"text":"A"}`), t0)
	r.Append("set_checkbox", "notificationsCheckbox", json.RawMessage(`{"id":"notificationsCheckbox","checked":true}`), t0.Add(50*time.Millisecond))
	r.Append("add_3d_object", "mainScene", json.RawMessage(`{"scene_id":"mainScene","object_id":"cube1","object_type":"cube","size":1}`), t0.Add(1250*time.Millisecond))

	data, err := json.MarshalIndent(r.Stop(), "", "  ")
	require.NoError(t, err)
	data = append(data, '\n')

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "recorded_events", data)
}
