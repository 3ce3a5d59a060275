package command

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_Valid(t *testing.T) {
	tests := []struct {
		typ     string
		payload string
		want    Command
	}{
		{TypeSetLabel, `{"text":"hello"}`, SetLabel{Text: "hello"}},
		{TypeSetSlider, `{"value":42.5}`, SetSlider{Value: 42.5}},
		{TypeSetInput, `{"text":"John Doe"}`, SetInput{Text: "John Doe"}},
		{TypeSetCheckbox, `{"id":"notifications","checked":true}`, SetCheckbox{ID: "notifications", Checked: true}},
		{TypeSetComboBox, `{"id":"theme","selected":"Dark","options":["Light","Dark"]}`,
			SetComboBox{ID: "theme", Selected: "Dark", Options: []string{"Light", "Dark"}}},
		{TypeSetRadio, `{"id":"lang","selected":"English"}`, SetRadio{ID: "lang", Selected: "English"}},
		{TypeSetProgress, `{"id":"upload","value":0.25}`, SetProgress{ID: "upload", Value: 0.25}},
		{TypeRotate3D, `{"angle":15}`, Rotate3D{Angle: 15}},
		{TypeStartRecording, ``, StartRecording{}},
		{TypeStopRecording, `null`, StopRecording{}},
		{TypeStartPlayback, `{}`, StartPlayback{}},
		{TypeStopPlayback, ` `, StopPlayback{}},
	}

	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			got, err := Decode(tt.typ, json.RawMessage(tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.typ, got.Type())
		})
	}
}

func TestDecode_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		typ     string
		payload string
	}{
		{"unknown command", "explode", `{}`},
		{"missing payload", TypeSetLabel, ``},
		{"null payload", TypeRotate3D, `null`},
		{"missing field", TypeSetCheckbox, `{"id":"a"}`},
		{"wrong type", TypeSetLabel, `{"text":5}`},
		{"unknown field", TypeSetSlider, `{"value":1,"min":0}`},
		{"array payload", TypeSetRadio, `["lang","English"]`},
		{"options missing", TypeSetComboBox, `{"id":"c","selected":"x"}`},
		{"options wrong type", TypeSetComboBox, `{"id":"c","selected":"x","options":"x"}`},
		{"object not an object", TypeAdd3DObject, `[1,2]`},
		{"object null", TypeAdd3DObject, `null`},
		{"control with args", TypeStartRecording, `{"now":true}`},
		{"trailing data", TypeSetLabel, `{"text":"a"} {"text":"b"}`},
		{"malformed json", TypeSetInput, `{"text":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.typ, json.RawMessage(tt.payload))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestDecode_Add3DObjectCompacts(t *testing.T) {
	c, err := Decode(TypeAdd3DObject, json.RawMessage(`{ "scene_id": "mainScene", "object_id": "cube1", "size": 1 }`))
	require.NoError(t, err)

	obj, ok := c.(Add3DObject)
	require.True(t, ok)
	assert.JSONEq(t, `{"scene_id":"mainScene","object_id":"cube1","size":1}`, string(obj.Data))
	assert.Equal(t, `{"scene_id":"mainScene","object_id":"cube1","size":1}`, string(obj.Data))
	assert.Equal(t, "mainScene", ComponentID(c))
}

func TestPayload_RoundTrip(t *testing.T) {
	cmds := []Command{
		SetLabel{Text: "A"},
		SetCheckbox{ID: "x", Checked: false},
		SetComboBox{ID: "theme", Selected: "Dark"},
		Add3DObject{Data: json.RawMessage(`{"object_id":"sphere1"}`)},
		StopPlayback{},
	}

	for _, c := range cmds {
		payload, err := Payload(c)
		require.NoError(t, err)

		back, err := Decode(c.Type(), payload)
		require.NoError(t, err, "payload %s", payload)
		if cb, ok := c.(SetComboBox); ok && cb.Options == nil {
			cb.Options = []string{}
			c = cb
		}
		assert.Equal(t, c, back)
	}
}

func TestRecordable(t *testing.T) {
	for _, typ := range Types {
		c, err := Decode(typ, sampleFor(typ))
		require.NoError(t, err)

		switch typ {
		case TypeStartRecording, TypeStopRecording, TypeStartPlayback, TypeStopPlayback:
			assert.False(t, Recordable(c), typ)
		default:
			assert.True(t, Recordable(c), typ)
		}
	}
}

func TestComponentID(t *testing.T) {
	assert.Equal(t, "", ComponentID(SetLabel{Text: "x"}))
	assert.Equal(t, "", ComponentID(Rotate3D{Angle: 1}))
	assert.Equal(t, "cb", ComponentID(SetCheckbox{ID: "cb"}))
	assert.Equal(t, "theme", ComponentID(SetComboBox{ID: "theme"}))
	assert.Equal(t, "lang", ComponentID(SetRadio{ID: "lang"}))
	assert.Equal(t, "up", ComponentID(SetProgress{ID: "up"}))
	assert.Equal(t, "", ComponentID(Add3DObject{Data: json.RawMessage(`{"object_id":"a"}`)}))
}

func TestKnown(t *testing.T) {
	for _, typ := range Types {
		assert.True(t, Known(typ), typ)
	}
	assert.False(t, Known("op_set_label"))
}

func TestValidate(t *testing.T) {
	for _, typ := range Types {
		c, err := Decode(typ, sampleFor(typ))
		require.NoError(t, err, typ)
		assert.NoError(t, Validate(c), typ)
	}

	invalid := []Command{
		SetSlider{Value: math.NaN()},
		SetProgress{ID: "p", Value: math.Inf(1)},
		Rotate3D{Angle: math.Inf(-1)},
		Add3DObject{Data: json.RawMessage(`[1,2]`)},
		nil,
	}
	for _, c := range invalid {
		assert.ErrorIs(t, Validate(c), ErrValidation, "%#v", c)
	}
}

func TestOrigin_String(t *testing.T) {
	assert.Equal(t, "script", OriginScript.String())
	assert.Equal(t, "network", OriginNetwork.String())
	assert.Equal(t, "replay", OriginReplay.String())
	assert.Equal(t, "origin(9)", Origin(9).String())
}

func sampleFor(typ string) json.RawMessage {
	switch typ {
	case TypeSetLabel, TypeSetInput:
		return json.RawMessage(`{"text":"t"}`)
	case TypeSetSlider:
		return json.RawMessage(`{"value":1}`)
	case TypeSetCheckbox:
		return json.RawMessage(`{"id":"a","checked":true}`)
	case TypeSetComboBox:
		return json.RawMessage(`{"id":"a","selected":"x","options":["x"]}`)
	case TypeSetRadio:
		return json.RawMessage(`{"id":"a","selected":"x"}`)
	case TypeSetProgress:
		return json.RawMessage(`{"id":"a","value":0.1}`)
	case TypeRotate3D:
		return json.RawMessage(`{"angle":1}`)
	case TypeAdd3DObject:
		return json.RawMessage(`{"object_id":"a"}`)
	default:
		return nil
	}
}
