// Package command defines the closed set of commands that mutate the UI/3D
// state, and decodes JSON-shaped payloads into them.
package command

import (
	"encoding/json"
	"fmt"
)

// Command type tags. These are also the eventType of recorded events.
const (
	TypeSetLabel       = "set_label"
	TypeSetSlider      = "set_slider"
	TypeSetInput       = "set_input"
	TypeSetCheckbox    = "set_checkbox"
	TypeSetComboBox    = "set_combo_box"
	TypeSetRadio       = "set_radio"
	TypeSetProgress    = "set_progress"
	TypeRotate3D       = "rotate_3d"
	TypeAdd3DObject    = "add_3d_object"
	TypeStartRecording = "start_recording"
	TypeStopRecording  = "stop_recording"
	TypeStartPlayback  = "start_playback"
	TypeStopPlayback   = "stop_playback"
)

// Types lists every command type in table order.
var Types = []string{
	TypeSetLabel,
	TypeSetSlider,
	TypeSetInput,
	TypeSetCheckbox,
	TypeSetComboBox,
	TypeSetRadio,
	TypeSetProgress,
	TypeRotate3D,
	TypeAdd3DObject,
	TypeStartRecording,
	TypeStopRecording,
	TypeStartPlayback,
	TypeStopPlayback,
}

// Command is one of the structs in this package. The set is closed.
type Command interface {
	Type() string
	isCommand()
}

// SetLabel replaces the label text.
type SetLabel struct {
	Text string `json:"text"`
}

// SetSlider sets the slider value. It is not clamped.
type SetSlider struct {
	Value float64 `json:"value"`
}

// SetInput replaces the text input contents.
type SetInput struct {
	Text string `json:"text"`
}

// SetCheckbox sets one keyed checkbox.
type SetCheckbox struct {
	ID      string `json:"id"`
	Checked bool   `json:"checked"`
}

// SetComboBox replaces the selection and options of one keyed combo box.
type SetComboBox struct {
	ID       string   `json:"id"`
	Selected string   `json:"selected"`
	Options  []string `json:"options"`
}

// MarshalJSON always emits options as a list so the payload decodes again.
func (c SetComboBox) MarshalJSON() ([]byte, error) {
	type plain SetComboBox
	p := plain(c)
	if p.Options == nil {
		p.Options = []string{}
	}
	return json.Marshal(p)
}

// SetRadio sets the selected choice of one keyed radio group.
type SetRadio struct {
	ID       string `json:"id"`
	Selected string `json:"selected"`
}

// SetProgress sets one keyed progress value.
type SetProgress struct {
	ID    string  `json:"id"`
	Value float64 `json:"value"`
}

// Rotate3D adds Angle degrees to the scene rotation.
type Rotate3D struct {
	Angle float64 `json:"angle"`
}

// Add3DObject carries an arbitrary JSON object describing a scene object.
// It is logged but does not mutate state.
type Add3DObject struct {
	Data json.RawMessage
}

// MarshalJSON emits the object payload as-is.
func (c Add3DObject) MarshalJSON() ([]byte, error) {
	if len(c.Data) == 0 {
		return []byte("{}"), nil
	}
	return c.Data, nil
}

// SceneID returns the scene_id field of the payload, if it is a string.
func (c Add3DObject) SceneID() string {
	var fields struct {
		SceneID string `json:"scene_id"`
	}
	if err := json.Unmarshal(c.Data, &fields); err != nil {
		return ""
	}
	return fields.SceneID
}

// Control commands drive the recorder and the playback scheduler. They are
// never recorded.
type (
	// StartRecording begins a new recording session.
	StartRecording struct{}
	// StopRecording ends the session and yields the captured events.
	StopRecording struct{}
	// StartPlayback replays the captured events with their original timing.
	StartPlayback struct{}
	// StopPlayback ends playback and rewinds the cursor.
	StopPlayback struct{}
)

// Type returns the command's wire name.
func (SetLabel) Type() string       { return TypeSetLabel }
func (SetSlider) Type() string      { return TypeSetSlider }
func (SetInput) Type() string       { return TypeSetInput }
func (SetCheckbox) Type() string    { return TypeSetCheckbox }
func (SetComboBox) Type() string    { return TypeSetComboBox }
func (SetRadio) Type() string       { return TypeSetRadio }
func (SetProgress) Type() string    { return TypeSetProgress }
func (Rotate3D) Type() string       { return TypeRotate3D }
func (Add3DObject) Type() string    { return TypeAdd3DObject }
func (StartRecording) Type() string { return TypeStartRecording }
func (StopRecording) Type() string  { return TypeStopRecording }
func (StartPlayback) Type() string  { return TypeStartPlayback }
func (StopPlayback) Type() string   { return TypeStopPlayback }

func (SetLabel) isCommand()       {}
func (SetSlider) isCommand()      {}
func (SetInput) isCommand()       {}
func (SetCheckbox) isCommand()    {}
func (SetComboBox) isCommand()    {}
func (SetRadio) isCommand()       {}
func (SetProgress) isCommand()    {}
func (Rotate3D) isCommand()       {}
func (Add3DObject) isCommand()    {}
func (StartRecording) isCommand() {}
func (StopRecording) isCommand()  {}
func (StartPlayback) isCommand()  {}
func (StopPlayback) isCommand()   {}

// Recordable reports whether applying c while recording appends an event.
// The recording and playback controls are never recorded.
func Recordable(c Command) bool {
	switch c.(type) {
	case StartRecording, StopRecording, StartPlayback, StopPlayback:
		return false
	default:
		return true
	}
}

// ComponentID returns the identifier of the component c targets, or "" for
// global commands.
func ComponentID(c Command) string {
	switch c := c.(type) {
	case SetCheckbox:
		return c.ID
	case SetComboBox:
		return c.ID
	case SetRadio:
		return c.ID
	case SetProgress:
		return c.ID
	case Add3DObject:
		return c.SceneID()
	default:
		return ""
	}
}

// Payload encodes the argument shape of c. Decode(c.Type(), Payload(c))
// yields an equal command.
func Payload(c Command) (json.RawMessage, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", c.Type(), err)
	}
	return data, nil
}

// Origin identifies which source issued a command.
type Origin int

const (
	OriginScript Origin = iota
	OriginNetwork
	OriginReplay
)

// String returns the origin name used in logs.
func (o Origin) String() string {
	switch o {
	case OriginScript:
		return "script"
	case OriginNetwork:
		return "network"
	case OriginReplay:
		return "replay"
	default:
		return fmt.Sprintf("origin(%d)", int(o))
	}
}

// Issuer is anything commands can be issued to: the dispatcher, or a test
// double. Scripting hosts depend on this rather than on the dispatcher.
// The result is non-nil only for stop_recording.
type Issuer interface {
	Issue(c Command) (any, error)
}
