package command

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
)

// ErrValidation is wrapped by every error returned from Decode.
var ErrValidation = errors.New("invalid command")

type decodeFunc func(payload json.RawMessage) (Command, error)

var decoders = map[string]decodeFunc{
	TypeSetLabel:       decodeSetLabel,
	TypeSetSlider:      decodeSetSlider,
	TypeSetInput:       decodeSetInput,
	TypeSetCheckbox:    decodeSetCheckbox,
	TypeSetComboBox:    decodeSetComboBox,
	TypeSetRadio:       decodeSetRadio,
	TypeSetProgress:    decodeSetProgress,
	TypeRotate3D:       decodeRotate3D,
	TypeAdd3DObject:    decodeAdd3DObject,
	TypeStartRecording: control(StartRecording{}),
	TypeStopRecording:  control(StopRecording{}),
	TypeStartPlayback:  control(StartPlayback{}),
	TypeStopPlayback:   control(StopPlayback{}),
}

// Known reports whether typ names a command.
func Known(typ string) bool {
	_, ok := decoders[typ]
	return ok
}

// Decode validates payload against the argument shape of typ and returns the
// typed command. Unknown fields, missing fields and wrong JSON types are
// rejected.
func Decode(typ string, payload json.RawMessage) (Command, error) {
	dec, ok := decoders[typ]
	if !ok {
		return nil, fmt.Errorf("%w: unknown command %q", ErrValidation, typ)
	}
	c, err := dec(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrValidation, typ, err)
	}
	return c, nil
}

// Validate checks a command built in code rather than decoded: numbers must
// be finite and an Add3DObject must carry a JSON object. Decoded commands
// always pass.
func Validate(c Command) error {
	switch c := c.(type) {
	case SetSlider:
		return finite(c.Type(), "value", c.Value)
	case SetProgress:
		return finite(c.Type(), "value", c.Value)
	case Rotate3D:
		return finite(c.Type(), "angle", c.Angle)
	case Add3DObject:
		if len(c.Data) == 0 {
			return nil
		}
		if _, err := decodeAdd3DObject(c.Data); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrValidation, c.Type(), err)
		}
	case nil:
		return fmt.Errorf("%w: nil command", ErrValidation)
	}
	return nil
}

func finite(typ, field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s: field %q must be a finite number", ErrValidation, typ, field)
	}
	return nil
}

func decodeSetLabel(payload json.RawMessage) (Command, error) {
	var args struct {
		Text *string `json:"text"`
	}
	if err := strict(payload, &args); err != nil {
		return nil, err
	}
	if args.Text == nil {
		return nil, missing("text")
	}
	return SetLabel{Text: *args.Text}, nil
}

func decodeSetSlider(payload json.RawMessage) (Command, error) {
	var args struct {
		Value *float64 `json:"value"`
	}
	if err := strict(payload, &args); err != nil {
		return nil, err
	}
	if args.Value == nil {
		return nil, missing("value")
	}
	return SetSlider{Value: *args.Value}, nil
}

func decodeSetInput(payload json.RawMessage) (Command, error) {
	var args struct {
		Text *string `json:"text"`
	}
	if err := strict(payload, &args); err != nil {
		return nil, err
	}
	if args.Text == nil {
		return nil, missing("text")
	}
	return SetInput{Text: *args.Text}, nil
}

func decodeSetCheckbox(payload json.RawMessage) (Command, error) {
	var args struct {
		ID      *string `json:"id"`
		Checked *bool   `json:"checked"`
	}
	if err := strict(payload, &args); err != nil {
		return nil, err
	}
	if args.ID == nil {
		return nil, missing("id")
	}
	if args.Checked == nil {
		return nil, missing("checked")
	}
	return SetCheckbox{ID: *args.ID, Checked: *args.Checked}, nil
}

func decodeSetComboBox(payload json.RawMessage) (Command, error) {
	var args struct {
		ID       *string  `json:"id"`
		Selected *string  `json:"selected"`
		Options  []string `json:"options"`
	}
	if err := strict(payload, &args); err != nil {
		return nil, err
	}
	if args.ID == nil {
		return nil, missing("id")
	}
	if args.Selected == nil {
		return nil, missing("selected")
	}
	if args.Options == nil {
		return nil, missing("options")
	}
	return SetComboBox{ID: *args.ID, Selected: *args.Selected, Options: args.Options}, nil
}

func decodeSetRadio(payload json.RawMessage) (Command, error) {
	var args struct {
		ID       *string `json:"id"`
		Selected *string `json:"selected"`
	}
	if err := strict(payload, &args); err != nil {
		return nil, err
	}
	if args.ID == nil {
		return nil, missing("id")
	}
	if args.Selected == nil {
		return nil, missing("selected")
	}
	return SetRadio{ID: *args.ID, Selected: *args.Selected}, nil
}

func decodeSetProgress(payload json.RawMessage) (Command, error) {
	var args struct {
		ID    *string  `json:"id"`
		Value *float64 `json:"value"`
	}
	if err := strict(payload, &args); err != nil {
		return nil, err
	}
	if args.ID == nil {
		return nil, missing("id")
	}
	if args.Value == nil {
		return nil, missing("value")
	}
	return SetProgress{ID: *args.ID, Value: *args.Value}, nil
}

func decodeRotate3D(payload json.RawMessage) (Command, error) {
	var args struct {
		Angle *float64 `json:"angle"`
	}
	if err := strict(payload, &args); err != nil {
		return nil, err
	}
	if args.Angle == nil {
		return nil, missing("angle")
	}
	return Rotate3D{Angle: *args.Angle}, nil
}

func decodeAdd3DObject(payload json.RawMessage) (Command, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil || fields == nil {
		return nil, errors.New("payload must be a JSON object")
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, payload); err != nil {
		return nil, err
	}
	return Add3DObject{Data: buf.Bytes()}, nil
}

// control decodes commands without arguments. An absent payload, null and
// an empty object are all accepted.
func control(c Command) decodeFunc {
	return func(payload json.RawMessage) (Command, error) {
		if isAbsent(payload) {
			return c, nil
		}
		var args struct{}
		if err := strict(payload, &args); err != nil {
			return nil, err
		}
		return c, nil
	}
}

func strict(payload json.RawMessage, v any) error {
	if isAbsent(payload) {
		return errors.New("payload required")
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("trailing data after payload")
	}
	return nil
}

func isAbsent(payload json.RawMessage) bool {
	trimmed := bytes.TrimSpace(payload)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func missing(field string) error {
	return fmt.Errorf("missing field %q", field)
}
