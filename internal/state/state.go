// Package state holds the interactive UI/3D state mutated by the dispatcher.
//
// State is not safe for concurrent use on its own. The dispatcher owns the
// single lock that guards it and is the only code that calls the setters.
package state

// ComboBox is the selected value and available options of one combo box.
type ComboBox struct {
	Selected string   `json:"selected"`
	Options  []string `json:"options"`
}

// State is the mutable record of interactive state.
type State struct {
	label    string
	slider   float64
	input    string
	rotation float64

	checkboxes map[string]bool
	comboBoxes map[string]ComboBox
	radios     map[string]string
	progress   map[string]float64
}

// New creates an empty State.
func New() *State {
	return &State{
		checkboxes: make(map[string]bool),
		comboBoxes: make(map[string]ComboBox),
		radios:     make(map[string]string),
		progress:   make(map[string]float64),
	}
}

// Label returns the label text.
func (s *State) Label() string { return s.label }

// SetLabel replaces the label text.
func (s *State) SetLabel(v string) { s.label = v }

// Slider returns the slider value.
func (s *State) Slider() float64 { return s.slider }

// SetSlider sets the slider value without clamping.
func (s *State) SetSlider(v float64) { s.slider = v }

// Input returns the text input contents.
func (s *State) Input() string { return s.input }

// SetInput replaces the text input contents.
func (s *State) SetInput(v string) { s.input = v }

// Rotation returns the accumulated rotation in degrees.
func (s *State) Rotation() float64 { return s.rotation }

// Rotate adds angle to the accumulated rotation. The result is not wrapped.
func (s *State) Rotate(angle float64) { s.rotation += angle }

// Checkbox returns the checked flag for id and whether id exists.
func (s *State) Checkbox(id string) (bool, bool) {
	v, ok := s.checkboxes[id]
	return v, ok
}

// SetCheckbox sets the checkbox for id, leaving other ids untouched.
func (s *State) SetCheckbox(id string, checked bool) { s.checkboxes[id] = checked }

// ComboBox returns a copy of the combo box for id and whether id exists.
func (s *State) ComboBox(id string) (ComboBox, bool) {
	cb, ok := s.comboBoxes[id]
	if !ok {
		return ComboBox{}, false
	}
	return cb.clone(), true
}

// SetComboBox replaces the whole (selected, options) tuple for id.
func (s *State) SetComboBox(id, selected string, options []string) {
	s.comboBoxes[id] = ComboBox{Selected: selected, Options: cloneStrings(options)}
}

// Radio returns the selected choice for id and whether id exists.
func (s *State) Radio(id string) (string, bool) {
	v, ok := s.radios[id]
	return v, ok
}

// SetRadio sets the selected choice for id.
func (s *State) SetRadio(id, selected string) { s.radios[id] = selected }

// Progress returns the progress value for id and whether id exists.
func (s *State) Progress(id string) (float64, bool) {
	v, ok := s.progress[id]
	return v, ok
}

// SetProgress sets the progress value for id.
func (s *State) SetProgress(id string, value float64) { s.progress[id] = value }

// Snapshot is a deep copy of State used for rendering and inspection.
type Snapshot struct {
	Label      string              `json:"label"`
	Slider     float64             `json:"slider"`
	Input      string              `json:"input"`
	Rotation   float64             `json:"rotation"`
	Checkboxes map[string]bool     `json:"checkboxes"`
	ComboBoxes map[string]ComboBox `json:"comboBoxes"`
	Radios     map[string]string   `json:"radios"`
	Progress   map[string]float64  `json:"progress"`
}

// Snapshot copies the current state. Later mutations of s do not show up in
// the returned value and vice versa.
func (s *State) Snapshot() Snapshot {
	snap := Snapshot{
		Label:      s.label,
		Slider:     s.slider,
		Input:      s.input,
		Rotation:   s.rotation,
		Checkboxes: make(map[string]bool, len(s.checkboxes)),
		ComboBoxes: make(map[string]ComboBox, len(s.comboBoxes)),
		Radios:     make(map[string]string, len(s.radios)),
		Progress:   make(map[string]float64, len(s.progress)),
	}
	for k, v := range s.checkboxes {
		snap.Checkboxes[k] = v
	}
	for k, v := range s.comboBoxes {
		snap.ComboBoxes[k] = v.clone()
	}
	for k, v := range s.radios {
		snap.Radios[k] = v
	}
	for k, v := range s.progress {
		snap.Progress[k] = v
	}
	return snap
}

func (c ComboBox) clone() ComboBox {
	return ComboBox{Selected: c.Selected, Options: cloneStrings(c.Options)}
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
