// Package script embeds a Lua interpreter as a command source. Scripts call
// functions on the global egui table; each call becomes a typed command
// issued synchronously.
package script

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Shopify/go-lua"

	"github.com/pioneer-egui/timeline/internal/command"
	"github.com/pioneer-egui/timeline/internal/recorder"
)

const (
	// TableName is the global holding the command bindings.
	TableName = "egui"
	// TickHook is the optional global function called by Step.
	TickHook = "on_tick"
)

// Host owns one Lua state. It is not safe for concurrent use; the frame
// loop goroutine is its only caller.
type Host struct {
	l      *lua.State
	issuer command.Issuer
	logger *slog.Logger
}

// New creates a host with the standard libraries and the egui table loaded.
func New(issuer command.Issuer, logger *slog.Logger) *Host {
	h := &Host{
		l:      lua.NewState(),
		issuer: issuer,
		logger: logger,
	}
	lua.OpenLibraries(h.l)

	h.l.NewTable()
	lua.SetFunctions(h.l, h.bindings(), 0)
	h.l.SetGlobal(TableName)
	return h
}

// RunString executes a chunk of Lua source.
func (h *Host) RunString(src string) error {
	if err := lua.DoString(h.l, src); err != nil {
		return fmt.Errorf("run script: %w", err)
	}
	return nil
}

// RunFile executes the Lua file at path.
func (h *Host) RunFile(path string) error {
	if err := lua.DoFile(h.l, path); err != nil {
		return fmt.Errorf("run script %s: %w", path, err)
	}
	h.logger.Info("Script loaded", "path", path)
	return nil
}

// Step calls on_tick(dt_ms) when the script defines it.
func (h *Host) Step(dt time.Duration) error {
	top := h.l.Top()
	h.l.Global(TickHook)
	if !h.l.IsFunction(-1) {
		h.l.SetTop(top)
		return nil
	}
	h.l.PushNumber(float64(dt) / float64(time.Millisecond))
	if err := h.l.ProtectedCall(1, 0, 0); err != nil {
		h.l.SetTop(top)
		return fmt.Errorf("%s: %w", TickHook, err)
	}
	return nil
}

func (h *Host) bindings() []lua.RegistryFunction {
	return []lua.RegistryFunction{
		{Name: command.TypeSetLabel, Function: h.setLabel},
		{Name: command.TypeSetSlider, Function: h.setSlider},
		{Name: command.TypeSetInput, Function: h.setInput},
		{Name: command.TypeSetCheckbox, Function: h.setCheckbox},
		{Name: command.TypeSetComboBox, Function: h.setComboBox},
		{Name: command.TypeSetRadio, Function: h.setRadio},
		{Name: command.TypeSetProgress, Function: h.setProgress},
		{Name: command.TypeRotate3D, Function: h.rotate3D},
		{Name: command.TypeAdd3DObject, Function: h.add3DObject},
		{Name: command.TypeStartRecording, Function: h.control(command.StartRecording{})},
		{Name: command.TypeStopRecording, Function: h.stopRecording},
		{Name: command.TypeStartPlayback, Function: h.control(command.StartPlayback{})},
		{Name: command.TypeStopPlayback, Function: h.control(command.StopPlayback{})},
		{Name: "log", Function: h.log},
	}
}

// issue raises a Lua error when the command is rejected.
func (h *Host) issue(l *lua.State, c command.Command) any {
	result, err := h.issuer.Issue(c)
	if err != nil {
		lua.Errorf(l, "%s", err.Error())
	}
	return result
}

func (h *Host) setLabel(l *lua.State) int {
	h.issue(l, command.SetLabel{Text: lua.CheckString(l, 1)})
	return 0
}

func (h *Host) setSlider(l *lua.State) int {
	h.issue(l, command.SetSlider{Value: lua.CheckNumber(l, 1)})
	return 0
}

func (h *Host) setInput(l *lua.State) int {
	h.issue(l, command.SetInput{Text: lua.CheckString(l, 1)})
	return 0
}

func (h *Host) setCheckbox(l *lua.State) int {
	id := lua.CheckString(l, 1)
	lua.CheckType(l, 2, lua.TypeBoolean)
	h.issue(l, command.SetCheckbox{ID: id, Checked: l.ToBoolean(2)})
	return 0
}

func (h *Host) setComboBox(l *lua.State) int {
	id := lua.CheckString(l, 1)
	selected := lua.CheckString(l, 2)
	lua.CheckType(l, 3, lua.TypeTable)
	options := stringList(l, 3)
	h.issue(l, command.SetComboBox{ID: id, Selected: selected, Options: options})
	return 0
}

func (h *Host) setRadio(l *lua.State) int {
	id := lua.CheckString(l, 1)
	h.issue(l, command.SetRadio{ID: id, Selected: lua.CheckString(l, 2)})
	return 0
}

func (h *Host) setProgress(l *lua.State) int {
	id := lua.CheckString(l, 1)
	h.issue(l, command.SetProgress{ID: id, Value: lua.CheckNumber(l, 2)})
	return 0
}

func (h *Host) rotate3D(l *lua.State) int {
	h.issue(l, command.Rotate3D{Angle: lua.CheckNumber(l, 1)})
	return 0
}

func (h *Host) add3DObject(l *lua.State) int {
	lua.CheckType(l, 1, lua.TypeTable)
	data, err := json.Marshal(tableToMap(l, 1))
	if err != nil {
		lua.Errorf(l, "add_3d_object: %s", err.Error())
	}
	h.issue(l, command.Add3DObject{Data: data})
	return 0
}

func (h *Host) control(c command.Command) lua.Function {
	return func(l *lua.State) int {
		h.issue(l, c)
		return 0
	}
}

// stopRecording returns the captured log as an array of event tables.
func (h *Host) stopRecording(l *lua.State) int {
	events, _ := h.issue(l, command.StopRecording{}).([]recorder.Event)
	l.CreateTable(len(events), 0)
	for i, ev := range events {
		pushEvent(l, ev)
		l.RawSetInt(-2, i+1)
	}
	return 1
}

func (h *Host) log(l *lua.State) int {
	h.logger.Info("Script", "message", lua.CheckString(l, 1))
	return 0
}

func pushEvent(l *lua.State, ev recorder.Event) {
	l.CreateTable(0, 4)
	l.PushString(ev.EventType)
	l.SetField(-2, "eventType")
	l.PushString(ev.ComponentID)
	l.SetField(-2, "componentId")
	l.PushNumber(float64(ev.Timestamp))
	l.SetField(-2, "timestamp")

	var data any
	if len(ev.EventData) > 0 {
		if err := json.Unmarshal(ev.EventData, &data); err != nil {
			data = nil
		}
	}
	pushValue(l, data)
	l.SetField(-2, "eventData")
}
