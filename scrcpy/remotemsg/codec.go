// Package remotemsg is the JSON encoding of control commands used by remote
// peers and by recording snapshots.
//
// Each message is one JSON object:
//
//	{"event_time":"2026-10-15 09:30:01.250",
//	 "msg_type":"CONTROL_MSG_TYPE_INJECT_KEYCODE",
//	 "key_code":{"action":0,"key_code":66,"meta_state":0}}
//
// Objects delimit themselves, so several may follow each other in one read,
// optionally separated by whitespace.
package remotemsg

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"mirrorctl/scrcpy"
)

// MaxMessageSize bounds a single encoded message.
const MaxMessageSize = 32768

const minMessageSize = 3

var (
	// ErrIncomplete means more bytes are needed before a message can be
	// decoded.
	ErrIncomplete = errors.New("remotemsg: incomplete message")
	// ErrMalformed means the bytes can never form a valid message. The
	// stream position is lost, so the connection has to be dropped.
	ErrMalformed = errors.New("remotemsg: malformed message")
)

// Record is a decoded message with its optional timestamp.
type Record struct {
	Time    time.Time
	Command scrcpy.Command
}

var deviceTypes = []scrcpy.MsgType{
	scrcpy.TYPE_INJECT_KEYCODE,
	scrcpy.TYPE_INJECT_TEXT,
	scrcpy.TYPE_INJECT_TOUCH_EVENT,
	scrcpy.TYPE_INJECT_SCROLL_EVENT,
	scrcpy.TYPE_BACK_OR_SCREEN_ON,
	scrcpy.TYPE_EXPAND_NOTIFICATION_PANEL,
	scrcpy.TYPE_COLLAPSE_NOTIFICATION_PANEL,
	scrcpy.TYPE_GET_CLIPBOARD,
	scrcpy.TYPE_SET_CLIPBOARD,
	scrcpy.TYPE_SET_SCREEN_POWER_MODE,
	scrcpy.TYPE_ROTATE_DEVICE,
	scrcpy.TYPE_START_RECORDING,
	scrcpy.TYPE_END_RECORDING,
}

var typesByName = func() map[string]scrcpy.MsgType {
	m := make(map[string]scrcpy.MsgType, len(deviceTypes))
	for _, t := range deviceTypes {
		m[TypeName(t)] = t
	}
	return m
}()

// TypeName is the msg_type string for t.
func TypeName(t scrcpy.MsgType) string {
	return msgTypePrefix + t.String()
}

// Deserialize decodes the first message in buf. It returns the command and
// the number of bytes it occupied. With ErrIncomplete, n counts leading
// whitespace the caller may discard.
func Deserialize(buf []byte) (cmd scrcpy.Command, n int, err error) {
	rec, n, err := DeserializeRecord(buf)
	return rec.Command, n, err
}

// DeserializeRecord is Deserialize keeping the event_time.
func DeserializeRecord(buf []byte) (Record, int, error) {
	skip := len(buf) - len(bytes.TrimLeft(buf, " \t\r\n"))
	if len(buf)-skip < minMessageSize {
		return Record{}, skip, ErrIncomplete
	}

	dec := json.NewDecoder(bytes.NewReader(buf[skip:]))
	dec.DisallowUnknownFields()
	var m message
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return Record{}, skip, ErrIncomplete
		}
		return Record{}, 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	cmd, err := m.command()
	if err != nil {
		return Record{}, 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	rec := Record{Command: cmd}
	if m.EventTime != nil {
		rec.Time = time.Time(*m.EventTime)
	}
	return rec, skip + int(dec.InputOffset()), nil
}

func (m *message) payloads() map[string]bool {
	return map[string]bool{
		"key_code":              m.KeyCode != nil,
		"inject_text":           m.InjectText != nil,
		"touch_event":           m.TouchEvent != nil,
		"scroll_event":          m.ScrollEvent != nil,
		"set_clipboard":         m.SetClipboard != nil,
		"set_screen_power_mode": m.SetScreenPowerMode != nil,
	}
}

// expect checks that exactly the named payload (or none, for "") is present
// and that it passes validation.
func (m *message) expect(name string, payload any) error {
	for key, present := range m.payloads() {
		if present && key != name {
			return fmt.Errorf("%s: unexpected %q", m.MsgType, key)
		}
		if !present && key == name {
			return fmt.Errorf("%s: missing %q", m.MsgType, key)
		}
	}
	if payload == nil {
		return nil
	}
	if err := validate.Struct(payload); err != nil {
		return fmt.Errorf("%s: %w", m.MsgType, err)
	}
	return nil
}

func (m *message) command() (scrcpy.Command, error) {
	t, ok := typesByName[m.MsgType]
	if !ok {
		return nil, fmt.Errorf("unknown msg_type %q", m.MsgType)
	}
	switch t {
	case scrcpy.TYPE_INJECT_KEYCODE:
		if err := m.expect("key_code", m.KeyCode); err != nil {
			return nil, err
		}
		return scrcpy.InjectKeycode{
			Action:    byte(*m.KeyCode.Action),
			Keycode:   int32(*m.KeyCode.KeyCode),
			Metastate: uint32(*m.KeyCode.MetaState),
		}, nil
	case scrcpy.TYPE_INJECT_TEXT:
		if err := m.expect("inject_text", m.InjectText); err != nil {
			return nil, err
		}
		return scrcpy.InjectText{Text: scrcpy.NewText(*m.InjectText.Text)}, nil
	case scrcpy.TYPE_INJECT_TOUCH_EVENT:
		if err := m.expect("touch_event", m.TouchEvent); err != nil {
			return nil, err
		}
		e := m.TouchEvent
		return scrcpy.InjectTouchEvent{
			Action:    byte(*e.Action),
			PointerID: uint64(*e.Pointer),
			Position:  e.Position.position(),
			Pressure:  float32(*e.Pressure),
			Buttons:   uint32(*e.Buttons),
		}, nil
	case scrcpy.TYPE_INJECT_SCROLL_EVENT:
		if err := m.expect("scroll_event", m.ScrollEvent); err != nil {
			return nil, err
		}
		e := m.ScrollEvent
		return scrcpy.InjectScrollEvent{
			Position: e.Position.position(),
			HScroll:  int32(*e.HScroll),
			VScroll:  int32(*e.VScroll),
		}, nil
	case scrcpy.TYPE_SET_CLIPBOARD:
		if err := m.expect("set_clipboard", m.SetClipboard); err != nil {
			return nil, err
		}
		return scrcpy.SetClipboard{Text: scrcpy.NewText(*m.SetClipboard.Text)}, nil
	case scrcpy.TYPE_SET_SCREEN_POWER_MODE:
		if err := m.expect("set_screen_power_mode", m.SetScreenPowerMode); err != nil {
			return nil, err
		}
		return scrcpy.SetScreenPowerMode{Mode: scrcpy.ScreenPowerMode(*m.SetScreenPowerMode.Mode)}, nil
	}

	if err := m.expect("", nil); err != nil {
		return nil, err
	}
	switch t {
	case scrcpy.TYPE_BACK_OR_SCREEN_ON:
		return scrcpy.BackOrScreenOn{}, nil
	case scrcpy.TYPE_EXPAND_NOTIFICATION_PANEL:
		return scrcpy.ExpandNotificationPanel{}, nil
	case scrcpy.TYPE_COLLAPSE_NOTIFICATION_PANEL:
		return scrcpy.CollapseNotificationPanel{}, nil
	case scrcpy.TYPE_GET_CLIPBOARD:
		return scrcpy.GetClipboard{}, nil
	case scrcpy.TYPE_ROTATE_DEVICE:
		return scrcpy.RotateDevice{}, nil
	case scrcpy.TYPE_START_RECORDING:
		return scrcpy.StartRecording{}, nil
	case scrcpy.TYPE_END_RECORDING:
		return scrcpy.EndRecording{}, nil
	}
	return nil, fmt.Errorf("unhandled msg_type %q", m.MsgType)
}

func (p *positionJSON) position() scrcpy.Position {
	return scrcpy.Position{
		Point: scrcpy.Point{
			X: int32(*p.Point.X),
			Y: int32(*p.Point.Y),
		},
		ScreenSize: scrcpy.Size{
			Width:  uint16(*p.ScreenSize.Width),
			Height: uint16(*p.ScreenSize.Height),
		},
	}
}
