package scrcpy

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var ErrUnknownMsgType = errors.New("scrcpy: unknown message type")

// Serialize writes cmd as a device frame into buf and returns the frame
// length. buf must hold at least CONTROL_MSG_SERIALIZED_MAX_SIZE bytes.
// Commands without a device tag produce 0 bytes.
func Serialize(cmd Command, buf []byte) int {
	switch m := cmd.(type) {
	case InjectKeycode:
		// Keycode Event Structure (10 bytes):
		// 0: Type
		// 1: Action
		// 2-5: Keycode
		// 6-9: Metastate
		buf[0] = byte(TYPE_INJECT_KEYCODE)
		buf[1] = m.Action
		binary.BigEndian.PutUint32(buf[2:6], uint32(m.Keycode))
		binary.BigEndian.PutUint32(buf[6:10], m.Metastate)
		return 10
	case InjectText:
		buf[0] = byte(TYPE_INJECT_TEXT)
		return 1 + writeString(buf[1:], m.Text.Bytes(), CONTROL_MSG_TEXT_MAX_LENGTH)
	case InjectTouchEvent:
		buf[0] = byte(TYPE_INJECT_TOUCH_EVENT)
		buf[1] = m.Action
		binary.BigEndian.PutUint64(buf[2:10], m.PointerID)
		writePosition(buf[10:22], m.Position)
		binary.BigEndian.PutUint16(buf[22:24], ToFixedPoint16(m.Pressure))
		binary.BigEndian.PutUint32(buf[24:28], m.Buttons)
		return 28
	case InjectScrollEvent:
		buf[0] = byte(TYPE_INJECT_SCROLL_EVENT)
		writePosition(buf[1:13], m.Position)
		binary.BigEndian.PutUint32(buf[13:17], uint32(m.HScroll))
		binary.BigEndian.PutUint32(buf[17:21], uint32(m.VScroll))
		return 21
	case SetClipboard:
		buf[0] = byte(TYPE_SET_CLIPBOARD)
		return 1 + writeString(buf[1:], m.Text.Bytes(), CONTROL_MSG_CLIPBOARD_TEXT_MAX_LENGTH)
	case SetScreenPowerMode:
		buf[0] = byte(TYPE_SET_SCREEN_POWER_MODE)
		buf[1] = byte(m.Mode)
		return 2
	case BackOrScreenOn, ExpandNotificationPanel, CollapseNotificationPanel, GetClipboard, RotateDevice:
		buf[0] = byte(cmd.Type())
		return 1
	default:
		return 0
	}
}

// Destroy releases the text owned by cmd, if any. Safe to call twice.
func Destroy(cmd Command) {
	switch m := cmd.(type) {
	case InjectText:
		m.Text.Release()
	case SetClipboard:
		m.Text.Release()
	}
}

func writeString(buf []byte, s []byte, max int) int {
	n := Utf8TruncationIndex(s, max)
	binary.BigEndian.PutUint16(buf[0:2], uint16(n))
	copy(buf[2:], s[:n])
	return 2 + n
}

// Position (12 bytes): x, y as int32 then width, height as uint16.
func writePosition(buf []byte, p Position) {
	binary.BigEndian.PutUint32(buf[0:4], uint32(p.Point.X))
	binary.BigEndian.PutUint32(buf[4:8], uint32(p.Point.Y))
	binary.BigEndian.PutUint16(buf[8:10], p.ScreenSize.Width)
	binary.BigEndian.PutUint16(buf[10:12], p.ScreenSize.Height)
}

func readPosition(buf []byte) Position {
	return Position{
		Point: Point{
			X: int32(binary.BigEndian.Uint32(buf[0:4])),
			Y: int32(binary.BigEndian.Uint32(buf[4:8])),
		},
		ScreenSize: Size{
			Width:  binary.BigEndian.Uint16(buf[8:10]),
			Height: binary.BigEndian.Uint16(buf[10:12]),
		},
	}
}

// DeserializeControlMsg parses one device frame from the start of buf, the
// way the device end of the control socket would. It returns the command
// and the frame length, or n == 0 with a nil error if buf holds only part of
// a frame. Strings in the result are owned by the caller.
func DeserializeControlMsg(buf []byte) (cmd Command, n int, err error) {
	if len(buf) == 0 {
		return nil, 0, nil
	}
	t := MsgType(buf[0])
	need := func(size int) bool { return len(buf) >= size }
	switch t {
	case TYPE_INJECT_KEYCODE:
		if !need(10) {
			return nil, 0, nil
		}
		return InjectKeycode{
			Action:    buf[1],
			Keycode:   int32(binary.BigEndian.Uint32(buf[2:6])),
			Metastate: binary.BigEndian.Uint32(buf[6:10]),
		}, 10, nil
	case TYPE_INJECT_TEXT, TYPE_SET_CLIPBOARD:
		if !need(3) {
			return nil, 0, nil
		}
		l := int(binary.BigEndian.Uint16(buf[1:3]))
		if !need(3 + l) {
			return nil, 0, nil
		}
		text := NewText(string(buf[3 : 3+l]))
		if t == TYPE_INJECT_TEXT {
			return InjectText{Text: text}, 3 + l, nil
		}
		return SetClipboard{Text: text}, 3 + l, nil
	case TYPE_INJECT_TOUCH_EVENT:
		if !need(28) {
			return nil, 0, nil
		}
		return InjectTouchEvent{
			Action:    buf[1],
			PointerID: binary.BigEndian.Uint64(buf[2:10]),
			Position:  readPosition(buf[10:22]),
			Pressure:  FromFixedPoint16(binary.BigEndian.Uint16(buf[22:24])),
			Buttons:   binary.BigEndian.Uint32(buf[24:28]),
		}, 28, nil
	case TYPE_INJECT_SCROLL_EVENT:
		if !need(21) {
			return nil, 0, nil
		}
		return InjectScrollEvent{
			Position: readPosition(buf[1:13]),
			HScroll:  int32(binary.BigEndian.Uint32(buf[13:17])),
			VScroll:  int32(binary.BigEndian.Uint32(buf[17:21])),
		}, 21, nil
	case TYPE_SET_SCREEN_POWER_MODE:
		if !need(2) {
			return nil, 0, nil
		}
		return SetScreenPowerMode{Mode: ScreenPowerMode(buf[1])}, 2, nil
	case TYPE_BACK_OR_SCREEN_ON:
		return BackOrScreenOn{}, 1, nil
	case TYPE_EXPAND_NOTIFICATION_PANEL:
		return ExpandNotificationPanel{}, 1, nil
	case TYPE_COLLAPSE_NOTIFICATION_PANEL:
		return CollapseNotificationPanel{}, 1, nil
	case TYPE_GET_CLIPBOARD:
		return GetClipboard{}, 1, nil
	case TYPE_ROTATE_DEVICE:
		return RotateDevice{}, 1, nil
	}
	return nil, 0, fmt.Errorf("%w: %d", ErrUnknownMsgType, buf[0])
}
