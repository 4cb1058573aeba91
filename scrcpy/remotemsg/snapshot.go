package remotemsg

import (
	"encoding/json"
	"fmt"
	"time"

	"mirrorctl/scrcpy"
)

// Encode renders cmd in the remote format, stamped with t unless t is zero.
// The output decodes back to an equal command.
func Encode(cmd scrcpy.Command, t time.Time) ([]byte, error) {
	m, err := toMessage(cmd)
	if err != nil {
		return nil, err
	}
	if !t.IsZero() {
		et := eventTime(t)
		m.EventTime = &et
	}
	return json.Marshal(m)
}

func toMessage(cmd scrcpy.Command) (*message, error) {
	if cmd == nil {
		return nil, fmt.Errorf("remotemsg: nil command")
	}
	m := &message{MsgType: TypeName(cmd.Type())}
	switch c := cmd.(type) {
	case scrcpy.InjectKeycode:
		m.KeyCode = &keyCodePayload{
			Action:    ptr(int64(c.Action)),
			KeyCode:   ptr(int64(c.Keycode)),
			MetaState: ptr(int64(c.Metastate)),
		}
	case scrcpy.InjectText:
		m.InjectText = &textPayload{Text: ptr(c.Text.String())}
	case scrcpy.InjectTouchEvent:
		m.TouchEvent = &touchPayload{
			Action:   ptr(int64(c.Action)),
			Buttons:  ptr(int64(c.Buttons)),
			Pointer:  ptr(pointerID(c.PointerID)),
			Pressure: ptr(float64(c.Pressure)),
			Position: fromPosition(c.Position),
		}
	case scrcpy.InjectScrollEvent:
		m.ScrollEvent = &scrollPayload{
			HScroll:  ptr(int64(c.HScroll)),
			VScroll:  ptr(int64(c.VScroll)),
			Position: fromPosition(c.Position),
		}
	case scrcpy.SetClipboard:
		m.SetClipboard = &textPayload{Text: ptr(c.Text.String())}
	case scrcpy.SetScreenPowerMode:
		m.SetScreenPowerMode = &powerModePayload{Mode: ptr(int64(c.Mode))}
	case scrcpy.BackOrScreenOn, scrcpy.ExpandNotificationPanel, scrcpy.CollapseNotificationPanel,
		scrcpy.GetClipboard, scrcpy.RotateDevice, scrcpy.StartRecording, scrcpy.EndRecording:
	default:
		return nil, fmt.Errorf("remotemsg: cannot encode %T", cmd)
	}
	return m, nil
}

func fromPosition(p scrcpy.Position) *positionJSON {
	return &positionJSON{
		ScreenSize: &sizeJSON{
			Width:  ptr(int64(p.ScreenSize.Width)),
			Height: ptr(int64(p.ScreenSize.Height)),
		},
		Point: &pointJSON{
			X: ptr(int64(p.Point.X)),
			Y: ptr(int64(p.Point.Y)),
		},
	}
}
