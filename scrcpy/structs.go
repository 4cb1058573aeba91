package scrcpy

// Command is one discrete control instruction. The concrete types below are
// the complete set; a switch on the type is expected to be exhaustive.
type Command interface {
	Type() MsgType
}

type Point struct {
	X int32
	Y int32
}

type Size struct {
	Width  uint16
	Height uint16
}

// Position is an input coordinate together with the screen size it was
// computed against, so the device can rescale it.
type Position struct {
	Point      Point
	ScreenSize Size
}

// | **Field**     | **Bytes** |
// | ------------- | --------- |
// | Type          | 1         |
// | Action        | 1         |
// | Keycode       | 4 (int32) |
// | Metastate     | 4         |
type InjectKeycode struct {
	Action    byte
	Keycode   int32
	Metastate uint32
}

type InjectText struct {
	Text *Text
}

// | **Field**      | **Bytes**  |
// | -------------- | ---------- |
// | Type           | 1          |
// | Action         | 1          |
// | PointerID      | 8 (uint64) |
// | Position X     | 4 (int32)  |
// | Position Y     | 4 (int32)  |
// | Width          | 2 (uint16) |
// | Height         | 2 (uint16) |
// | Pressure       | 2 (uint16) |
// | Buttons        | 4 (uint32) |
type InjectTouchEvent struct {
	Action    byte
	PointerID uint64
	Position  Position
	Pressure  float32 // [0, 1]
	Buttons   uint32
}

// | **Field**      | **Bytes**  |
// | -------------- | ---------- |
// | Type           | 1          |
// | Position       | 12         |
// | HScroll        | 4 (int32)  |
// | VScroll        | 4 (int32)  |
type InjectScrollEvent struct {
	Position Position
	HScroll  int32
	VScroll  int32
}

type BackOrScreenOn struct{}

type ExpandNotificationPanel struct{}

type CollapseNotificationPanel struct{}

type GetClipboard struct{}

type SetClipboard struct {
	Text *Text
}

type SetScreenPowerMode struct {
	Mode ScreenPowerMode
}

type RotateDevice struct{}

// StartRecording and EndRecording toggle the local recording sink. They
// arrive from remote peers and never reach the device.
type StartRecording struct{}

type EndRecording struct{}

func (InjectKeycode) Type() MsgType             { return TYPE_INJECT_KEYCODE }
func (InjectText) Type() MsgType                { return TYPE_INJECT_TEXT }
func (InjectTouchEvent) Type() MsgType          { return TYPE_INJECT_TOUCH_EVENT }
func (InjectScrollEvent) Type() MsgType         { return TYPE_INJECT_SCROLL_EVENT }
func (BackOrScreenOn) Type() MsgType            { return TYPE_BACK_OR_SCREEN_ON }
func (ExpandNotificationPanel) Type() MsgType   { return TYPE_EXPAND_NOTIFICATION_PANEL }
func (CollapseNotificationPanel) Type() MsgType { return TYPE_COLLAPSE_NOTIFICATION_PANEL }
func (GetClipboard) Type() MsgType              { return TYPE_GET_CLIPBOARD }
func (SetClipboard) Type() MsgType              { return TYPE_SET_CLIPBOARD }
func (SetScreenPowerMode) Type() MsgType        { return TYPE_SET_SCREEN_POWER_MODE }
func (RotateDevice) Type() MsgType              { return TYPE_ROTATE_DEVICE }
func (StartRecording) Type() MsgType            { return TYPE_START_RECORDING }
func (EndRecording) Type() MsgType              { return TYPE_END_RECORDING }

// DeviceMsg is a message sent by the device over the control socket.
type DeviceMsg interface {
	deviceMsg()
}

// DeviceClipboard carries the device clipboard contents, sent after a
// GetClipboard request or when the device clipboard changes.
type DeviceClipboard struct {
	Text string
}

func (DeviceClipboard) deviceMsg() {}
