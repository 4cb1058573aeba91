package scrcpy

// MsgType identifies a control command. Values below 0x80 are device wire
// tags; the rest only exist on the client side.
type MsgType byte

// control messages (client -> device)
const (
	TYPE_INJECT_KEYCODE              MsgType = 0  // key press / release
	TYPE_INJECT_TEXT                 MsgType = 1  // text input
	TYPE_INJECT_TOUCH_EVENT          MsgType = 2  // touch / mouse pointer
	TYPE_INJECT_SCROLL_EVENT         MsgType = 3  // wheel
	TYPE_BACK_OR_SCREEN_ON           MsgType = 4  // back, or wake the screen
	TYPE_EXPAND_NOTIFICATION_PANEL   MsgType = 5  // pull down notifications
	TYPE_COLLAPSE_NOTIFICATION_PANEL MsgType = 6  // close notifications
	TYPE_GET_CLIPBOARD               MsgType = 7  // ask the device for its clipboard
	TYPE_SET_CLIPBOARD               MsgType = 8  // push text to the device clipboard
	TYPE_SET_SCREEN_POWER_MODE       MsgType = 9  // display on / off
	TYPE_ROTATE_DEVICE               MsgType = 10 // rotate screen

	// recording control, handled locally and never sent to the device
	TYPE_START_RECORDING MsgType = 0xF0
	TYPE_END_RECORDING   MsgType = 0xF1
)

const (
	CONTROL_MSG_TEXT_MAX_LENGTH           = 300
	CONTROL_MSG_CLIPBOARD_TEXT_MAX_LENGTH = 4093
	CONTROL_MSG_SERIALIZED_MAX_SIZE       = 3 + CONTROL_MSG_CLIPBOARD_TEXT_MAX_LENGTH
)

// android key event actions
const ACTION_DOWN byte = 0
const ACTION_UP byte = 1
const ACTION_MOVE byte = 2

// android mouse buttons

const BUTTON_PRIMARY uint32 = 1 << 0

/**
 * Button constant: Secondary button (right mouse button).
 */
const BUTTON_SECONDARY uint32 = 1 << 1

/**
 * Button constant: Tertiary button (middle mouse button).
 */
const BUTTON_TERTIARY uint32 = 1 << 2

const BUTTON_BACK uint32 = 1 << 3
const BUTTON_FORWARD uint32 = 1 << 4

// pointer ids used by the device for non-finger input
const POINTER_ID_MOUSE uint64 = ^uint64(0)              // -1
const POINTER_ID_VIRTUAL_FINGER uint64 = ^uint64(0) - 1 // -2

// ScreenPowerMode values accepted by the device.
type ScreenPowerMode byte

const (
	SCREEN_POWER_MODE_OFF    ScreenPowerMode = 0
	SCREEN_POWER_MODE_NORMAL ScreenPowerMode = 2
)

// Device -> Client messages
const DEVICE_MSG_TYPE_CLIPBOARD byte = 0

const DEVICE_MSG_TEXT_MAX_LENGTH = 4093
const DEVICE_MSG_SERIALIZED_MAX_SIZE = 3 + DEVICE_MSG_TEXT_MAX_LENGTH

var msgTypeNames = map[MsgType]string{
	TYPE_INJECT_KEYCODE:              "INJECT_KEYCODE",
	TYPE_INJECT_TEXT:                 "INJECT_TEXT",
	TYPE_INJECT_TOUCH_EVENT:          "INJECT_TOUCH_EVENT",
	TYPE_INJECT_SCROLL_EVENT:         "INJECT_SCROLL_EVENT",
	TYPE_BACK_OR_SCREEN_ON:           "BACK_OR_SCREEN_ON",
	TYPE_EXPAND_NOTIFICATION_PANEL:   "EXPAND_NOTIFICATION_PANEL",
	TYPE_COLLAPSE_NOTIFICATION_PANEL: "COLLAPSE_NOTIFICATION_PANEL",
	TYPE_GET_CLIPBOARD:               "GET_CLIPBOARD",
	TYPE_SET_CLIPBOARD:               "SET_CLIPBOARD",
	TYPE_SET_SCREEN_POWER_MODE:       "SET_SCREEN_POWER_MODE",
	TYPE_ROTATE_DEVICE:               "ROTATE_DEVICE",
	TYPE_START_RECORDING:             "START_RECORDING",
	TYPE_END_RECORDING:               "END_RECORDING",
}

func (t MsgType) String() string {
	if name, ok := msgTypeNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}
