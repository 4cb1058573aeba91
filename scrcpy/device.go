package scrcpy

import (
	"encoding/binary"
	"fmt"
)

// DeserializeDeviceMsg parses one device message from the start of buf.
// n == 0 with a nil error means buf does not yet hold a full message.
//
// Clipboard: [0][u16 length][utf-8 text]
func DeserializeDeviceMsg(buf []byte) (msg DeviceMsg, n int, err error) {
	if len(buf) < 3 {
		return nil, 0, nil
	}
	switch buf[0] {
	case DEVICE_MSG_TYPE_CLIPBOARD:
		l := int(binary.BigEndian.Uint16(buf[1:3]))
		if l > DEVICE_MSG_TEXT_MAX_LENGTH {
			return nil, 0, fmt.Errorf("scrcpy: clipboard length %d exceeds %d", l, DEVICE_MSG_TEXT_MAX_LENGTH)
		}
		if len(buf) < 3+l {
			return nil, 0, nil
		}
		return DeviceClipboard{Text: string(buf[3 : 3+l])}, 3 + l, nil
	}
	return nil, 0, fmt.Errorf("%w: device message %d", ErrUnknownMsgType, buf[0])
}

// SerializeDeviceMsg is the device end of DeserializeDeviceMsg.
func SerializeDeviceMsg(msg DeviceMsg, buf []byte) int {
	switch m := msg.(type) {
	case DeviceClipboard:
		buf[0] = DEVICE_MSG_TYPE_CLIPBOARD
		return 1 + writeString(buf[1:], []byte(m.Text), DEVICE_MSG_TEXT_MAX_LENGTH)
	}
	return 0
}
