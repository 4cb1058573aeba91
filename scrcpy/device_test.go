package scrcpy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceClipboard(t *testing.T) {
	buf := make([]byte, DEVICE_MSG_SERIALIZED_MAX_SIZE)
	n := SerializeDeviceMsg(DeviceClipboard{Text: "copied"}, buf)
	require.Equal(t, 3+6, n)

	for cut := 0; cut < n; cut++ {
		msg, m, err := DeserializeDeviceMsg(buf[:cut])
		require.NoError(t, err)
		assert.Zero(t, m)
		assert.Nil(t, msg)
	}

	msg, m, err := DeserializeDeviceMsg(buf[:n])
	require.NoError(t, err)
	assert.Equal(t, n, m)
	assert.Equal(t, DeviceClipboard{Text: "copied"}, msg)
}

func TestDeviceMsgErrors(t *testing.T) {
	_, _, err := DeserializeDeviceMsg([]byte{9, 0, 0})
	assert.ErrorIs(t, err, ErrUnknownMsgType)

	_, _, err = DeserializeDeviceMsg([]byte{DEVICE_MSG_TYPE_CLIPBOARD, 0xff, 0xff})
	assert.Error(t, err)
}
