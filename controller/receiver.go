package controller

import (
	"errors"
	"fmt"
	"io"
	"net"

	"mirrorctl/scrcpy"
)

// runReceiver reads device messages until the socket fails or is closed.
// Unless the owner called Stop first, the end of the socket takes the
// controller down.
func (c *Controller) runReceiver() {
	defer c.wg.Done()
	err := c.receive()
	if c.stopping.Load() {
		return
	}
	c.fail(fmt.Errorf("device socket: %w", err))
}

func (c *Controller) receive() error {
	buf := make([]byte, scrcpy.DEVICE_MSG_SERIALIZED_MAX_SIZE)
	tail := 0
	for {
		n, err := c.device.Read(buf[tail:])
		if n > 0 {
			tail += n
			consumed, perr := c.processDeviceMsgs(buf[:tail])
			if perr != nil {
				c.logger.Warn("device message rejected, receiver exiting", "error", perr)
				return perr
			}
			copy(buf, buf[consumed:tail])
			tail -= consumed
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) && !errors.Is(err, io.ErrClosedPipe) {
				c.logger.Warn("device read failed", "error", err)
			}
			return err
		}
		if n == 0 {
			c.logger.Debug("device socket returned no data")
			return io.EOF
		}
	}
}

func (c *Controller) processDeviceMsgs(buf []byte) (int, error) {
	head := 0
	for {
		msg, n, err := scrcpy.DeserializeDeviceMsg(buf[head:])
		if err != nil {
			return head, err
		}
		if n == 0 {
			return head, nil
		}
		c.handleDeviceMsg(msg)
		head += n
	}
}

func (c *Controller) handleDeviceMsg(msg scrcpy.DeviceMsg) {
	switch m := msg.(type) {
	case scrcpy.DeviceClipboard:
		c.logger.Debug("device clipboard", "length", len(m.Text))
		c.clipMu.Lock()
		c.clipboard = m.Text
		c.clipMu.Unlock()
		if c.onClipboard != nil {
			c.onClipboard(m.Text)
		}
	}
}
