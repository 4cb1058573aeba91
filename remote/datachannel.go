package remote

import (
	"io"
	"net"
	"sync"
	"time"
)

// maxDataChannelMessage is the largest message read from a detached data
// channel in one call. Pion fails reads into smaller buffers, so reads are
// staged through a buffer of this size.
const maxDataChannelMessage = 64 * 1024

// DataChannelConn wraps a detached data channel as a net.Conn. Deadlines
// close the channel when they fire, which unblocks pending reads and writes
// for good.
type DataChannelConn struct {
	rwc   io.ReadWriteCloser
	local string
	peer  string

	rmu     sync.Mutex
	staged  []byte
	pending []byte

	mu         sync.Mutex
	timer      *time.Timer
	expired    bool
	closedOnce sync.Once
}

var _ net.Conn = (*DataChannelConn)(nil)

func NewDataChannelConn(rwc io.ReadWriteCloser, local, peer string) *DataChannelConn {
	return &DataChannelConn{rwc: rwc, local: local, peer: peer}
}

func (c *DataChannelConn) Read(p []byte) (int, error) {
	c.rmu.Lock()
	defer c.rmu.Unlock()
	for len(c.pending) == 0 {
		if c.staged == nil {
			c.staged = make([]byte, maxDataChannelMessage)
		}
		n, err := c.rwc.Read(c.staged)
		c.pending = c.staged[:n]
		if err != nil {
			if n > 0 {
				break
			}
			return 0, err
		}
	}
	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

func (c *DataChannelConn) Write(p []byte) (int, error) {
	return c.rwc.Write(p)
}

func (c *DataChannelConn) Close() error {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()
	return c.closeRWC()
}

func (c *DataChannelConn) closeRWC() error {
	var err error
	c.closedOnce.Do(func() { err = c.rwc.Close() })
	return err
}

func (c *DataChannelConn) LocalAddr() net.Addr  { return peerAddr{network: "webrtc", label: c.local} }
func (c *DataChannelConn) RemoteAddr() net.Addr { return peerAddr{network: "webrtc", label: c.peer} }

// SetDeadline arms a single timer for both directions. A zero value clears it.
func (c *DataChannelConn) SetDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if t.IsZero() || c.expired {
		return nil
	}
	d := time.Until(t)
	if d <= 0 {
		c.expired = true
		c.closeRWC()
		return nil
	}
	c.timer = time.AfterFunc(d, func() {
		c.mu.Lock()
		c.expired = true
		c.mu.Unlock()
		c.closeRWC()
	})
	return nil
}

func (c *DataChannelConn) SetReadDeadline(t time.Time) error  { return c.SetDeadline(t) }
func (c *DataChannelConn) SetWriteDeadline(t time.Time) error { return c.SetDeadline(t) }
