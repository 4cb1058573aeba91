// Package controller delivers control commands to the device socket.
//
// Producers call PushMsg from any goroutine. A single writer goroutine pops
// commands in order, serializes them and writes them out. A second goroutine
// reads messages the device sends back on the same socket.
package controller

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"mirrorctl/scrcpy"
	"mirrorctl/scrcpy/remotemsg"
)

// ErrRecordingDisabled is returned by StartRecording when no recording path
// is configured.
var ErrRecordingDisabled = errors.New("controller: recording path not configured")

type Options struct {
	Logger *slog.Logger
	// RecordingPath is truncated and rewritten by each StartRecording.
	RecordingPath string
	Now           func() time.Time
	// OnClipboard is called from the receiver goroutine with the device
	// clipboard text.
	OnClipboard func(text string)
}

type Stats struct {
	Queued    int    `json:"queued"`
	Delivered uint64 `json:"delivered"`
	Dropped   uint64 `json:"dropped"`
	Rejected  uint64 `json:"rejected"`
	Recording bool   `json:"recording"`
	Running   bool   `json:"running"`
}

type Controller struct {
	device        io.ReadWriter
	logger        *slog.Logger
	now           func() time.Time
	onClipboard   func(string)
	recordingPath string

	// mu orders pushes with their snapshot lines.
	mu     sync.Mutex
	queue  *Queue
	sink   *recorder
	closed bool

	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}

	errMu sync.Mutex
	err   error

	clipMu    sync.Mutex
	clipboard string

	delivered atomic.Uint64
	dropped   atomic.Uint64
	rejected  atomic.Uint64
	running   atomic.Bool
	stopping  atomic.Bool
}

func New(device io.ReadWriter, opts Options) *Controller {
	c := &Controller{
		device:        device,
		logger:        opts.Logger,
		now:           opts.Now,
		onClipboard:   opts.OnClipboard,
		recordingPath: opts.RecordingPath,
		queue:         NewQueue(),
		done:          make(chan struct{}),
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Start launches the writer and receiver goroutines.
func (c *Controller) Start() {
	c.startOnce.Do(func() {
		c.running.Store(true)
		c.wg.Add(2)
		go c.runWriter()
		go c.runReceiver()
	})
}

// PushMsg queues cmd for delivery. On false the caller keeps ownership of
// cmd and must Destroy it. When recording, a snapshot of every accepted
// command is written in enqueue order.
func (c *Controller) PushMsg(cmd scrcpy.Command) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	// snapshot before the writer can take and release cmd
	var line []byte
	if c.sink != nil {
		var err error
		line, err = remotemsg.Encode(cmd, c.now())
		if err != nil {
			c.logger.Warn("cannot snapshot command", "type", cmd.Type().String(), "error", err)
		}
	}

	if !c.queue.Push(cmd) {
		c.rejected.Add(1)
		return false
	}
	if line != nil {
		if err := c.sink.write(line); err != nil {
			c.logger.Warn("recording write failed", "path", c.sink.path, "error", err)
		}
	}
	return true
}

func (c *Controller) runWriter() {
	defer c.wg.Done()
	defer close(c.done)
	defer c.running.Store(false)

	buf := make([]byte, scrcpy.CONTROL_MSG_SERIALIZED_MAX_SIZE)
	for {
		cmd, ok := c.queue.Pop()
		if !ok {
			return
		}
		n := scrcpy.Serialize(cmd, buf)
		if n == 0 {
			c.logger.Warn("unknown message type, dropped", "go_type", fmt.Sprintf("%T", cmd))
			c.dropped.Add(1)
			scrcpy.Destroy(cmd)
			continue
		}
		err := writeAll(c.device, buf[:n])
		scrcpy.Destroy(cmd)
		if err != nil {
			c.fail(fmt.Errorf("write %s: %w", cmd.Type(), err))
			return
		}
		c.delivered.Add(1)
	}
}

func writeAll(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		if n <= 0 {
			return io.ErrShortWrite
		}
		b = b[n:]
	}
	return nil
}

func (c *Controller) fail(err error) {
	c.errMu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.errMu.Unlock()
	c.logger.Error("control channel down", "error", err)
	c.queue.Stop()
}

// Stop asks the writer to exit. Queued commands are not delivered. The
// owner should close the device socket afterwards so the receiver returns.
func (c *Controller) Stop() {
	c.stopping.Store(true)
	c.stopOnce.Do(c.queue.Stop)
}

// Wait joins both goroutines, releases undelivered commands and closes the
// recording. It returns the write or read error that stopped the
// controller, if any.
func (c *Controller) Wait() error {
	c.wg.Wait()
	for _, cmd := range c.queue.Drain() {
		scrcpy.Destroy(cmd)
	}

	c.mu.Lock()
	c.closed = true
	if c.sink != nil {
		if err := c.sink.close(); err != nil {
			c.logger.Warn("closing recording", "error", err)
		}
		c.sink = nil
	}
	c.mu.Unlock()

	return c.Err()
}

// Done is closed once the writer has exited.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

func (c *Controller) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// StartRecording opens a fresh recording file, closing any open one first.
func (c *Controller) StartRecording() error {
	if c.recordingPath == "" {
		return ErrRecordingDisabled
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.New("controller: stopped")
	}
	if c.sink != nil {
		if err := c.sink.close(); err != nil {
			c.logger.Warn("closing previous recording", "error", err)
		}
		c.sink = nil
	}
	r, err := openRecorder(c.recordingPath)
	if err != nil {
		return err
	}
	c.sink = r
	c.logger.Info("recording started", "path", c.recordingPath)
	return nil
}

// StopRecording flushes and closes the recording. It is a no-op when none
// is open.
func (c *Controller) StopRecording() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sink == nil {
		return nil
	}
	r := c.sink
	c.sink = nil
	c.logger.Info("recording stopped", "path", r.path, "events", r.n)
	return r.close()
}

func (c *Controller) Recording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sink != nil
}

// Clipboard is the last clipboard text received from the device.
func (c *Controller) Clipboard() string {
	c.clipMu.Lock()
	defer c.clipMu.Unlock()
	return c.clipboard
}

func (c *Controller) Stats() Stats {
	return Stats{
		Queued:    c.queue.Len(),
		Delivered: c.delivered.Load(),
		Dropped:   c.dropped.Load(),
		Rejected:  c.rejected.Load(),
		Recording: c.Recording(),
		Running:   c.running.Load(),
	}
}
