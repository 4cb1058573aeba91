package remote

import (
	"errors"

	"mirrorctl/scrcpy"
)

// ErrQueueFull is returned by Dispatch when the controller refuses a command.
var ErrQueueFull = errors.New("remote: control queue full")

// Dispatcher receives decoded remote commands. *controller.Controller
// implements it.
type Dispatcher interface {
	PushMsg(cmd scrcpy.Command) bool
	StartRecording() error
	StopRecording() error
}

// Dispatch applies recording commands directly and queues everything else.
// A refused command is destroyed here.
func Dispatch(d Dispatcher, cmd scrcpy.Command) error {
	switch cmd.(type) {
	case scrcpy.StartRecording:
		return d.StartRecording()
	case scrcpy.EndRecording:
		return d.StopRecording()
	}
	if !d.PushMsg(cmd) {
		scrcpy.Destroy(cmd)
		return ErrQueueFull
	}
	return nil
}
