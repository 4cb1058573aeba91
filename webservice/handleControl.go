package webservice

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"mirrorctl/controller"
	"mirrorctl/remote"
	"mirrorctl/scrcpy"
	"mirrorctl/scrcpy/remotemsg"
)

func (wm *WebMaster) handleStatus(c *gin.Context) {
	resp := gin.H{"controller": wm.device.Stats()}
	if wm.webrtc != nil {
		resp["webrtc_peers"] = wm.webrtc.Peers()
	}
	c.JSON(http.StatusOK, resp)
}

// handleControl accepts one or more remote JSON messages back to back. The
// body is decoded in full before anything is dispatched.
func (wm *WebMaster) handleControl(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxControlBody))
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
		return
	}

	var cmds []scrcpy.Command
	destroy := func(cmds []scrcpy.Command) {
		for _, cmd := range cmds {
			scrcpy.Destroy(cmd)
		}
	}
	for len(body) > 0 {
		cmd, n, err := remotemsg.Deserialize(body)
		if errors.Is(err, remotemsg.ErrIncomplete) && len(cmds) > 0 && n == len(body) {
			break // trailing whitespace
		}
		if err != nil {
			destroy(cmds)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		cmds = append(cmds, cmd)
		body = body[n:]
	}
	if len(cmds) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty request"})
		return
	}

	for i, cmd := range cmds {
		if err := remote.Dispatch(wm.device, cmd); err != nil {
			destroy(cmds[i+1:])
			status := http.StatusInternalServerError
			switch {
			case errors.Is(err, remote.ErrQueueFull):
				status = http.StatusTooManyRequests
			case errors.Is(err, controller.ErrRecordingDisabled):
				status = http.StatusConflict
			}
			c.JSON(status, gin.H{"error": err.Error(), "accepted": i})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"accepted": len(cmds)})
}

func (wm *WebMaster) handleRecordingStart(c *gin.Context) {
	if err := wm.device.StartRecording(); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, controller.ErrRecordingDisabled) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"recording": true})
}

func (wm *WebMaster) handleRecordingStop(c *gin.Context) {
	if err := wm.device.StopRecording(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"recording": false})
}

// handleClipboard returns the last clipboard the device reported. With
// ?refresh=true it also asks the device for a fresh copy.
func (wm *WebMaster) handleClipboard(c *gin.Context) {
	if c.Query("refresh") == "true" {
		if !wm.device.PushMsg(scrcpy.GetClipboard{}) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": remote.ErrQueueFull.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"text": wm.device.Clipboard()})
}
