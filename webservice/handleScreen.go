package webservice

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"

	"mirrorctl/remote"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// /api/ws
func (wm *WebMaster) handlePeerWS(c *gin.Context) {
	if wm.peers == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "websocket peers disabled"})
		return
	}
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		wm.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	// The hijacked connection outlives the request, so waiting for the
	// listener is bounded separately.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), peerOfferTimeout)
	defer cancel()
	if err := wm.peers.Offer(ctx, remote.NewWSConn(ws)); err != nil {
		wm.logger.Warn("websocket peer not accepted", "client", c.ClientIP(), "error", err)
		return
	}
	wm.logger.Info("websocket peer connected", "client", c.ClientIP())
}

// /api/webrtc/offer takes {"type":"offer","sdp":...} and returns the answer
// in the same shape.
func (wm *WebMaster) handleWebRTCOffer(c *gin.Context) {
	if wm.webrtc == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "webrtc peers disabled"})
		return
	}
	var offer webrtc.SessionDescription
	if err := c.ShouldBindJSON(&offer); err != nil || offer.Type != webrtc.SDPTypeOffer || offer.SDP == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offer"})
		return
	}
	answer, err := wm.webrtc.Answer(c.Request.Context(), offer.SDP)
	if err != nil {
		wm.logger.Error("answering webrtc offer", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: answer})
}
