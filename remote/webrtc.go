package remote

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
)

const iceGatherTimeout = 10 * time.Second

type WebRTCOptions struct {
	ICEServers []string
	// UDP port range for ICE candidates; zero means any port.
	PortMin uint16
	PortMax uint16
	// OfferTimeout bounds how long an opened data channel waits for the
	// listener to take it.
	OfferTimeout time.Duration
}

// WebRTCAnswerer answers browser offers and hands each opened data channel
// to a ConnListener as a stream connection.
type WebRTCAnswerer struct {
	api    *webrtc.API
	config webrtc.Configuration
	target *ConnListener
	logger *slog.Logger
	offerT time.Duration

	mu    sync.Mutex
	peers map[string]*webrtc.PeerConnection
}

func NewWebRTCAnswerer(target *ConnListener, opts WebRTCOptions, logger *slog.Logger) (*WebRTCAnswerer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	settingEngine := webrtc.SettingEngine{}
	settingEngine.DetachDataChannels()
	settingEngine.SetIncludeLoopbackCandidate(true)
	if opts.PortMin != 0 || opts.PortMax != 0 {
		if err := settingEngine.SetEphemeralUDPPortRange(opts.PortMin, opts.PortMax); err != nil {
			return nil, fmt.Errorf("webrtc port range: %w", err)
		}
	}

	config := webrtc.Configuration{}
	if len(opts.ICEServers) > 0 {
		config.ICEServers = []webrtc.ICEServer{{URLs: opts.ICEServers}}
	}
	offerT := opts.OfferTimeout
	if offerT <= 0 {
		offerT = 30 * time.Second
	}
	return &WebRTCAnswerer{
		api:    webrtc.NewAPI(webrtc.WithSettingEngine(settingEngine)),
		config: config,
		target: target,
		logger: logger,
		offerT: offerT,
		peers:  make(map[string]*webrtc.PeerConnection),
	}, nil
}

// Answer applies a remote SDP offer and returns the complete local answer.
func (a *WebRTCAnswerer) Answer(ctx context.Context, offerSDP string) (string, error) {
	pc, err := a.api.NewPeerConnection(a.config)
	if err != nil {
		return "", fmt.Errorf("creating PeerConnection: %w", err)
	}
	id := uuid.NewString()
	logger := a.logger.With("peer", id)

	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		a.handleDataChannel(dc, id, logger)
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		logger.Debug("peer connection state", "state", state.String())
		switch state {
		case webrtc.PeerConnectionStateFailed:
			a.forget(id)
			go pc.Close()
		case webrtc.PeerConnectionStateClosed:
			a.forget(id)
		}
	})

	if err := pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offerSDP}); err != nil {
		pc.Close()
		return "", fmt.Errorf("setting remote description: %w", err)
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		pc.Close()
		return "", fmt.Errorf("creating SDP answer: %w", err)
	}
	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		pc.Close()
		return "", fmt.Errorf("setting local description: %w", err)
	}

	select {
	case <-gatherComplete:
	case <-time.After(iceGatherTimeout):
		pc.Close()
		return "", fmt.Errorf("ICE gathering timed out after %s", iceGatherTimeout)
	case <-ctx.Done():
		pc.Close()
		return "", ctx.Err()
	}

	a.mu.Lock()
	a.peers[id] = pc
	a.mu.Unlock()
	logger.Info("webrtc offer answered")
	return pc.LocalDescription().SDP, nil
}

func (a *WebRTCAnswerer) handleDataChannel(dc *webrtc.DataChannel, id string, logger *slog.Logger) {
	dc.OnOpen(func() {
		raw, err := dc.Detach()
		if err != nil {
			logger.Error("detaching data channel failed", "label", dc.Label(), "error", err)
			return
		}
		conn := NewDataChannelConn(raw, "local/"+dc.Label(), id+"/"+dc.Label())
		ctx, cancel := context.WithTimeout(context.Background(), a.offerT)
		defer cancel()
		if err := a.target.Offer(ctx, conn); err != nil {
			logger.Warn("data channel not accepted", "label", dc.Label(), "error", err)
		}
	})
}

func (a *WebRTCAnswerer) forget(id string) {
	a.mu.Lock()
	delete(a.peers, id)
	a.mu.Unlock()
}

// Peers is the number of live peer connections.
func (a *WebRTCAnswerer) Peers() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.peers)
}

// Close tears down every peer connection.
func (a *WebRTCAnswerer) Close() error {
	a.mu.Lock()
	peers := a.peers
	a.peers = make(map[string]*webrtc.PeerConnection)
	a.mu.Unlock()

	for _, pc := range peers {
		pc.Close()
	}
	return nil
}
