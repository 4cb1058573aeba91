// Package webservice is the HTTP API in front of a controller: PIN unlock,
// status, command push, recording control, clipboard and the websocket and
// WebRTC peer endpoints.
package webservice

import (
	"context"
	"crypto/rand"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"mirrorctl/controller"
	"mirrorctl/remote"
)

const (
	maxUnlockAttempts = 5
	unlockLockout     = 10 * time.Minute
	maxControlBody    = 1 << 20
	peerOfferTimeout  = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Device is the controller surface the API needs.
type Device interface {
	remote.Dispatcher
	Stats() controller.Stats
	Clipboard() string
}

// Answerer answers WebRTC offers. *remote.WebRTCAnswerer implements it.
type Answerer interface {
	Answer(ctx context.Context, offerSDP string) (string, error)
	Peers() int
}

type Options struct {
	Logger *slog.Logger
	// PIN unlocks the API; empty disables authentication.
	PIN string
	// JWTSecret signs tokens; a random secret is generated when empty.
	JWTSecret []byte
	TokenTTL  time.Duration
	// Peers receives websocket connections; nil disables /api/ws.
	Peers *remote.ConnListener
	// WebRTC answers offers; nil disables /api/webrtc/offer.
	WebRTC Answerer
	Now    func() time.Time
}

type UnlockAttemptRecord struct {
	Attempts    int
	IsLocked    bool
	LockUntil   time.Time
	LastAttempt time.Time
}

type WebMaster struct {
	device   Device
	logger   *slog.Logger
	pin      string
	tokenTTL time.Duration
	peers    *remote.ConnListener
	webrtc   Answerer
	now      func() time.Time
	router   *gin.Engine

	jwtSecret []byte

	mu                   sync.Mutex
	UnlockAttemptRecords map[string]UnlockAttemptRecord
}

func New(device Device, opts Options) (*WebMaster, error) {
	wm := &WebMaster{
		device:               device,
		logger:               opts.Logger,
		pin:                  opts.PIN,
		tokenTTL:             opts.TokenTTL,
		peers:                opts.Peers,
		webrtc:               opts.WebRTC,
		now:                  opts.Now,
		jwtSecret:            opts.JWTSecret,
		UnlockAttemptRecords: make(map[string]UnlockAttemptRecord),
	}
	if wm.logger == nil {
		wm.logger = slog.Default()
	}
	if wm.now == nil {
		wm.now = time.Now
	}
	if wm.tokenTTL <= 0 {
		wm.tokenTTL = 2 * time.Hour
	}
	if len(wm.jwtSecret) == 0 {
		wm.jwtSecret = make([]byte, 32)
		if _, err := rand.Read(wm.jwtSecret); err != nil {
			return nil, err
		}
	}
	wm.router = wm.routes()
	return wm, nil
}

func (wm *WebMaster) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), wm.requestLogger())

	api := r.Group("/api")
	api.POST("/unlock", wm.handleUnlock)

	authed := api.Group("")
	authed.Use(wm.HybridAuthMiddleware())
	authed.GET("/status", wm.handleStatus)
	authed.POST("/control", wm.handleControl)
	authed.POST("/recording/start", wm.handleRecordingStart)
	authed.POST("/recording/stop", wm.handleRecordingStop)
	authed.GET("/clipboard", wm.handleClipboard)
	authed.GET("/ws", wm.handlePeerWS)
	authed.POST("/webrtc/offer", wm.handleWebRTCOffer)
	return r
}

func (wm *WebMaster) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := wm.now()
		c.Next()
		wm.logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"client", c.ClientIP(),
			"duration", wm.now().Sub(start))
	}
}

func (wm *WebMaster) Handler() http.Handler {
	return wm.router
}

// Run serves on ln until ctx is done, then shuts the server down.
func (wm *WebMaster) Run(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           wm.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	wm.logger.Info("http api listening", "addr", ln.Addr().String())

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		srv.Close()
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
