package webservice

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mirrorctl/controller"
	"mirrorctl/remote"
	"mirrorctl/scrcpy"
	"mirrorctl/scrcpy/remotemsg"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeDevice struct {
	mu        sync.Mutex
	pushed    []scrcpy.Command
	full      bool
	recording bool
	noRecord  bool
	clipboard string
	pushedC   chan scrcpy.Command
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{pushedC: make(chan scrcpy.Command, 16)}
}

func (d *fakeDevice) PushMsg(cmd scrcpy.Command) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.full {
		return false
	}
	d.pushed = append(d.pushed, cmd)
	d.pushedC <- cmd
	return true
}

func (d *fakeDevice) StartRecording() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.noRecord {
		return controller.ErrRecordingDisabled
	}
	d.recording = true
	return nil
}

func (d *fakeDevice) StopRecording() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recording = false
	return nil
}

func (d *fakeDevice) Stats() controller.Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return controller.Stats{Queued: len(d.pushed), Recording: d.recording, Running: true}
}

func (d *fakeDevice) Clipboard() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clipboard
}

type fakeAnswerer struct {
	offer string
	err   error
}

func (a *fakeAnswerer) Answer(_ context.Context, sdp string) (string, error) {
	a.offer = sdp
	return "v=0 answer", a.err
}

func (a *fakeAnswerer) Peers() int { return 3 }

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestWebMaster(t *testing.T, dev Device, opts Options) *WebMaster {
	t.Helper()
	opts.Logger = testLogger()
	wm, err := New(dev, opts)
	require.NoError(t, err)
	return wm
}

func do(wm *WebMaster, method, path, body string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	wm.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m), w.Body.String())
	return m
}

func controlBody(t *testing.T, cmds ...scrcpy.Command) string {
	t.Helper()
	var sb strings.Builder
	for _, cmd := range cmds {
		b, err := remotemsg.Encode(cmd, time.Time{})
		require.NoError(t, err)
		sb.Write(b)
		sb.WriteByte('\n')
	}
	return sb.String()
}

func TestNoPINDisablesAuth(t *testing.T) {
	wm := newTestWebMaster(t, newFakeDevice(), Options{})
	w := do(wm, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode(t, w)["controller"].(map[string]any)
	assert.Equal(t, true, stats["running"])
}

func TestUnlock(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)}
	wm := newTestWebMaster(t, newFakeDevice(), Options{PIN: "1234", TokenTTL: time.Hour, Now: clock.Now})

	assert.Equal(t, http.StatusUnauthorized, do(wm, http.MethodGet, "/api/status", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(wm, http.MethodPost, "/api/unlock", "nope").Code)

	w := do(wm, http.MethodPost, "/api/unlock", `{"pin":"1234"}`)
	require.Equal(t, http.StatusOK, w.Code)
	token := decode(t, w)["token"].(string)
	require.NotEmpty(t, token)

	cookie := w.Result().Cookies()
	require.Len(t, cookie, 1)
	assert.Equal(t, authCookie, cookie[0].Name)
	assert.True(t, cookie[0].HttpOnly)

	assert.Equal(t, http.StatusOK, do(wm, http.MethodGet, "/api/status", "", "Authorization", "Bearer "+token).Code)
	assert.Equal(t, http.StatusOK, do(wm, http.MethodGet, "/api/status", "", "Cookie", authCookie+"="+token).Code)
	assert.Equal(t, http.StatusUnauthorized, do(wm, http.MethodGet, "/api/status", "", "Authorization", "Bearer garbage").Code)

	clock.Advance(2 * time.Hour)
	assert.Equal(t, http.StatusUnauthorized, do(wm, http.MethodGet, "/api/status", "", "Authorization", "Bearer "+token).Code, "expired")
}

func TestUnlockForeignToken(t *testing.T) {
	wm := newTestWebMaster(t, newFakeDevice(), Options{PIN: "1234"})
	other := newTestWebMaster(t, newFakeDevice(), Options{PIN: "1234"})
	token, err := other.GenerateToken()
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, do(wm, http.MethodGet, "/api/status", "", "Authorization", "Bearer "+token).Code)
}

func TestUnlockLockout(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)}
	wm := newTestWebMaster(t, newFakeDevice(), Options{PIN: "1234", Now: clock.Now})

	for i := 1; i <= maxUnlockAttempts; i++ {
		w := do(wm, http.MethodPost, "/api/unlock", `{"pin":"0000"}`)
		require.Equal(t, http.StatusUnauthorized, w.Code)
		assert.EqualValues(t, maxUnlockAttempts-i, decode(t, w)["leftTries"])
	}

	w := do(wm, http.MethodPost, "/api/unlock", `{"pin":"1234"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code, "locked even with the right PIN")

	clock.Advance(unlockLockout - time.Second)
	assert.Equal(t, http.StatusTooManyRequests, do(wm, http.MethodPost, "/api/unlock", `{"pin":"1234"}`).Code)

	clock.Advance(time.Second)
	assert.Equal(t, http.StatusOK, do(wm, http.MethodPost, "/api/unlock", `{"pin":"1234"}`).Code)
	assert.Empty(t, wm.UnlockAttemptRecords)
}

func TestUnlockForgetsStaleRecords(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)}
	wm := newTestWebMaster(t, newFakeDevice(), Options{PIN: "1234", Now: clock.Now})

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusUnauthorized, do(wm, http.MethodPost, "/api/unlock", `{"pin":"0000"}`).Code)
	}
	wm.mu.Lock()
	wm.UnlockAttemptRecords["203.0.113.9"] = UnlockAttemptRecord{
		Attempts:  maxUnlockAttempts,
		IsLocked:  true,
		LockUntil: clock.Now().Add(time.Minute),
	}
	wm.mu.Unlock()

	clock.Advance(unlockLockout)
	w := do(wm, http.MethodPost, "/api/unlock", `{"pin":"12345"}`)
	require.Equal(t, http.StatusUnauthorized, w.Code, "PIN with a matching prefix is still wrong")
	assert.EqualValues(t, maxUnlockAttempts-1, decode(t, w)["leftTries"], "old failures forgotten")

	wm.mu.Lock()
	defer wm.mu.Unlock()
	assert.Len(t, wm.UnlockAttemptRecords, 1)
	assert.NotContains(t, wm.UnlockAttemptRecords, "203.0.113.9")
}

func TestControl(t *testing.T) {
	dev := newFakeDevice()
	wm := newTestWebMaster(t, dev, Options{})

	body := controlBody(t,
		scrcpy.InjectKeycode{Action: scrcpy.ACTION_DOWN, Keycode: 3},
		scrcpy.StartRecording{},
		scrcpy.InjectText{Text: scrcpy.NewText("hi")},
	)
	w := do(wm, http.MethodPost, "/api/control", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 3, decode(t, w)["accepted"])

	require.Len(t, dev.pushed, 2)
	assert.Equal(t, scrcpy.InjectKeycode{Action: scrcpy.ACTION_DOWN, Keycode: 3}, dev.pushed[0])
	assert.Equal(t, "hi", dev.pushed[1].(scrcpy.InjectText).Text.String())
	assert.True(t, dev.recording)
}

func TestControlErrors(t *testing.T) {
	t.Run("malformed dispatches nothing", func(t *testing.T) {
		dev := newFakeDevice()
		wm := newTestWebMaster(t, dev, Options{})
		body := controlBody(t, scrcpy.RotateDevice{}) + `{"msg_type":"CONTROL_MSG_TYPE_BOGUS"}`
		assert.Equal(t, http.StatusBadRequest, do(wm, http.MethodPost, "/api/control", body).Code)
		assert.Empty(t, dev.pushed)
	})
	t.Run("empty", func(t *testing.T) {
		wm := newTestWebMaster(t, newFakeDevice(), Options{})
		assert.Equal(t, http.StatusBadRequest, do(wm, http.MethodPost, "/api/control", "  \n").Code)
	})
	t.Run("truncated", func(t *testing.T) {
		wm := newTestWebMaster(t, newFakeDevice(), Options{})
		body := controlBody(t, scrcpy.RotateDevice{})
		assert.Equal(t, http.StatusBadRequest, do(wm, http.MethodPost, "/api/control", body[:len(body)-3]).Code)
	})
	t.Run("queue full", func(t *testing.T) {
		dev := newFakeDevice()
		dev.full = true
		wm := newTestWebMaster(t, dev, Options{})
		w := do(wm, http.MethodPost, "/api/control", controlBody(t, scrcpy.InjectText{Text: scrcpy.NewText("x")}))
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.EqualValues(t, 0, decode(t, w)["accepted"])
	})
	t.Run("recording disabled", func(t *testing.T) {
		dev := newFakeDevice()
		dev.noRecord = true
		wm := newTestWebMaster(t, dev, Options{})
		w := do(wm, http.MethodPost, "/api/control", controlBody(t, scrcpy.RotateDevice{}, scrcpy.StartRecording{}, scrcpy.RotateDevice{}))
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.EqualValues(t, 1, decode(t, w)["accepted"])
		assert.Len(t, dev.pushed, 1)
	})
}

func TestRecordingEndpoints(t *testing.T) {
	dev := newFakeDevice()
	wm := newTestWebMaster(t, dev, Options{})

	require.Equal(t, http.StatusOK, do(wm, http.MethodPost, "/api/recording/start", "").Code)
	assert.True(t, dev.Stats().Recording)
	require.Equal(t, http.StatusOK, do(wm, http.MethodPost, "/api/recording/stop", "").Code)
	assert.False(t, dev.Stats().Recording)

	dev.noRecord = true
	assert.Equal(t, http.StatusConflict, do(wm, http.MethodPost, "/api/recording/start", "").Code)
}

func TestClipboard(t *testing.T) {
	dev := newFakeDevice()
	dev.clipboard = "copied"
	wm := newTestWebMaster(t, dev, Options{})

	w := do(wm, http.MethodGet, "/api/clipboard", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "copied", decode(t, w)["text"])
	assert.Empty(t, dev.pushed)

	require.Equal(t, http.StatusOK, do(wm, http.MethodGet, "/api/clipboard?refresh=true", "").Code)
	assert.Equal(t, []scrcpy.Command{scrcpy.GetClipboard{}}, dev.pushed)
}

func TestWebRTCOffer(t *testing.T) {
	wm := newTestWebMaster(t, newFakeDevice(), Options{})
	assert.Equal(t, http.StatusNotFound, do(wm, http.MethodPost, "/api/webrtc/offer", `{}`).Code)

	answerer := &fakeAnswerer{}
	wm = newTestWebMaster(t, newFakeDevice(), Options{WebRTC: answerer})
	assert.Equal(t, http.StatusBadRequest, do(wm, http.MethodPost, "/api/webrtc/offer", `{"type":"answer","sdp":"x"}`).Code)

	w := do(wm, http.MethodPost, "/api/webrtc/offer", `{"type":"offer","sdp":"v=0 offer"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "v=0 offer", answerer.offer)
	resp := decode(t, w)
	assert.Equal(t, "answer", resp["type"])
	assert.Equal(t, "v=0 answer", resp["sdp"])

	answerer.err = errors.New("ice failed")
	assert.Equal(t, http.StatusInternalServerError, do(wm, http.MethodPost, "/api/webrtc/offer", `{"type":"offer","sdp":"v=0"}`).Code)

	status := decode(t, do(wm, http.MethodGet, "/api/status", ""))
	assert.EqualValues(t, 3, status["webrtc_peers"])
}

func TestWebsocketPeer(t *testing.T) {
	dev := newFakeDevice()
	peers := remote.NewConnListener("ws")
	l := remote.NewListener(dev, testLogger())
	go l.Serve(peers)
	t.Cleanup(func() { l.Close(); peers.Close() })

	wm := newTestWebMaster(t, dev, Options{Peers: peers})
	srv := httptest.NewServer(wm.Handler())
	defer srv.Close()

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/ws", nil)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(controlBody(t, scrcpy.ExpandNotificationPanel{}))))
	select {
	case cmd := <-dev.pushedC:
		assert.Equal(t, scrcpy.ExpandNotificationPanel{}, cmd)
	case <-time.After(5 * time.Second):
		t.Fatal("command not dispatched")
	}
}

func TestRun(t *testing.T) {
	wm := newTestWebMaster(t, newFakeDevice(), Options{})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	errc := make(chan error, 1)
	go func() { errc <- wm.Run(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/status")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return")
	}
}
