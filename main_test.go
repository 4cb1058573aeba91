package main

import (
	"bytes"
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mirrorctl/config"
	"mirrorctl/scrcpy"
	"mirrorctl/scrcpy/remotemsg"
)

func TestLoadServeConfigFlags(t *testing.T) {
	t.Setenv(config.EnvVar, "")
	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("device:\n  serial: from-file\nlog:\n  level: warn\n"), 0o644))

	cfg, err := loadServeConfig([]string{
		"--config", path,
		"--control-addr", "127.0.0.1:9999",
		"--http-listen", "",
		"--forward",
		"--pin", "4321",
	}, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.Device.Serial, "unset flags keep file values")
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "127.0.0.1:9999", cfg.Device.ControlAddr)
	assert.Empty(t, cfg.HTTP.Listen)
	assert.True(t, cfg.Device.Forward)
	assert.Equal(t, "4321", cfg.HTTP.PIN)
}

func TestLoadServeConfigErrors(t *testing.T) {
	t.Setenv(config.EnvVar, "")
	_, err := loadServeConfig([]string{"--log-level", "loud"}, io.Discard)
	assert.Error(t, err)

	_, err = loadServeConfig([]string{"extra"}, io.Discard)
	assert.Error(t, err)

	_, err = loadServeConfig([]string{"--help"}, io.Discard)
	assert.ErrorIs(t, err, pflag.ErrHelp)
}

func TestRunUnknownCommand(t *testing.T) {
	assert.Error(t, run(t.Context(), []string{"frobnicate"}, io.Discard))
	assert.NoError(t, run(t.Context(), []string{"replay", "--help"}, io.Discard))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(config.LogConfig{Level: "warn", Format: "json"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", 1)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}

func TestReplayCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saved_event.json")
	var rec bytes.Buffer
	for _, cmd := range []scrcpy.Command{scrcpy.RotateDevice{}, scrcpy.BackOrScreenOn{}} {
		b, err := remotemsg.Encode(cmd, time.Now())
		require.NoError(t, err)
		rec.Write(append(b, '\n'))
	}
	require.NoError(t, os.WriteFile(path, rec.Bytes(), 0o644))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	got := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		b, _ := io.ReadAll(conn)
		got <- b
	}()

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()
	require.NoError(t, run(ctx, []string{"replay", "--realtime=false", "--addr", ln.Addr().String(), path}, io.Discard))

	select {
	case b := <-got:
		assert.Equal(t, rec.String(), string(b))
	case <-ctx.Done():
		t.Fatal("nothing received")
	}
}

func TestServeControlChannel(t *testing.T) {
	t.Setenv(config.EnvVar, "")
	device, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer device.Close()
	peer, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	remoteAddr := peer.Addr().String()
	peer.Close()

	received := make(chan []byte, 1)
	go func() {
		conn, err := device.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 1)
		if _, err := io.ReadFull(conn, buf); err == nil {
			received <- buf
		}
		io.Copy(io.Discard, conn)
	}()

	ctx, cancel := context.WithCancel(t.Context())
	errc := make(chan error, 1)
	go func() {
		errc <- run(ctx, []string{
			"--control-addr", device.Addr().String(),
			"--remote-listen", remoteAddr,
			"--http-listen", "",
			"--record", "",
		}, io.Discard)
	}()

	var conn net.Conn
	require.Eventually(t, func() bool {
		conn, err = net.Dial("tcp", remoteAddr)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)
	defer conn.Close()

	msg, err := remotemsg.Encode(scrcpy.ExpandNotificationPanel{}, time.Now())
	require.NoError(t, err)
	_, err = conn.Write(msg)
	require.NoError(t, err)

	select {
	case b := <-received:
		assert.Equal(t, []byte{byte(scrcpy.TYPE_EXPAND_NOTIFICATION_PANEL)}, b)
	case <-time.After(5 * time.Second):
		t.Fatal("device received nothing")
	}

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func TestServeExitsWhenDeviceHangsUp(t *testing.T) {
	t.Setenv(config.EnvVar, "")
	device, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer device.Close()
	go func() {
		conn, err := device.Accept()
		if err != nil {
			return
		}
		conn.Close()
	}()

	errc := make(chan error, 1)
	go func() {
		errc <- run(t.Context(), []string{
			"--control-addr", device.Addr().String(),
			"--remote-listen", "",
			"--http-listen", "",
			"--record", "",
		}, io.Discard)
	}()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, io.EOF)
	case <-time.After(10 * time.Second):
		t.Fatal("serve kept running after the device closed the control socket")
	}
}
