package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/spf13/pflag"

	"mirrorctl/config"
	"mirrorctl/remote"
)

func runReplay(ctx context.Context, args []string, stderr io.Writer) error {
	var (
		addr      string
		discover  bool
		realtime  bool
		speed     float64
		timeout   time.Duration
		logLevel  string
		logFormat string
	)
	fs := pflag.NewFlagSet("mirrorctl replay", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&addr, "addr", "a", "127.0.0.1:27184", "remote listener address")
	fs.BoolVar(&discover, "discover", false, "find the remote listener over mDNS instead of --addr")
	fs.BoolVar(&realtime, "realtime", true, "keep the recorded gaps between events")
	fs.Float64Var(&speed, "speed", 1, "playback speed when --realtime is set")
	fs.DurationVar(&timeout, "timeout", 5*time.Second, "dial and discovery timeout")
	fs.StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	fs.StringVar(&logFormat, "log-format", "text", "text or json")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: mirrorctl replay [flags] <file>")
	}
	if speed <= 0 {
		return fmt.Errorf("--speed must be positive, got %v", speed)
	}
	logger := newLogger(config.LogConfig{Level: logLevel, Format: logFormat}, stderr)

	f, err := os.Open(fs.Arg(0))
	if err != nil {
		return err
	}
	defer f.Close()

	if discover {
		addrs, err := remote.Discover(ctx, timeout)
		if err != nil {
			return err
		}
		if len(addrs) == 0 {
			return fmt.Errorf("no %s service found", remote.ServiceType)
		}
		addr = addrs[0]
		logger.Info("discovered remote listener", "addr", addr, "found", len(addrs))
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", addr, err)
	}
	defer conn.Close()

	n, err := remote.Replay(ctx, f, conn, remote.ReplayOptions{
		Realtime: realtime,
		Speed:    speed,
		Logger:   logger,
	})
	logger.Info("replay finished", "sent", n, "addr", addr)
	return err
}
