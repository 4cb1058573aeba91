package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"mirrorctl/adb"
	"mirrorctl/config"
	"mirrorctl/controller"
	"mirrorctl/remote"
	"mirrorctl/webservice"
)

var errControllerStopped = errors.New("control channel closed")

type serveFlags struct {
	configPath   string
	serial       string
	controlAddr  string
	forward      bool
	remoteListen string
	announce     bool
	httpListen   string
	pin          string
	record       string
	logLevel     string
	logFormat    string
}

func (f *serveFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.configPath, "config", "c", "", "YAML config file (default $"+config.EnvVar+")")
	fs.StringVarP(&f.serial, "serial", "s", "", "device serial")
	fs.StringVar(&f.controlAddr, "control-addr", "", "control socket address")
	fs.BoolVar(&f.forward, "forward", false, "set up adb forward to the control socket")
	fs.StringVar(&f.remoteListen, "remote-listen", "", "remote peer TCP address; empty string disables")
	fs.BoolVar(&f.announce, "announce", false, "announce the remote listener over mDNS")
	fs.StringVar(&f.httpListen, "http-listen", "", "HTTP API address; empty string disables")
	fs.StringVar(&f.pin, "pin", "", "PIN protecting the HTTP API")
	fs.StringVar(&f.record, "record", "", "recording file")
	fs.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")
	fs.StringVar(&f.logFormat, "log-format", "", "text or json")
}

// apply overrides cfg with the flags that were set explicitly.
func (f *serveFlags) apply(fs *pflag.FlagSet, cfg *config.Config) {
	set := func(name string, dst *string, v string) {
		if fs.Changed(name) {
			*dst = v
		}
	}
	set("serial", &cfg.Device.Serial, f.serial)
	set("control-addr", &cfg.Device.ControlAddr, f.controlAddr)
	set("remote-listen", &cfg.Remote.Listen, f.remoteListen)
	set("http-listen", &cfg.HTTP.Listen, f.httpListen)
	set("pin", &cfg.HTTP.PIN, f.pin)
	set("record", &cfg.Recording.Path, f.record)
	set("log-level", &cfg.Log.Level, f.logLevel)
	set("log-format", &cfg.Log.Format, f.logFormat)
	if fs.Changed("forward") {
		cfg.Device.Forward = f.forward
	}
	if fs.Changed("announce") {
		cfg.Remote.Announce = f.announce
	}
}

func loadServeConfig(args []string, stderr io.Writer) (*config.Config, error) {
	var flags serveFlags
	fs := pflag.NewFlagSet("mirrorctl serve", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	flags.register(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	flags.apply(fs, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runServe(ctx context.Context, args []string, stderr io.Writer) error {
	cfg, err := loadServeConfig(args, stderr)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log, stderr)

	if cfg.Device.Forward {
		removeForward, err := forwardControlSocket(ctx, cfg.Device, logger)
		if err != nil {
			return err
		}
		defer removeForward()
	}

	device, err := net.DialTimeout("tcp", cfg.Device.ControlAddr, cfg.Device.ConnectTimeout)
	if err != nil {
		return fmt.Errorf("connecting to control socket: %w", err)
	}
	logger.Info("control socket connected", "addr", cfg.Device.ControlAddr)

	ctrl := controller.New(device, controller.Options{
		Logger:        logger.With("component", "controller"),
		RecordingPath: cfg.Recording.Path,
		OnClipboard: func(text string) {
			logger.Debug("device clipboard changed", "length", len(text))
		},
	})
	ctrl.Start()

	err = serveListeners(ctx, cfg, ctrl, logger)

	ctrl.Stop()
	device.Close()
	if werr := ctrl.Wait(); werr != nil && err == nil {
		err = werr
	}
	stats := ctrl.Stats()
	logger.Info("controller stopped", "delivered", stats.Delivered, "dropped", stats.Dropped, "rejected", stats.Rejected)
	if errors.Is(err, errControllerStopped) && ctrl.Err() == nil {
		return nil
	}
	return err
}

// serveListeners runs every configured front end until ctx is done or one
// of them fails.
func serveListeners(ctx context.Context, cfg *config.Config, ctrl *controller.Controller, logger *slog.Logger) (err error) {
	var (
		closers []io.Closer
		serves  []func(context.Context) error
	)
	defer func() {
		if err != nil {
			closeAll(closers, logger)
		}
	}()

	if cfg.Remote.Listen != "" {
		ln, err := net.Listen("tcp", cfg.Remote.Listen)
		if err != nil {
			return fmt.Errorf("remote listener: %w", err)
		}
		l := remote.NewListener(ctrl, logger.With("component", "remote", "transport", "tcp"))
		closers = append(closers, l, ln)
		serves = append(serves, func(context.Context) error { return l.Serve(ln) })

		if cfg.Remote.Announce {
			port := ln.Addr().(*net.TCPAddr).Port
			serves = append(serves, func(ctx context.Context) error {
				return remote.Announce(ctx, cfg.Remote.Instance, port, logger)
			})
		}
	}

	if cfg.HTTP.Listen != "" {
		peers := remote.NewConnListener("http")
		pl := remote.NewListener(ctrl, logger.With("component", "remote", "transport", "http"))
		closers = append(closers, pl, peers)
		serves = append(serves, func(context.Context) error { return pl.Serve(peers) })

		answerer, err := remote.NewWebRTCAnswerer(peers, remote.WebRTCOptions{
			ICEServers: cfg.HTTP.WebRTC.ICEServers,
			PortMin:    cfg.HTTP.WebRTC.PortMin,
			PortMax:    cfg.HTTP.WebRTC.PortMax,
		}, logger.With("component", "webrtc"))
		if err != nil {
			return err
		}
		closers = append(closers, answerer)

		wm, err := webservice.New(ctrl, webservice.Options{
			Logger:    logger.With("component", "http"),
			PIN:       cfg.HTTP.PIN,
			JWTSecret: []byte(cfg.HTTP.JWTSecret),
			TokenTTL:  cfg.HTTP.TokenTTL,
			Peers:     peers,
			WebRTC:    answerer,
		})
		if err != nil {
			return err
		}
		hln, err := net.Listen("tcp", cfg.HTTP.Listen)
		if err != nil {
			return fmt.Errorf("http listener: %w", err)
		}
		serves = append(serves, func(ctx context.Context) error { return wm.Run(ctx, hln) })
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case <-ctrl.Done():
			if err := ctrl.Err(); err != nil {
				return err
			}
			return errControllerStopped
		case <-gctx.Done():
			return nil
		}
	})
	for _, serve := range serves {
		g.Go(func() error { return serve(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		closeAll(closers, logger)
		return nil
	})
	return g.Wait()
}

func closeAll(closers []io.Closer, logger *slog.Logger) {
	for _, c := range closers {
		if err := c.Close(); err != nil {
			logger.Debug("close", "error", err)
		}
	}
}

func forwardControlSocket(ctx context.Context, dev config.DeviceConfig, logger *slog.Logger) (func(), error) {
	client, err := adb.NewClient(dev.ADB, dev.Serial)
	if err != nil {
		return nil, err
	}
	if err := client.Resolve(ctx); err != nil {
		return nil, err
	}
	_, port, err := net.SplitHostPort(dev.ControlAddr)
	if err != nil {
		return nil, err
	}
	local := "tcp:" + port
	if err := client.Forward(ctx, local, "localabstract:"+dev.SocketName); err != nil {
		return nil, err
	}
	logger.Info("adb forward ready", "serial", client.Serial, "local", local, "socket", dev.SocketName)
	return func() {
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.ForwardRemove(rctx, local); err != nil {
			logger.Warn("removing adb forward", "error", err)
		}
	}, nil
}
