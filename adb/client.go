// Package adb wraps the adb binary for tunnelling the device control socket.
package adb

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

type Client struct {
	Path   string // adb binary
	Serial string // device serial; empty uses the only attached device
}

// NewClient resolves the adb binary and returns a client for serial.
func NewClient(path, serial string) (*Client, error) {
	resolved, err := LookPath(path)
	if err != nil {
		return nil, err
	}
	return &Client{Path: resolved, Serial: serial}, nil
}

// LookPath finds adb: an explicit path as given, then ./adb, then PATH.
func LookPath(path string) (string, error) {
	if path != "" && path != "adb" {
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("adb not found at %s: %w", path, err)
		}
		return path, nil
	}

	exeName := "adb"
	if runtime.GOOS == "windows" {
		exeName = "adb.exe"
	}
	if localPath, err := filepath.Abs(exeName); err == nil {
		if _, err := os.Stat(localPath); err == nil {
			return localPath, nil
		}
	}
	p, err := exec.LookPath(exeName)
	if err != nil {
		return "", fmt.Errorf("adb not found in PATH: %w", err)
	}
	return p, nil
}

func (c *Client) args(args ...string) []string {
	if c.Serial == "" {
		return args
	}
	return append([]string{"-s", c.Serial}, args...)
}

// Adb runs one adb command and returns its trimmed stdout.
func (c *Client) Adb(ctx context.Context, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.Path, c.args(args...)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return "", fmt.Errorf("adb %s: %w", strings.Join(args, " "), err)
		}
		return "", fmt.Errorf("adb %s: %w: %s", strings.Join(args, " "), err, msg)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Forward tunnels local (e.g. tcp:27183) to remote on the device (e.g.
// localabstract:scrcpy).
func (c *Client) Forward(ctx context.Context, local, remote string) error {
	if _, err := c.Adb(ctx, "forward", local, remote); err != nil {
		return fmt.Errorf("ADB Forward failed: %w", err)
	}
	return nil
}

func (c *Client) ForwardRemove(ctx context.Context, local string) error {
	if _, err := c.Adb(ctx, "forward", "--remove", local); err != nil {
		return fmt.Errorf("ADB Forward Remove failed: %w", err)
	}
	return nil
}
