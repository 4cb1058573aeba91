package adb

import (
	"context"
	"fmt"
	"net"
	"strings"
)

// Device is one line of `adb devices`.
type Device struct {
	Serial string `json:"serial"`
	State  string `json:"state"` // device, offline, unauthorized, ...
}

func (d Device) Online() bool { return d.State == "device" }

// Devices lists every device adb knows, whatever Serial is set to.
func (c *Client) Devices(ctx context.Context) ([]Device, error) {
	out, err := (&Client{Path: c.Path}).Adb(ctx, "devices")
	if err != nil {
		return nil, err
	}
	return parseDevices(out), nil
}

func parseDevices(out string) []Device {
	var devices []Device
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "List of devices attached") || strings.HasPrefix(line, "*") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) >= 2 {
			devices = append(devices, Device{Serial: parts[0], State: parts[1]})
		}
	}
	return devices
}

// Connect attaches a device over TCP/IP.
func (c *Client) Connect(ctx context.Context, address string) error {
	out, err := (&Client{Path: c.Path}).Adb(ctx, "connect", address)
	if err != nil {
		return fmt.Errorf("adb connect failed: %w", err)
	}
	if strings.Contains(out, "unable to connect") || strings.Contains(out, "failed to connect") {
		return fmt.Errorf("adb connect failed: %s", out)
	}
	return nil
}

// Resolve makes Serial usable: a host:port serial is connected first, and
// an empty serial is filled in when exactly one device is online.
func (c *Client) Resolve(ctx context.Context) error {
	if c.Serial != "" {
		if _, _, err := net.SplitHostPort(c.Serial); err == nil {
			return c.Connect(ctx, c.Serial)
		}
		return nil
	}

	devices, err := c.Devices(ctx)
	if err != nil {
		return err
	}
	var online []string
	for _, d := range devices {
		if d.Online() {
			online = append(online, d.Serial)
		}
	}
	switch len(online) {
	case 0:
		return fmt.Errorf("no online device (%d listed)", len(devices))
	case 1:
		c.Serial = online[0]
		return nil
	default:
		return fmt.Errorf("%d devices online, choose one with --serial: %s", len(online), strings.Join(online, ", "))
	}
}
