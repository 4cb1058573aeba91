package remote

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/grandcat/zeroconf"
)

// ServiceType is the mDNS service remote listeners register under.
const ServiceType = "_mirrorctl._tcp"

// Announce registers the remote listener on the local network and keeps the
// registration alive until ctx is done.
func Announce(ctx context.Context, instance string, port int, logger *slog.Logger) error {
	server, err := zeroconf.Register(instance, ServiceType, "local.", port, []string{"format=json"}, nil)
	if err != nil {
		return fmt.Errorf("mdns register: %w", err)
	}
	defer server.Shutdown()

	if logger != nil {
		logger.Info("remote listener announced", "instance", instance, "service", ServiceType, "port", port)
	}
	<-ctx.Done()
	return nil
}

// Discover browses for announced listeners and returns their host:port
// addresses. It stops after timeout.
func Discover(ctx context.Context, timeout time.Duration) ([]string, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("mdns resolver: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	if err := resolver.Browse(ctx, ServiceType, "local.", entries); err != nil {
		return nil, fmt.Errorf("mdns browse: %w", err)
	}

	var addrs []string
	for entry := range entries {
		ip := ""
		if len(entry.AddrIPv4) > 0 {
			ip = entry.AddrIPv4[0].String()
		}
		if ip == "" && len(entry.AddrIPv6) > 0 {
			ip = entry.AddrIPv6[0].String()
		}
		if ip == "" {
			continue
		}
		addrs = append(addrs, net.JoinHostPort(ip, strconv.Itoa(entry.Port)))
	}
	return addrs, nil
}
