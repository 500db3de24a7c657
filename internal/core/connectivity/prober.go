package connectivity

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/penwyp/go-ici-sync/internal/core/constants"
	"github.com/penwyp/go-ici-sync/internal/util"
)

// Prober stands in for the platform's online/offline signal. It dials the
// service host periodically and delivers PlatformLost / PlatformRegained to
// the monitor on edges only.
type Prober struct {
	monitor  *Monitor
	address  string
	interval time.Duration
	timeout  time.Duration
	dial     func(ctx context.Context, network, address string) (net.Conn, error)
}

// NewProber probes the host of serverURL. The port defaults from the scheme.
func NewProber(monitor *Monitor, serverURL string, interval time.Duration) (*Prober, error) {
	addr, err := probeAddress(serverURL)
	if err != nil {
		return nil, err
	}
	if interval <= 0 {
		interval = constants.DefaultProbeInterval
	}
	d := &net.Dialer{}
	return &Prober{
		monitor:  monitor,
		address:  addr,
		interval: interval,
		timeout:  constants.DefaultProbeTimeout,
		dial:     d.DialContext,
	}, nil
}

func probeAddress(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("server url %q has no host", serverURL)
	}
	port := u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}

// Address returns the probed host:port.
func (p *Prober) Address() string {
	return p.address
}

// Run probes until ctx is done.
func (p *Prober) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	reachable := true
	for {
		ok := p.Probe(ctx)
		if ctx.Err() != nil {
			return
		}
		if ok != reachable {
			reachable = ok
			if ok {
				p.monitor.Deliver(EventPlatformRegained)
			} else {
				util.LogWarn("service host unreachable", util.F("address", p.address))
				p.monitor.Deliver(EventPlatformLost)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Probe makes one dial attempt.
func (p *Prober) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	conn, err := p.dial(ctx, "tcp", p.address)
	if err != nil {
		util.LogDebugf("probe %s failed: %v", p.address, err)
		return false
	}
	conn.Close()
	return true
}
