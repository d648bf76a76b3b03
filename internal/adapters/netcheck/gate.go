// Package netcheck implements the connectivity gate as a TCP reachability probe.
package netcheck

import (
	"context"
	"net"
	"net/url"
	"time"

	"github.com/bft-labs/trackship/internal/ports"
)

// DefaultTimeout bounds a single probe.
const DefaultTimeout = 5 * time.Second

// Gate reports a network path as available when a TCP connection to the
// probe address can be opened within the timeout.
type Gate struct {
	addr    string
	timeout time.Duration
	dialer  *net.Dialer
	logger  ports.Logger
}

// NewGate creates a gate probing addr (host:port).
func NewGate(addr string, timeout time.Duration, logger ports.Logger) *Gate {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Gate{
		addr:    addr,
		timeout: timeout,
		dialer:  &net.Dialer{Timeout: timeout},
		logger:  logger,
	}
}

// HasInternet performs one live probe.
func (g *Gate) HasInternet(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	conn, err := g.dialer.DialContext(ctx, "tcp", g.addr)
	if err != nil {
		g.logger.Debug("connectivity probe failed",
			ports.String("addr", g.addr),
			ports.Err(err),
		)
		return false
	}
	_ = conn.Close()
	return true
}

// ProbeAddr derives host:port from a collector URL, defaulting the port from
// the scheme.
func ProbeAddr(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	port := u.Port()
	if port == "" {
		port = "443"
		if u.Scheme == "http" {
			port = "80"
		}
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}
