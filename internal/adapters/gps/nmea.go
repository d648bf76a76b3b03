// Package gps provides position sources: an NMEA-0183 receiver on a serial
// port and a fixed position for headless or test setups.
package gps

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/bft-labs/trackship/internal/domain"
	"github.com/bft-labs/trackship/internal/ports"
)

// NMEAConfig holds configuration for the NMEA position source.
type NMEAConfig struct {
	PortPath string
	BaudRate int

	// MaxAge is how old the last fix may be and still be returned without
	// waiting for a new one.
	MaxAge time.Duration
}

// NMEASource reads NMEA sentences from a serial GPS receiver in the
// background and hands out the latest fix on demand.
type NMEASource struct {
	cfg    NMEAConfig
	logger ports.Logger
	open   func(path string, mode *serial.Mode) (io.ReadCloser, error)
	now    func() time.Time

	mu      sync.Mutex
	port    io.ReadCloser
	last    *domain.Position
	waiters []chan domain.Position
	done    chan struct{}
}

// NewNMEA creates a new NMEA position source. The port is opened lazily.
func NewNMEA(cfg NMEAConfig, logger ports.Logger) *NMEASource {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 9600
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 2 * time.Minute
	}
	return &NMEASource{
		cfg:    cfg,
		logger: logger,
		open: func(path string, mode *serial.Mode) (io.ReadCloser, error) {
			port, err := serial.Open(path, mode)
			if err != nil {
				return nil, err
			}
			return port, nil
		},
		now: time.Now,
	}
}

// Authorized reports whether the serial device can be opened.
func (n *NMEASource) Authorized() bool {
	if err := n.ensureOpen(); err != nil {
		n.logger.Warn("gps device not accessible",
			ports.String("port", n.cfg.PortPath),
			ports.Err(err),
		)
		return false
	}
	return true
}

// LastKnownPosition returns the latest fix if it is fresh enough, otherwise
// waits for the next one until ctx is done. A deadline yields (nil, nil).
func (n *NMEASource) LastKnownPosition(ctx context.Context) (*domain.Position, error) {
	if err := n.ensureOpen(); err != nil {
		return nil, err
	}

	n.mu.Lock()
	if n.last != nil && n.now().Sub(n.last.ReadAt) <= n.cfg.MaxAge {
		p := *n.last
		n.mu.Unlock()
		return &p, nil
	}
	ch := make(chan domain.Position, 1)
	n.waiters = append(n.waiters, ch)
	done := n.done
	n.mu.Unlock()

	select {
	case p := <-ch:
		return &p, nil
	case <-done:
		n.dropWaiter(ch)
		return nil, errors.New("gps: reader stopped")
	case <-ctx.Done():
		n.dropWaiter(ch)
		return nil, nil
	}
}

// Close stops the reader and releases the port.
func (n *NMEASource) Close() error {
	n.mu.Lock()
	port := n.port
	n.port = nil
	n.mu.Unlock()

	if port == nil {
		return nil
	}
	return port.Close()
}

func (n *NMEASource) ensureOpen() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.port != nil {
		return nil
	}
	mode := &serial.Mode{
		BaudRate: n.cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := n.open(n.cfg.PortPath, mode)
	if err != nil {
		return fmt.Errorf("gps: open %s: %w", n.cfg.PortPath, err)
	}
	n.port = port
	n.done = make(chan struct{})
	go n.readLoop(port, n.done)

	n.logger.Info("gps connected",
		ports.String("port", n.cfg.PortPath),
		ports.Int("baud", n.cfg.BaudRate),
	)
	return nil
}

// readLoop publishes every valid fix until the port is closed or fails.
func (n *NMEASource) readLoop(r io.ReadCloser, done chan struct{}) {
	defer close(done)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		f, ok := parseSentence(scanner.Text())
		if !ok {
			continue
		}
		n.publish(domain.Position{Latitude: f.Latitude, Longitude: f.Longitude, ReadAt: n.now()})
	}
	if err := scanner.Err(); err != nil {
		n.logger.Warn("gps read stopped", ports.Err(err))
	}

	// Reopen on the next request.
	n.mu.Lock()
	if n.port == r {
		n.port = nil
		_ = r.Close()
	}
	n.mu.Unlock()
}

func (n *NMEASource) publish(p domain.Position) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.last = &p
	for _, ch := range n.waiters {
		ch <- p
	}
	n.waiters = n.waiters[:0]
}

func (n *NMEASource) dropWaiter(ch chan domain.Position) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for i, w := range n.waiters {
		if w == ch {
			n.waiters = append(n.waiters[:i], n.waiters[i+1:]...)
			return
		}
	}
}
