// Package network keeps the device's wireless link up.
package network

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"sync"
	"time"
)

var ErrConnectTimeout = errors.New("wifi connect timed out")

// Link is the wireless interface. Status must be cheap; it is polled every
// loop iteration.
type Link interface {
	Reset(ctx context.Context) error
	Join(ctx context.Context) error
	Status() (netip.Addr, bool)
}

type Options struct {
	SSID         string
	Timeout      time.Duration
	PollInterval time.Duration
	SettleDelay  time.Duration
	DNSServer    string
}

// Manager owns the link. It never retries on its own: callers invoke Connect
// again whenever IsConnected reports false.
type Manager struct {
	link   Link
	opts   Options
	logger *slog.Logger

	mu   sync.RWMutex
	addr netip.Addr
}

func NewManager(link Link, opts Options, logger *slog.Logger) *Manager {
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	if opts.SettleDelay < 0 {
		opts.SettleDelay = 0
	}
	return &Manager{link: link, opts: opts, logger: logger}
}

// Connect resets the link, starts a join and waits up to Options.Timeout for
// the link to come up.
func (m *Manager) Connect(ctx context.Context) error {
	m.logger.Info("connecting to wifi", "ssid", m.opts.SSID, "timeout", m.opts.Timeout)

	if err := m.link.Reset(ctx); err != nil {
		m.logger.Debug("wifi reset failed", "error", err)
	}
	if err := sleep(ctx, m.opts.SettleDelay); err != nil {
		return err
	}

	attemptCtx, cancel := context.WithTimeout(ctx, m.opts.Timeout)
	defer cancel()

	if err := m.link.Join(attemptCtx); err != nil {
		m.logger.Warn("wifi join request failed", "ssid", m.opts.SSID, "error", err)
	}

	ticker := time.NewTicker(m.opts.PollInterval)
	defer ticker.Stop()

	for {
		if addr, ok := m.link.Status(); ok {
			m.setAddr(addr)
			m.logger.Info("wifi connected", "ip", addr.String(), "dns", m.opts.DNSServer)
			return nil
		}

		select {
		case <-attemptCtx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.logger.Error("wifi connection failed", "ssid", m.opts.SSID, "timeout", m.opts.Timeout)
			return fmt.Errorf("%w after %s", ErrConnectTimeout, m.opts.Timeout)
		case <-ticker.C:
			m.logger.Debug("waiting for wifi")
		}
	}
}

func (m *Manager) IsConnected() bool {
	_, ok := m.link.Status()
	return ok
}

// Addr is the address recorded by the last successful Connect.
func (m *Manager) Addr() netip.Addr {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.addr
}

func (m *Manager) setAddr(a netip.Addr) {
	m.mu.Lock()
	m.addr = a
	m.mu.Unlock()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
