package offline

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"
)

// Pinger is a lightweight backend reachability probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Drainer runs one sync pass.
type Drainer interface {
	Drain(ctx context.Context) (Report, error)
}

// Runner starts fire-and-forget work.
type Runner interface {
	Go(ctx context.Context, name string, f func(ctx context.Context) error) bool
}

// NetworkProbe reports whether the device has a usable network.
type NetworkProbe func(ctx context.Context) bool

// DialProbe treats the network as reachable when a TCP connection to addr
// can be opened within timeout.
func DialProbe(addr string, timeout time.Duration) NetworkProbe {
	return func(ctx context.Context) bool {
		d := net.Dialer{Timeout: timeout}
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}
}

// AlwaysOnline is the network probe for transports that need no network.
func AlwaysOnline(context.Context) bool { return true }

// ConnState is a snapshot of the monitor.
type ConnState struct {
	Network     bool      `json:"network"`
	Backend     bool      `json:"backend"`
	LastProbeAt time.Time `json:"last_probe_at"`
}

// Monitor tracks network and backend reachability and triggers syncs when
// they come back.
type Monitor struct {
	pinger       Pinger
	network      NetworkProbe
	runner       Runner
	probeTimeout time.Duration

	mu        sync.RWMutex
	drainer   Drainer
	networkUp bool
	backendUp bool
	lastProbe time.Time
}

// NewMonitor builds a Monitor. The network starts reachable and the backend
// unknown (unreachable) until the first probe.
func NewMonitor(pinger Pinger, network NetworkProbe, runner Runner, probeTimeout time.Duration) *Monitor {
	if network == nil {
		network = AlwaysOnline
	}
	if probeTimeout <= 0 {
		probeTimeout = 5 * time.Second
	}

	return &Monitor{
		pinger:       pinger,
		network:      network,
		runner:       runner,
		probeTimeout: probeTimeout,
		networkUp:    true,
	}
}

// SetDrainer installs the sync pass triggered on reconnect.
func (m *Monitor) SetDrainer(d Drainer) {
	m.mu.Lock()
	m.drainer = d
	m.mu.Unlock()
}

// NetworkReachable implements Connectivity.
func (m *Monitor) NetworkReachable() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.networkUp
}

// BackendReachable implements Connectivity.
func (m *Monitor) BackendReachable() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.backendUp
}

// State returns the current reachability snapshot.
func (m *Monitor) State() ConnState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return ConnState{Network: m.networkUp, Backend: m.backendUp, LastProbeAt: m.lastProbe}
}

// SetNetwork feeds the platform online/offline signal. Going from offline to
// online starts a backend probe followed by a sync in the background; it
// reports whether that happened.
func (m *Monitor) SetNetwork(ctx context.Context, up bool) bool {
	m.mu.Lock()
	was := m.networkUp
	m.networkUp = up
	if !up {
		m.backendUp = false
	}
	m.mu.Unlock()

	switch {
	case was && !up:
		slog.WarnContext(ctx, "network lost")
	case !was && up:
		slog.InfoContext(ctx, "network restored, probing backend")
		m.runner.Go(ctx, "reconnect-sync", func(ctx context.Context) error {
			if m.CheckBackend(ctx) {
				m.drain(ctx)
			}
			return nil
		})
		return true
	}
	return false
}

// CheckBackend probes the backend, bounded by the probe timeout, and stores
// the outcome. A timeout counts as unreachable.
func (m *Monitor) CheckBackend(ctx context.Context) bool {
	if !m.NetworkReachable() {
		m.setBackend(ctx, false)
		return false
	}

	probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()

	err := m.pinger.Ping(probeCtx)
	if err != nil {
		slog.DebugContext(ctx, "backend probe failed", "error", err)
	}
	m.setBackend(ctx, err == nil)
	return err == nil
}

// Tick re-evaluates both signals and syncs when both are up. It is the body
// of the periodic probe.
func (m *Monitor) Tick(ctx context.Context) {
	up := m.network(ctx)
	if m.SetNetwork(ctx, up) || !up {
		return
	}
	if m.CheckBackend(ctx) {
		m.drain(ctx)
	}
}

// Refresh runs Tick in the background.
func (m *Monitor) Refresh(ctx context.Context) bool {
	return m.runner.Go(ctx, "connectivity-tick", func(ctx context.Context) error {
		m.Tick(ctx)
		return nil
	})
}

// Retry is the manual "try again" action: it re-reads the network signal,
// probes the backend and runs a sync pass, waiting for the result.
func (m *Monitor) Retry(ctx context.Context) (Report, error) {
	m.mu.Lock()
	m.networkUp = m.network(ctx)
	m.mu.Unlock()

	m.CheckBackend(ctx)

	m.mu.RLock()
	d := m.drainer
	m.mu.RUnlock()
	if d == nil {
		return Report{}, nil
	}
	return d.Drain(ctx)
}

func (m *Monitor) setBackend(ctx context.Context, up bool) {
	m.mu.Lock()
	was := m.backendUp
	m.backendUp = up
	m.lastProbe = time.Now()
	m.mu.Unlock()

	if was != up {
		slog.InfoContext(ctx, "backend reachability changed", "reachable", up)
	}
}

func (m *Monitor) drain(ctx context.Context) {
	m.mu.RLock()
	d := m.drainer
	m.mu.RUnlock()
	if d == nil {
		return
	}

	if _, err := d.Drain(ctx); err != nil {
		slog.ErrorContext(ctx, "sync pass failed", "error", err)
	}
}
