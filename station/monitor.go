package station

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Reachability is the monitor's view of a station.
type Reachability int

const (
	// Unknown means no poll has completed yet.
	Unknown Reachability = iota
	// Online means the last completed health check succeeded.
	Online
	// Offline means the last completed health check failed.
	Offline
)

func (r Reachability) String() string {
	switch r {
	case Online:
		return "online"
	case Offline:
		return "offline"
	default:
		return "unknown"
	}
}

// Monitor polls a station's room listing on a fixed interval and tracks
// the Unknown → Online ↔ Offline state machine. Only transition edges
// produce log lines and callbacks; steady-state polls are silent so a UI
// reachability dot never flickers. The reported state changes only when
// a poll (or a real engine call standing in for one) completes.
type Monitor struct {
	client   API
	url      string
	interval time.Duration
	logger   *slog.Logger

	mu            sync.Mutex
	state         Reachability
	forcedOffline bool
	onChange      func(online bool)
}

// NewMonitor creates a monitor for the station at url.
func NewMonitor(client API, url string, interval time.Duration, logger *slog.Logger) *Monitor {
	return &Monitor{
		client:   client,
		url:      url,
		interval: interval,
		logger:   logger,
		state:    Unknown,
	}
}

// OnChange registers a callback invoked on every Online/Offline edge.
// Must be set before Run starts.
func (m *Monitor) OnChange(fn func(online bool)) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

// Reachable reports whether the station is currently considered online.
func (m *Monitor) Reachable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state == Online
}

// State returns the current reachability state.
func (m *Monitor) State() Reachability {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

// ForceOffline suppresses polling while the user browses a known-offline
// cached device. Auto-reconnection resumes when lifted.
func (m *Monitor) ForceOffline(forced bool) {
	m.mu.Lock()
	m.forcedOffline = forced
	m.mu.Unlock()

	if forced {
		m.apply(Offline)
	}
}

// MarkOnline records the outcome of a successful real station call. A
// completed RPC is as good as a completed poll.
func (m *Monitor) MarkOnline() {
	m.apply(Online)
}

// MarkOffline records the outcome of a failed real station call.
func (m *Monitor) MarkOffline() {
	m.apply(Offline)
}

// Run polls until ctx is cancelled. The first poll happens immediately
// so the UI is not stuck on "unknown" for a full interval.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.poll(ctx)

	for {
		select {
		case <-ticker.C:
			m.poll(ctx)

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// poll runs one health check and applies the result. Skipped entirely
// while the device is forced offline.
func (m *Monitor) poll(ctx context.Context) {
	m.mu.Lock()
	forced := m.forcedOffline
	m.mu.Unlock()

	if forced {
		return
	}

	_, err := m.client.ListRooms(ctx, m.url)
	if ctx.Err() != nil {
		return
	}

	if err != nil {
		m.logger.Debug("health check failed", slog.String("error", err.Error()))
		m.apply(Offline)
		return
	}

	m.apply(Online)
}

// apply commits a completed check's result, firing the edge callback on
// a transition.
func (m *Monitor) apply(next Reachability) {
	m.mu.Lock()

	prev := m.state
	m.state = next
	fn := m.onChange

	m.mu.Unlock()

	if prev == next {
		return
	}

	m.logger.Info("reachability changed",
		slog.String("url", m.url),
		slog.String("from", prev.String()),
		slog.String("to", next.String()),
	)

	if fn != nil {
		fn(next == Online)
	}
}
