// Package connectivity tracks whether the shared-log service is believed
// reachable. State changes only in response to discrete events.
package connectivity

import (
	"errors"
	"sync"
	"time"

	"github.com/penwyp/go-ici-sync/internal/core/constants"
	"github.com/penwyp/go-ici-sync/internal/metrics"
	"github.com/penwyp/go-ici-sync/internal/util"
)

type State int

const (
	Online State = iota
	Offline
)

func (s State) String() string {
	if s == Offline {
		return "offline"
	}
	return "online"
}

type Event int

const (
	EventRequestSucceeded Event = iota
	EventRequestFailed
	EventPlatformLost
	EventPlatformRegained
)

func (e Event) String() string {
	switch e {
	case EventRequestSucceeded:
		return "request-succeeded"
	case EventRequestFailed:
		return "request-failed"
	case EventPlatformLost:
		return "platform-lost"
	case EventPlatformRegained:
		return "platform-regained"
	default:
		return "unknown"
	}
}

// ErrPlatformOffline is recorded as the last error when the platform reports loss.
var ErrPlatformOffline = errors.New("network unreachable")

// Snapshot is a point-in-time view for status displays.
type Snapshot struct {
	State     State
	Since     time.Time
	LastError error
}

// Degraded reports whether the last remote operation failed.
func (s Snapshot) Degraded() bool {
	return s.State == Offline || s.LastError != nil
}

// Listener is notified after every state change.
type Listener func(from, to State)

// Option configures a Monitor.
type Option func(*Monitor)

// WithRecheckDelay sets the delay between a platform regain and the follow-up verification.
func WithRecheckDelay(d time.Duration) Option {
	return func(m *Monitor) { m.recheckDelay = d }
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Monitor) { m.metrics = mt }
}

// Monitor holds the Online/Offline state machine. It starts Online.
type Monitor struct {
	mu           sync.Mutex
	state        State
	since        time.Time
	lastErr      error
	recheckDelay time.Duration
	recheck      *time.Timer
	recovery     func()
	listeners    []Listener
	metrics      *metrics.Metrics
}

func NewMonitor(opts ...Option) *Monitor {
	m := &Monitor{
		state:        Online,
		since:        time.Now(),
		recheckDelay: constants.DefaultRecheckDelay,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OnRecovery registers the hook run when connectivity comes back. The hook
// runs on its own goroutine.
func (m *Monitor) OnRecovery(fn func()) {
	m.mu.Lock()
	m.recovery = fn
	m.mu.Unlock()
}

// OnChange registers a listener for state transitions.
func (m *Monitor) OnChange(fn Listener) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// Deliver applies ev to the state machine.
func (m *Monitor) Deliver(ev Event) {
	m.deliver(ev, nil)
}

// ReportSuccess delivers EventRequestSucceeded.
func (m *Monitor) ReportSuccess() {
	m.deliver(EventRequestSucceeded, nil)
}

// ReportFailure delivers EventRequestFailed and records err.
func (m *Monitor) ReportFailure(err error) {
	m.deliver(EventRequestFailed, err)
}

func (m *Monitor) deliver(ev Event, err error) {
	m.mu.Lock()
	from := m.state
	runRecovery := false

	switch ev {
	case EventRequestSucceeded:
		m.lastErr = nil
		if m.state == Offline {
			m.state = Online
			runRecovery = true
		}
	case EventRequestFailed:
		if err == nil {
			err = errors.New("remote request failed")
		}
		m.lastErr = err
		m.state = Offline
	case EventPlatformLost:
		m.stopRecheckLocked()
		m.lastErr = ErrPlatformOffline
		m.state = Offline
	case EventPlatformRegained:
		m.state = Online
		m.scheduleRecheckLocked()
	}

	to := m.state
	var listeners []Listener
	if from != to {
		m.since = time.Now()
		listeners = append(listeners, m.listeners...)
	}
	recovery := m.recovery
	m.mu.Unlock()

	if from != to {
		util.LogInfo("connectivity changed", util.F("from", from.String()), util.F("to", to.String()), util.F("event", ev.String()))
		m.metrics.SetOnline(to == Online)
		for _, l := range listeners {
			l(from, to)
		}
	}
	if runRecovery && recovery != nil {
		go recovery()
	}
}

func (m *Monitor) scheduleRecheckLocked() {
	m.stopRecheckLocked()
	var t *time.Timer
	t = time.AfterFunc(m.recheckDelay, func() {
		m.mu.Lock()
		if m.recheck != t {
			m.mu.Unlock()
			return
		}
		m.recheck = nil
		recovery := m.recovery
		m.mu.Unlock()

		util.LogDebug("re-checking remote after platform regain")
		if recovery != nil {
			recovery()
		}
	})
	m.recheck = t
}

func (m *Monitor) stopRecheckLocked() {
	if m.recheck != nil {
		m.recheck.Stop()
		m.recheck = nil
	}
}

// Online reports whether pushes are currently allowed.
func (m *Monitor) Online() bool {
	return m.State() == Online
}

func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastError returns the error of the most recent failed operation since the last success.
func (m *Monitor) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{State: m.state, Since: m.since, LastError: m.lastErr}
}

// Close cancels a pending re-check.
func (m *Monitor) Close() {
	m.mu.Lock()
	m.stopRecheckLocked()
	m.mu.Unlock()
}
