// Package idle enforces the client-side inactivity timeout. A Monitor counts
// down a fixed duration, restarts the countdown on every user interaction, and
// runs the logout sequence when the countdown elapses or when a session probe
// reports that the server no longer accepts the session.
package idle

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"hp-booking/internal/clock"
)

const DefaultTimeout = 3 * time.Hour

type Event string

const (
	PointerDown Event = "pointerdown"
	PointerMove Event = "pointermove"
	KeyPress    Event = "keypress"
	Scroll      Event = "scroll"
	TouchStart  Event = "touchstart"
	Click       Event = "click"
)

// ActivityEvents restart the countdown. Anything else is ignored.
var ActivityEvents = []Event{PointerDown, PointerMove, KeyPress, Scroll, TouchStart, Click}

type Reason string

const (
	ReasonIdle    Reason = "idle"
	ReasonRevoked Reason = "revoked"
)

// Prober asks the server whether the current session is still accepted.
type Prober interface {
	Probe(ctx context.Context) (bool, error)
}

type LogoutFunc func(ctx context.Context, reason Reason)

type Config struct {
	Clock   clock.Clock
	Timeout time.Duration
	Logout  LogoutFunc
	Prober  Prober
	// ExemptPaths are pages on which no countdown runs and no probe is sent.
	ExemptPaths []string
	Logger      *slog.Logger
}

// DefaultExemptPaths treats the landing page like the login and register
// pages.
var DefaultExemptPaths = []string{"/", "/login", "/register"}

type Monitor struct {
	clock   clock.Clock
	timeout time.Duration
	logout  LogoutFunc
	prober  Prober
	exempt  map[string]struct{}
	logger  *slog.Logger

	mu         sync.Mutex
	timer      clock.Timer
	generation uint64
	running    bool
	loggedOut  bool
	done       chan struct{}
}

func New(cfg Config) *Monitor {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.ExemptPaths == nil {
		cfg.ExemptPaths = DefaultExemptPaths
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Logout == nil {
		cfg.Logout = func(context.Context, Reason) {}
	}

	exempt := make(map[string]struct{}, len(cfg.ExemptPaths))
	for _, p := range cfg.ExemptPaths {
		exempt[p] = struct{}{}
	}

	return &Monitor{
		clock:   cfg.Clock,
		timeout: cfg.Timeout,
		logout:  cfg.Logout,
		prober:  cfg.Prober,
		exempt:  exempt,
		logger:  cfg.Logger,
		done:    make(chan struct{}),
	}
}

// Mount starts the countdown for the page at path. It reports whether a
// countdown is running afterwards.
func (m *Monitor) Mount(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loggedOut {
		return false
	}
	if m.isExempt(path) {
		m.stopLocked()
		return false
	}
	if !m.running {
		m.armLocked()
	}
	return true
}

func (m *Monitor) Unmount() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

// Activity cancels and restarts the countdown when event is one of
// ActivityEvents. It reports whether the countdown was restarted.
func (m *Monitor) Activity(event Event) bool {
	if !isActivity(event) {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running || m.loggedOut {
		return false
	}
	m.stopLocked()
	m.armLocked()
	return true
}

// Navigate handles a page change: it probes the session once and logs out
// immediately on a negative answer, then mounts the countdown for path.
// A probe that fails to reach the server is returned and does not log out.
func (m *Monitor) Navigate(ctx context.Context, path string) error {
	m.mu.Lock()
	skip := m.loggedOut || m.isExempt(path)
	m.mu.Unlock()

	if skip {
		m.Mount(path)
		return nil
	}

	if m.prober != nil {
		ok, err := m.prober.Probe(ctx)
		if err != nil {
			m.logger.Warn("session probe failed", "path", path, "error", err)
			return err
		}
		if !ok {
			m.fire(ctx, ReasonRevoked, 0, false)
			return nil
		}
	}

	m.Mount(path)
	return nil
}

// Running reports whether a countdown is armed.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Done is closed once the logout sequence has run.
func (m *Monitor) Done() <-chan struct{} {
	return m.done
}

func (m *Monitor) armLocked() {
	m.generation++
	generation := m.generation
	m.running = true
	m.timer = m.clock.AfterFunc(m.timeout, func() {
		m.fire(context.Background(), ReasonIdle, generation, true)
	})
}

func (m *Monitor) stopLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.generation++
	m.running = false
}

// fire runs the logout sequence at most once. Timer callbacks pass their
// generation so a countdown that was restarted concurrently is ignored.
func (m *Monitor) fire(ctx context.Context, reason Reason, generation uint64, fromTimer bool) {
	m.mu.Lock()
	if m.loggedOut || (fromTimer && generation != m.generation) {
		m.mu.Unlock()
		return
	}
	m.loggedOut = true
	m.stopLocked()
	m.mu.Unlock()

	m.logger.Info("ending session", "reason", string(reason))
	m.logout(ctx, reason)
	close(m.done)
}

func (m *Monitor) isExempt(path string) bool {
	_, ok := m.exempt[path]
	return ok
}

func isActivity(event Event) bool {
	for _, candidate := range ActivityEvents {
		if candidate == event {
			return true
		}
	}
	return false
}
