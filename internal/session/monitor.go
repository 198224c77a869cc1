package session

import (
	"context"
	"sync"
	"time"

	"github.com/tastebook/tastebook-api/internal/logging"
)

// SignOutFunc force-signs-out a principal, typically by revoking all of its
// refresh tokens.
type SignOutFunc func(ctx context.Context, uid string) error

// Monitor watches signed-in principals and forces sign-out after a
// configurable idle interval without any observed interaction.
//
// Each principal has at most one pending timer; an interaction replaces the
// timer rather than stacking a second one. All timers are cancelled on
// Stop, after which no callback fires.
type Monitor struct {
	mu        sync.Mutex
	idle      time.Duration
	timers    map[string]*time.Timer
	signOut   SignOutFunc
	onExpired func(uid string)
	logger    *logging.Logger
	stopped   bool
}

// DefaultIdleTimeout applies when the configured duration is zero.
const DefaultIdleTimeout = 30 * time.Minute

func NewMonitor(idle time.Duration, signOut SignOutFunc, logger *logging.Logger) *Monitor {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	return &Monitor{
		idle:    idle,
		timers:  make(map[string]*time.Timer),
		signOut: signOut,
		logger:  logger,
	}
}

// SetOnExpired registers an optional hook invoked after a session idles out
// and the forced sign-out ran. Must be called before the first Touch.
func (m *Monitor) SetOnExpired(fn func(uid string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpired = fn
}

// Touch arms the principal's idle countdown, or resets a pending one back
// to the full interval.
func (m *Monitor) Touch(uid string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return
	}

	if t, ok := m.timers[uid]; ok {
		t.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(m.idle, func() {
		m.expire(uid, timer)
	})
	m.timers[uid] = timer
}

// End cancels the principal's idle countdown without signing it out. Called
// on explicit sign-out.
func (m *Monitor) End(uid string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t, ok := m.timers[uid]; ok {
		t.Stop()
		delete(m.timers, uid)
	}
}

// SetIdleTimeout changes the configured idle duration and re-arms every
// pending countdown from the full new interval.
func (m *Monitor) SetIdleTimeout(d time.Duration) {
	if d <= 0 {
		d = DefaultIdleTimeout
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return
	}

	m.idle = d
	for uid, t := range m.timers {
		t.Stop()
		uid := uid
		var timer *time.Timer
		timer = time.AfterFunc(m.idle, func() {
			m.expire(uid, timer)
		})
		m.timers[uid] = timer
	}
}

// Stop tears down all monitoring. No sign-out or hook fires afterwards.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopped = true
	for uid, t := range m.timers {
		t.Stop()
		delete(m.timers, uid)
	}
}

// expire runs when a timer fires. The timer identity check guards against a
// fire racing with a Touch that already replaced the timer, and against
// firing after End or Stop.
func (m *Monitor) expire(uid string, timer *time.Timer) {
	m.mu.Lock()
	if m.stopped || m.timers[uid] != timer {
		m.mu.Unlock()
		return
	}
	delete(m.timers, uid)
	onExpired := m.onExpired
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := m.signOut(ctx, uid); err != nil {
		m.logger.Error("failed to sign out idle session", "uid", uid, "error", err.Error())
	} else {
		m.logger.Info("signed out idle session", "uid", uid)
	}

	if onExpired != nil {
		onExpired(uid)
	}
}
