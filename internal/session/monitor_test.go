package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tastebook/tastebook-api/internal/logging"
)

type signOutRecorder struct {
	mu    sync.Mutex
	calls []string
	fired chan string
}

func newSignOutRecorder() *signOutRecorder {
	return &signOutRecorder{fired: make(chan string, 16)}
}

func (r *signOutRecorder) signOut(ctx context.Context, uid string) error {
	r.mu.Lock()
	r.calls = append(r.calls, uid)
	r.mu.Unlock()
	r.fired <- uid
	return nil
}

func (r *signOutRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func waitFor(t *testing.T, ch <-chan string, want string) {
	t.Helper()
	select {
	case uid := <-ch:
		require.Equal(t, want, uid)
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for sign-out of %s", want)
	}
}

func assertQuiet(t *testing.T, ch <-chan string, d time.Duration) {
	t.Helper()
	select {
	case uid := <-ch:
		t.Fatalf("unexpected sign-out of %s", uid)
	case <-time.After(d):
	}
}

func TestMonitor_IdleSessionSignsOutOnce(t *testing.T) {
	rec := newSignOutRecorder()
	m := NewMonitor(20*time.Millisecond, rec.signOut, logging.NewLogger(true))
	defer m.Stop()

	var expiredMu sync.Mutex
	var expired []string
	m.SetOnExpired(func(uid string) {
		expiredMu.Lock()
		expired = append(expired, uid)
		expiredMu.Unlock()
	})

	m.Touch("u1")
	waitFor(t, rec.fired, "u1")

	assertQuiet(t, rec.fired, 100*time.Millisecond)
	assert.Equal(t, 1, rec.count())

	expiredMu.Lock()
	assert.Equal(t, []string{"u1"}, expired, "expiry hook runs exactly once, after sign-out")
	expiredMu.Unlock()
}

func TestMonitor_TouchReArmsCountdown(t *testing.T) {
	rec := newSignOutRecorder()
	m := NewMonitor(200*time.Millisecond, rec.signOut, logging.NewLogger(true))
	defer m.Stop()

	m.Touch("u1")
	for i := 0; i < 6; i++ {
		time.Sleep(50 * time.Millisecond)
		m.Touch("u1")
	}

	// 300ms elapsed, well past the idle interval, but activity kept coming.
	assert.Zero(t, rec.count())

	waitFor(t, rec.fired, "u1")
}

func TestMonitor_EndCancelsWithoutSignOut(t *testing.T) {
	rec := newSignOutRecorder()
	m := NewMonitor(20*time.Millisecond, rec.signOut, logging.NewLogger(true))
	defer m.Stop()

	m.Touch("u1")
	m.End("u1")

	assertQuiet(t, rec.fired, 100*time.Millisecond)
}

func TestMonitor_StopCancelsEverything(t *testing.T) {
	rec := newSignOutRecorder()
	m := NewMonitor(20*time.Millisecond, rec.signOut, logging.NewLogger(true))

	m.Touch("u1")
	m.Touch("u2")
	m.Stop()

	assertQuiet(t, rec.fired, 100*time.Millisecond)

	// Touch after Stop is a no-op.
	m.Touch("u3")
	assertQuiet(t, rec.fired, 100*time.Millisecond)
}

func TestMonitor_SetIdleTimeoutReArmsPendingSessions(t *testing.T) {
	rec := newSignOutRecorder()
	m := NewMonitor(time.Hour, rec.signOut, logging.NewLogger(true))
	defer m.Stop()

	m.Touch("u1")
	m.SetIdleTimeout(20 * time.Millisecond)

	waitFor(t, rec.fired, "u1")
}

func TestMonitor_PrincipalsExpireIndependently(t *testing.T) {
	rec := newSignOutRecorder()
	m := NewMonitor(100*time.Millisecond, rec.signOut, logging.NewLogger(true))
	defer m.Stop()

	m.Touch("idle")
	m.Touch("busy")

	deadline := time.Now().Add(300 * time.Millisecond)
	for time.Now().Before(deadline) {
		m.Touch("busy")
		time.Sleep(20 * time.Millisecond)
	}

	rec.mu.Lock()
	calls := append([]string(nil), rec.calls...)
	rec.mu.Unlock()
	assert.Equal(t, []string{"idle"}, calls)
}

func TestNewMonitor_ZeroDurationFallsBackToDefault(t *testing.T) {
	m := NewMonitor(0, func(ctx context.Context, uid string) error { return nil }, logging.NewLogger(true))
	defer m.Stop()
	assert.Equal(t, DefaultIdleTimeout, m.idle)
}
