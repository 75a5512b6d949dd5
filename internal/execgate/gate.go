// Package execgate implements the kernel's execution gate: a strict
// two-class barrier between interactive (typing-path) and background
// (indexing/LSP) work, so no background task observes an interactive
// operation in progress unless it explicitly opened a background scope.
//
// A waiter must capture the notification channel *before* re-checking its
// condition, or a notify fired between the check and the wait is lost.
// The gate uses the standard "close a channel to broadcast, then swap in
// a fresh one" idiom guarded by a mutex, which makes that capture-first
// ordering cheap to get right.
package execgate

import (
	"context"
	"sync"
	"sync/atomic"
)

// Gate is the kernel-wide interactive/background barrier. The zero value
// is not usable; use New.
type Gate struct {
	interactiveInFlight atomic.Int64
	backgroundOpenDepth atomic.Int64

	mu     sync.Mutex
	notify chan struct{}
}

// New returns a ready Gate.
func New() *Gate {
	return &Gate{notify: make(chan struct{})}
}

// InteractiveGuard releases its interactive slot on Close; it is safe to
// call Close more than once.
type InteractiveGuard struct {
	gate   *Gate
	once   sync.Once
}

// EnterInteractive registers an in-flight interactive task. Release the
// returned guard (typically via defer) when the task completes.
func (g *Gate) EnterInteractive() *InteractiveGuard {
	g.interactiveInFlight.Add(1)
	return &InteractiveGuard{gate: g}
}

// Close releases the interactive slot and wakes any waiters.
func (g *InteractiveGuard) Close() {
	g.once.Do(func() {
		g.gate.interactiveInFlight.Add(-1)
		g.gate.wake()
	})
}

// BackgroundScopeGuard releases a nested background-scope permit on Close.
type BackgroundScopeGuard struct {
	gate *Gate
	once sync.Once
}

// OpenBackgroundScope explicitly permits background execution even while
// interactive work is in flight. Scopes nest via a depth counter; the gate
// is open to background work as long as depth > 0.
func (g *Gate) OpenBackgroundScope() *BackgroundScopeGuard {
	g.backgroundOpenDepth.Add(1)
	g.wake()
	return &BackgroundScopeGuard{gate: g}
}

// Close ends this background scope.
func (g *BackgroundScopeGuard) Close() {
	g.once.Do(func() {
		g.gate.backgroundOpenDepth.Add(-1)
		g.gate.wake()
	})
}

// IsInteractiveActive reports whether any interactive task is currently in
// flight.
func (g *Gate) IsInteractiveActive() bool {
	return g.interactiveInFlight.Load() > 0
}

func (g *Gate) openForBackground() bool {
	return g.backgroundOpenDepth.Load() > 0 || g.interactiveInFlight.Load() == 0
}

// wake broadcasts to every goroutine currently blocked in WaitForBackground.
func (g *Gate) wake() {
	g.mu.Lock()
	close(g.notify)
	g.notify = make(chan struct{})
	g.mu.Unlock()
}

// WaitForBackground blocks until either a background scope is open or no
// interactive task is in flight. It re-checks the condition after every
// notification, so a wake that races with the check is never lost: the
// channel to wait on is captured under the same lock used by wake, before
// the condition is (re-)evaluated.
func (g *Gate) WaitForBackground(ctx context.Context) error {
	for {
		g.mu.Lock()
		ch := g.notify
		g.mu.Unlock()

		if g.openForBackground() {
			return nil
		}

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
