package execgate

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate_BlocksBackground(t *testing.T) {
	g := New()
	guard := g.EnterInteractive()

	var resolved atomic.Bool
	done := make(chan struct{})
	go func() {
		_ = g.WaitForBackground(context.Background())
		resolved.Store(true)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	assert.False(t, resolved.Load(), "background wait must not resolve while interactive is in flight")

	guard.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitForBackground did not resolve after interactive guard dropped")
	}
	assert.True(t, resolved.Load())
}

func TestGate_OpenScopeOverridesInteractive(t *testing.T) {
	g := New()
	guard := g.EnterInteractive()
	defer guard.Close()

	done := make(chan struct{})
	go func() {
		_ = g.WaitForBackground(context.Background())
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)

	scope := g.OpenBackgroundScope()
	defer scope.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitForBackground did not resolve once a background scope opened")
	}
}

func TestGate_NestedScopes(t *testing.T) {
	g := New()
	guard := g.EnterInteractive()
	defer guard.Close()

	outer := g.OpenBackgroundScope()
	inner := g.OpenBackgroundScope()

	require.NoError(t, g.WaitForBackground(context.Background()))

	inner.Close()
	require.NoError(t, g.WaitForBackground(context.Background()), "outer scope still open")

	outer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := g.WaitForBackground(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded, "no scope open and interactive still in flight")
}
