package runtimepump

import (
	"runtime"
	"sync/atomic"
)

// pumpGoroutineID, once set, identifies the single goroutine that owns a
// Pump's state; isPumpThread lets internal fast paths (e.g. a future
// SubmitInternal) skip channel hand-off when already running on that
// goroutine.
type pumpGoroutineID struct {
	id atomic.Uint64
}

// bind records the calling goroutine as the pump's owner. Call once, from
// the goroutine that will drive RunCycle/PollDirective/DrainUntilIdle.
func (a *pumpGoroutineID) bind() {
	a.id.Store(getGoroutineID())
}

// isPumpThread reports whether the caller is running on the bound
// goroutine. Returns false if bind was never called.
func (a *pumpGoroutineID) isPumpThread() bool {
	id := a.id.Load()
	return id != 0 && getGoroutineID() == id
}

// getGoroutineID parses the current goroutine's numeric id out of its own
// stack trace header ("goroutine NNN [running]:..."), the same trick
// runtime debugging tools use since Go exposes no public goroutine-id API.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
