package sharedstate

import (
	"sync"

	"github.com/xeno-editor/kernel/internal/wire"
)

// Manager owns the shared-state bookkeeping for every document URI the
// local session has registered. It has no knowledge of transport; its
// caller (internal/kernel.Kernel) drives it with already-decoded requests
// and acks.
type Manager struct {
	mu   sync.Mutex
	docs map[string]*entry
}

// New returns an empty Manager.
func New() *Manager {
	return &Manager{docs: make(map[string]*entry)}
}

// Open registers uri as owned (fresh-create case) or followed (joining an
// existing session), seeding the authoritative fingerprint. Calling Open
// on an already-registered URI replaces its state.
func (m *Manager) Open(uri string, role Role, epoch wire.SyncEpoch, seq wire.SyncSeq, hash64, lenChars uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := newEntry(role, hash64, lenChars)
	e.epoch = epoch
	e.seq = seq
	m.docs[uri] = e
}

// Close removes uri's shared-state entry entirely (reference-counting
// across multiple local buffers, if any, is the caller's responsibility).
func (m *Manager) Close(uri string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, uri)
}

// DisableAll clears every tracked document, e.g. when the shared-state
// feature is disabled or the broker connection is lost.
func (m *Manager) DisableAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = make(map[string]*entry)
}

// IsEditBlocked reports whether uri currently prohibits local mutation
// (no entry, or the caller is a Follower).
func (m *Manager) IsEditBlocked(uri string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.docs[uri]
	return !ok || e.role != RoleOwner
}

// IsOwner reports whether the local session owns uri.
func (m *Manager) IsOwner(uri string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.docs[uri]
	return ok && e.role == RoleOwner
}

// IsUnlocked reports whether uri currently has no owner.
func (m *Manager) IsUnlocked(uri string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.docs[uri]
	return ok && e.phase == PhaseUnlocked
}

// RoleForURI returns the local role for uri, and whether an entry exists.
func (m *Manager) RoleForURI(uri string) (Role, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.docs[uri]
	if !ok {
		return 0, false
	}
	return e.role, true
}

// StatusForURI reports the UI-facing role and status for uri, checked in
// strict priority order: needs-resync first, then unlocked phase, then
// owner role, else follower.
func (m *Manager) StatusForURI(uri string) (role Role, hasRole bool, status SyncStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.docs[uri]
	if !ok {
		return 0, false, StatusOff
	}
	switch {
	case e.needsResync:
		status = StatusNeedsResync
	case e.phase == PhaseUnlocked:
		status = StatusUnlocked
	case e.role == RoleOwner:
		status = StatusOwner
	default:
		status = StatusFollower
	}
	return e.role, true, status
}

// IsInFlight reports whether uri has an outstanding, unacknowledged request.
func (m *Manager) IsInFlight(uri string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.docs[uri]
	return ok && e.inFlight != nil
}

// CurrentUndoGroup returns uri's current local undo group id, or 0 if
// untracked.
func (m *Manager) CurrentUndoGroup(uri string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.docs[uri]
	if !ok {
		return 0
	}
	return e.currentUndoGroup
}

// CacheViewGroup records the pre/post view snapshots for a local undo
// group, so undo/redo can restore view state alongside text.
func (m *Manager) CacheViewGroup(uri string, groupID uint64, pre, post map[uint64]ViewSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.docs[uri]
	if !ok {
		return
	}
	e.viewGroups[groupID] = GroupViewState{Pre: pre, Post: post}
}

// GetViewGroup retrieves the cached view state for a group, if any.
func (m *Manager) GetViewGroup(uri string, groupID uint64) (GroupViewState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.docs[uri]
	if !ok {
		return GroupViewState{}, false
	}
	g, ok := e.viewGroups[groupID]
	return g, ok
}

// PendingHistoryLen reports how many undo/redo requests are queued behind
// the in-flight request for uri (test/diagnostic helper).
func (m *Manager) PendingHistoryLen(uri string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.docs[uri]
	if !ok {
		return 0
	}
	return len(e.pendingHistory)
}

// PendingDeltasLen reports how many edit deltas are queued behind the
// in-flight request for uri (test/diagnostic helper).
func (m *Manager) PendingDeltasLen(uri string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.docs[uri]
	if !ok {
		return 0
	}
	return len(e.pendingDeltas)
}
