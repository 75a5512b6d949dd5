// Package sharedstate implements the collaborative-document fingerprint
// protocol: an owner/follower role per document URI, an
// epoch/seq/hash/length precondition on every mutation, pipelined
// edit/undo/redo requests while a request is in flight, and resync/repair
// on any precondition mismatch.
//
// There is no separate broker-side actor wrapping Manager: the kernel
// composition root (internal/kernel.Kernel) owns the single Manager for
// its process directly, acting as its own loopback authority over
// PrepareEdit/PrepareUndo/PrepareRedo's requests via HandleApplyAck/Resync
// in the absence of a remote collaboration session.
package sharedstate

import "github.com/xeno-editor/kernel/internal/wire"

// Role is the local session's relationship to a shared document.
type Role uint8

const (
	RoleFollower Role = iota
	RoleOwner
)

// Phase tracks whether a document currently has an owner.
type Phase uint8

const (
	PhaseUnlocked Phase = iota
	PhaseLocked
)

// SyncStatus is the UI-facing summary of a document's shared-state health.
type SyncStatus uint8

const (
	StatusOff SyncStatus = iota
	StatusNeedsResync
	StatusUnlocked
	StatusOwner
	StatusFollower
)

// inFlightEdit tracks the single outstanding request for a document.
type inFlightEdit struct {
	epoch   wire.SyncEpoch
	baseSeq wire.SyncSeq
}

// pendingDelta is a queued edit awaiting the in-flight request's ack.
type pendingDelta struct {
	tx    wire.Tx
	group uint64
}

// ViewSnapshot is the per-view state restored alongside text on undo/redo;
// capturing it per undo group lets undo restore view as well as text.
type ViewSnapshot struct {
	Cursor     int
	ScrollLine int
}

// GroupViewState is the pre/post view snapshot pair cached for one local
// undo group, keyed by an opaque view id supplied by the caller (the
// buffer/view manager owns the real ViewId type; sharedstate only stores
// what it's given).
type GroupViewState struct {
	Pre  map[uint64]ViewSnapshot
	Post map[uint64]ViewSnapshot
}

// entry is one URI's shared-state bookkeeping.
type entry struct {
	role  Role
	phase Phase

	epoch        wire.SyncEpoch
	seq          wire.SyncSeq
	authHash64   uint64
	authLenChars uint64

	inFlight       *inFlightEdit
	pendingDeltas  []pendingDelta
	pendingHistory []wire.ApplyKind

	needsResync bool

	currentUndoGroup uint64
	viewGroups       map[uint64]GroupViewState
}

func newEntry(role Role, hash64, lenChars uint64) *entry {
	return &entry{
		role:         role,
		phase:        PhaseLocked,
		authHash64:   hash64,
		authLenChars: lenChars,
		viewGroups:   make(map[uint64]GroupViewState),
	}
}
