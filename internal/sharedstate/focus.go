package sharedstate

import "github.com/xeno-editor/kernel/internal/wire"

// Focus atomically acquires ownership (when focused is true) and verifies
// fingerprint alignment for uri. The caller supplies its
// own client-side (hash64, lenChars) when known; a mismatch against the
// authoritative fingerprint sets needsResync and the returned
// ResponsePayload carries a full-text repair snapshot that the caller must
// install verbatim.
//
// Focus's snapshot callback supplies the content for that repair snapshot;
// it is the caller's responsibility to supply the authoritative
// text (sharedstate itself holds no document content).
type FocusRequest struct {
	URI            string
	Focused        bool
	FocusSeq       uint64
	Nonce          wire.SyncNonce
	ClientHash64   *uint64
	ClientLenChars *uint64
}

// Focus processes a focus transition. snapshot supplies the authoritative
// full text, used only when a repair response is required.
func (m *Manager) Focus(req FocusRequest, snapshot func() string) *wire.ResponsePayload {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.docs[req.URI]
	if !ok {
		return nil
	}

	if req.Focused {
		e.role = RoleOwner
		e.phase = PhaseLocked
	}

	resp := &wire.ResponsePayload{
		Epoch:     e.epoch,
		Seq:       e.seq,
		Hash64:    e.authHash64,
		LenChars:  e.authLenChars,
		UndoGroup: e.currentUndoGroup,
	}

	if aligned(req.ClientHash64, req.ClientLenChars, e.authHash64, e.authLenChars) {
		return resp
	}

	e.needsResync = true
	text := snapshot()
	resp.Snapshot = &text
	return resp
}

// Resync unconditionally fetches a full snapshot of uri, installing the
// authoritative fingerprint the broker reports and clearing needsResync.
func (m *Manager) Resync(uri string, epoch wire.SyncEpoch, seq wire.SyncSeq, hash64, lenChars uint64, snapshot string) *wire.ResponsePayload {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.docs[uri]
	if !ok {
		return nil
	}

	e.epoch = epoch
	e.seq = seq
	e.authHash64 = hash64
	e.authLenChars = lenChars
	e.needsResync = false
	e.inFlight = nil
	e.pendingDeltas = nil
	e.pendingHistory = nil

	return &wire.ResponsePayload{
		Epoch:     epoch,
		Seq:       seq,
		Hash64:    hash64,
		LenChars:  lenChars,
		Snapshot:  &snapshot,
		UndoGroup: e.currentUndoGroup,
	}
}

func aligned(clientHash64, clientLenChars *uint64, authHash64, authLenChars uint64) bool {
	if clientHash64 == nil || clientLenChars == nil {
		// caller didn't supply a fingerprint to check; nothing to misalign.
		return true
	}
	return *clientHash64 == authHash64 && *clientLenChars == authLenChars
}
