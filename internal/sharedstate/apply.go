package sharedstate

import "github.com/xeno-editor/kernel/internal/wire"

// prepareApply is the shared core of PrepareEdit/PrepareUndo/PrepareRedo:
// it requires ownership and an aligned fingerprint, then either claims the
// in-flight slot and returns a request, or queues behind the outstanding
// one (pipelining).
func (m *Manager) prepareApply(uri string, kind wire.ApplyKind, tx *wire.Tx) *wire.SharedApply {
	e, ok := m.docs[uri]
	if !ok || e.role != RoleOwner || e.needsResync {
		return nil
	}

	groupID := e.currentUndoGroup

	if e.inFlight != nil {
		if kind == wire.ApplyEdit && tx != nil {
			e.pendingDeltas = append(e.pendingDeltas, pendingDelta{tx: *tx, group: groupID})
		} else {
			e.pendingHistory = append(e.pendingHistory, kind)
		}
		return nil
	}

	e.inFlight = &inFlightEdit{epoch: e.epoch, baseSeq: e.seq}

	return &wire.SharedApply{
		URI:          uri,
		Kind:         kind,
		Epoch:        e.epoch,
		BaseSeq:      e.seq,
		BaseHash64:   e.authHash64,
		BaseLenChars: e.authLenChars,
		Tx:           tx,
		UndoGroup:    groupID,
	}
}

// PrepareEdit prepares an Edit mutation request for uri. If newGroup is
// true, the local undo group counter is bumped first (saturating at >=1).
// Returns nil if the
// request was queued (pipelined) or preconditions aren't met.
func (m *Manager) PrepareEdit(uri string, tx wire.Tx, newGroup bool) *wire.SharedApply {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.docs[uri]
	if !ok {
		return nil
	}
	if newGroup {
		e.currentUndoGroup++
		if e.currentUndoGroup == 0 {
			e.currentUndoGroup = 1
		}
	}
	return m.prepareApply(uri, wire.ApplyEdit, &tx)
}

// PrepareUndo prepares an Undo mutation request for uri.
func (m *Manager) PrepareUndo(uri string) *wire.SharedApply {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prepareApply(uri, wire.ApplyUndo, nil)
}

// PrepareRedo prepares a Redo mutation request for uri.
func (m *Manager) PrepareRedo(uri string) *wire.SharedApply {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prepareApply(uri, wire.ApplyRedo, nil)
}

// HandleApplyAck processes a SharedApply acknowledgment for uri. On a
// matching epoch/seq (seq == in-flight base_seq+1), it advances the
// authoritative fingerprint, clears the in-flight guard, and returns the
// applied delta the caller must apply locally. On any mismatch, it sets
// needsResync, clears in-flight and all pending queues, and returns
// (nil, false).
func (m *Manager) HandleApplyAck(uri string, epoch wire.SyncEpoch, seq wire.SyncSeq, appliedTx *wire.Tx, hash64, lenChars uint64) (*wire.Tx, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.docs[uri]
	if !ok || e.inFlight == nil {
		return nil, false
	}

	expected := e.inFlight.baseSeq + 1
	if epoch == e.inFlight.epoch && seq == expected {
		e.seq = seq
		e.authHash64 = hash64
		e.authLenChars = lenChars
		e.inFlight = nil
		return appliedTx, true
	}

	e.needsResync = true
	e.pendingDeltas = nil
	e.pendingHistory = nil
	e.inFlight = nil
	return nil, false
}

// DrainPendingEditRequests visits every owned, non-resync document with no
// in-flight request and emits its next queued request: a pending edit
// delta first, then a pending history (undo/redo) operation.
func (m *Manager) DrainPendingEditRequests() []*wire.SharedApply {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*wire.SharedApply
	for uri, e := range m.docs {
		if e.role != RoleOwner || e.needsResync || e.inFlight != nil {
			continue
		}

		if len(e.pendingDeltas) > 0 {
			d := e.pendingDeltas[0]
			e.pendingDeltas = e.pendingDeltas[1:]
			e.inFlight = &inFlightEdit{epoch: e.epoch, baseSeq: e.seq}
			out = append(out, &wire.SharedApply{
				URI:          uri,
				Kind:         wire.ApplyEdit,
				Epoch:        e.epoch,
				BaseSeq:      e.seq,
				BaseHash64:   e.authHash64,
				BaseLenChars: e.authLenChars,
				Tx:           &d.tx,
				UndoGroup:    d.group,
			})
			continue
		}

		if len(e.pendingHistory) > 0 {
			kind := e.pendingHistory[0]
			e.pendingHistory = e.pendingHistory[1:]
			e.inFlight = &inFlightEdit{epoch: e.epoch, baseSeq: e.seq}
			out = append(out, &wire.SharedApply{
				URI:          uri,
				Kind:         kind,
				Epoch:        e.epoch,
				BaseSeq:      e.seq,
				BaseHash64:   e.authHash64,
				BaseLenChars: e.authLenChars,
				UndoGroup:    e.currentUndoGroup,
			})
		}
	}
	return out
}
