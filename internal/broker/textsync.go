package broker

import "github.com/xeno-editor/kernel/internal/wire"

// DocGateDecision is the outcome of feeding one text-sync notification
// through the gate for a (server, URI) pair.
type DocGateDecision uint8

const (
	// Forward means the notification must be transmitted to the server.
	Forward DocGateDecision = iota
	// DropSilently means the notification must not reach the server, and
	// no error is reported to the sender (e.g. a duplicate didOpen).
	DropSilently
	// RejectNotOwner means the sender attempted to mutate a document it
	// does not own.
	RejectNotOwner
)

// docGate is the per-URI, per-server state machine: Unopened is the zero
// value (no entry in serverRecord.docs); Open tracks the current owner,
// its followers, and the registry version last forwarded.
type docGate struct {
	owner     wire.SessionID
	hasOwner  bool
	followers map[wire.SessionID]struct{}
	version   uint32
}

// empty reports whether the gate has no owner and no followers left, and
// can be dropped from serverRecord.docs entirely.
func (g *docGate) empty() bool {
	return g == nil || (!g.hasOwner && len(g.followers) == 0)
}

// removeSession drops session from this gate's owner/follower sets,
// performing implicit takeover bookkeeping: removing an owner with
// followers leaves the gate open (ownerless) until the next didChange
// picks a new owner, matching the takeover rule in GateTextSync's
// NotifDidChange case below.
func (g *docGate) removeSession(session wire.SessionID) {
	if g == nil {
		return
	}
	delete(g.followers, session)
	if g.owner == session {
		g.owner = 0
		g.hasOwner = false
	}
}

// GateTextSync decides what to do with an inbound didOpen/didChange/
// didClose notification from session for uri on server, and updates the
// gate's internal bookkeeping accordingly. version is the document version
// carried by didOpen/didChange (ignored for didClose).
func (c *Core) GateTextSync(server wire.ServerID, session wire.SessionID, uri string, kind NotifKind, version uint32) DocGateDecision {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.record(server)
	if !ok {
		return DropSilently
	}

	gate, exists := rec.docs[uri]

	switch kind {
	case NotifDidOpen:
		if !exists {
			rec.docs[uri] = &docGate{owner: session, hasOwner: true, version: version}
			return Forward
		}
		if gate.hasOwner && gate.owner == session {
			return DropSilently
		}
		if _, isFollower := gate.followers[session]; isFollower {
			return DropSilently
		}
		if gate.followers == nil {
			gate.followers = make(map[wire.SessionID]struct{})
		}
		gate.followers[session] = struct{}{}
		return DropSilently

	case NotifDidChange:
		if !exists {
			return RejectNotOwner
		}
		if gate.hasOwner && gate.owner == session {
			gate.version = version
			return Forward
		}
		if !gate.hasOwner {
			// Implicit takeover: the first didChange from any remaining
			// follower (or the sender itself) becomes the new owner.
			delete(gate.followers, session)
			gate.owner = session
			gate.hasOwner = true
			gate.version = version
			return Forward
		}
		return RejectNotOwner

	case NotifDidClose:
		if !exists {
			return DropSilently
		}
		if gate.hasOwner && gate.owner == session {
			if len(gate.followers) == 0 {
				delete(rec.docs, uri)
				return Forward
			}
			gate.owner = 0
			gate.hasOwner = false
			return DropSilently
		}
		if _, isFollower := gate.followers[session]; isFollower {
			delete(gate.followers, session)
			return DropSilently
		}
		return DropSilently

	default:
		return DropSilently
	}
}

// GetDocByURI returns the current owner and registry version for uri on
// server, for tests and diagnostics.
func (c *Core) GetDocByURI(server wire.ServerID, uri string) (owner wire.SessionID, version uint32, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, exists := c.record(server)
	if !exists {
		return 0, 0, false
	}
	gate, exists := rec.docs[uri]
	if !exists {
		return 0, 0, false
	}
	return gate.owner, gate.version, true
}

// NotifKind tags which text-sync notification is being gated.
type NotifKind uint8

const (
	NotifDidOpen NotifKind = iota
	NotifDidChange
	NotifDidClose
)
