// Package broker implements the process-global LSP multiplexer: wire-id
// allocation, pending c2s/s2c request maps, per-URI ownership leader
// election, and the text-sync gate that decides which session's
// didOpen/didChange/didClose notifications actually reach a server.
//
// Core holds all routing state behind a single mutex. Server records live in an
// internal/arena.Arena so a ServerID remains a stable, generationally-safe
// handle even as servers come and go across a long-running process.
package broker

import (
	"errors"
	"sync"
	"time"

	"github.com/joeycumines/go-catrate"
	"golang.org/x/exp/slices"

	"github.com/xeno-editor/kernel/internal/arena"
	"github.com/xeno-editor/kernel/internal/wire"
)

var (
	// ErrUnknownServer is returned when an operation names a ServerID with
	// no live record in the arena.
	ErrUnknownServer = errors.New("broker: unknown server")
	// ErrNoAttachedSessions is returned when an s2c request can't be routed
	// because no session is currently attached to the server.
	ErrNoAttachedSessions = errors.New("broker: no attached sessions")
	// ErrC2SRateLimited is returned when a session originates c2s requests
	// faster than c2sRateLimit allows.
	ErrC2SRateLimited = errors.New("broker: client-to-server request rate limited")
)

// c2sRateLimit bounds how often any single session may originate a
// server-bound (c2s) request, guarding a misbehaving editor session from
// flooding a server with requests it must track as pending.
var c2sRateLimit = map[time.Duration]int{
	time.Second: 50,
	time.Minute: 1000,
}

type pendingS2C struct {
	responder wire.SessionID
	reply     chan Reply
}

type pendingC2S struct {
	originSession wire.SessionID
	originID      wire.RequestID
}

// Reply is the payload or error an s2c responder sends back to the server.
// Result is an opaque JSON-encoded payload; the broker never interprets
// it, only routes it.
type Reply struct {
	Result []byte
	Err    error
}

// serverRecord is one LSP server's broker-side bookkeeping.
type serverRecord struct {
	attached      map[wire.SessionID]struct{}
	leader        wire.SessionID
	hasLeader     bool
	nextWireReqID uint64
	docs          map[string]*docGate // URI -> text-sync gate state
	pendingS2C    map[wire.RequestID]pendingS2C
	pendingC2S    map[wire.RequestID]pendingC2S
}

func newServerRecord(leader wire.SessionID) *serverRecord {
	return &serverRecord{
		attached:   map[wire.SessionID]struct{}{leader: {}},
		leader:     leader,
		hasLeader:  true,
		docs:       make(map[string]*docGate),
		pendingS2C: make(map[wire.RequestID]pendingS2C),
		pendingC2S: make(map[wire.RequestID]pendingC2S),
	}
}

// Core is the broker's routing and text-sync state, safe for concurrent
// use. The zero value is not usable; use NewCore.
type Core struct {
	mu         sync.Mutex
	servers    *arena.Arena[*serverRecord]
	c2sLimiter *catrate.Limiter
}

// NewCore returns an empty Core.
func NewCore() *Core {
	return &Core{
		servers:    arena.New[*serverRecord](),
		c2sLimiter: catrate.NewLimiter(c2sRateLimit),
	}
}

// RegisterServer creates a new server record with leader as its sole
// attached session and elected leader, returning its ServerID.
func (c *Core) RegisterServer(leader wire.SessionID) wire.ServerID {
	c.mu.Lock()
	defer c.mu.Unlock()
	h := c.servers.Insert(newServerRecord(leader))
	return wire.ServerID(h.Pack())
}

func (c *Core) record(id wire.ServerID) (*serverRecord, bool) {
	return c.servers.Get(arena.Unpack(uint64(id)))
}

// AttachSession adds session to server's attached set without changing the
// current leader. Returns false if server is unknown.
func (c *Core) AttachSession(server wire.ServerID, session wire.SessionID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.record(server)
	if !ok {
		return false
	}
	rec.attached[session] = struct{}{}
	return true
}

// AttachedSessions returns server's currently attached sessions in
// ascending order, for diagnostics and deterministic test assertions (map
// iteration order is otherwise unspecified).
func (c *Core) AttachedSessions(server wire.ServerID) ([]wire.SessionID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.record(server)
	if !ok {
		return nil, false
	}
	out := make([]wire.SessionID, 0, len(rec.attached))
	for s := range rec.attached {
		out = append(out, s)
	}
	slices.Sort(out)
	return out, true
}

// Leader returns the current elected leader for server.
func (c *Core) Leader(server wire.ServerID) (wire.SessionID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.record(server)
	if !ok || !rec.hasLeader {
		return 0, false
	}
	return rec.leader, true
}

// ElectLeader explicitly changes server's leader. The leader is stored
// explicitly and only changes on explicit re-election, never implicitly
// on attach/detach.
func (c *Core) ElectLeader(server wire.ServerID, session wire.SessionID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.record(server)
	if !ok {
		return false
	}
	rec.leader = session
	rec.hasLeader = true
	return true
}

// TerminateServer removes server's record entirely, e.g. on process exit.
func (c *Core) TerminateServer(server wire.ServerID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.servers.Remove(arena.Unpack(uint64(server)))
}

// UnregisterSession removes session from every server's attached/follower
// sets (performing doc-gate takeover where applicable), cancels all s2c
// requests it was responsible for, and drops c2s pending entries it
// originated, across every live server.
func (c *Core) UnregisterSession(session wire.SessionID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.servers.Range(func(_ arena.Handle, rec *serverRecord) bool {
		delete(rec.attached, session)

		for uri, gate := range rec.docs {
			gate.removeSession(session)
			if gate.empty() {
				delete(rec.docs, uri)
			}
		}

		for rid, p := range rec.pendingS2C {
			if p.responder == session {
				p.reply <- Reply{Err: wire.RequestCancelledError()}
				close(p.reply)
				delete(rec.pendingS2C, rid)
			}
		}
		for rid, p := range rec.pendingC2S {
			if p.originSession == session {
				delete(rec.pendingC2S, rid)
			}
		}
		return true
	})
}
