package broker

import (
	"context"

	"github.com/xeno-editor/kernel/internal/wire"
)

// Service wraps Core behind a single owning goroutine and a command
// channel: callers never touch Core directly, they send a command and
// await its reply over a per-call one-shot channel.
type Service struct {
	cmds chan routingCmd
	core *Core
}

type routingCmd func(core *Core)

// NewService starts the routing actor's goroutine and returns a handle to
// it. Cancelling ctx stops the actor; in-flight replies still complete from
// whatever state Core was last left in.
func NewService(ctx context.Context) *Service {
	s := &Service{
		cmds: make(chan routingCmd, 64),
		core: NewCore(),
	}
	go s.run(ctx)
	return s
}

func (s *Service) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-s.cmds:
			cmd(s.core)
		}
	}
}

func (s *Service) do(fn routingCmd) { s.cmds <- fn }

// LspStart registers a new server with leader as its first attached/leader
// session.
func (s *Service) LspStart(leader wire.SessionID) wire.ServerID {
	reply := make(chan wire.ServerID, 1)
	s.do(func(c *Core) { reply <- c.RegisterServer(leader) })
	return <-reply
}

// BeginC2S attaches session to server without disturbing the leader.
func (s *Service) BeginC2S(server wire.ServerID, session wire.SessionID) bool {
	reply := make(chan bool, 1)
	s.do(func(c *Core) { reply <- c.AttachSession(server, session) })
	return <-reply
}

// BeginS2C starts a server-to-client request addressed to responder.
func (s *Service) BeginS2C(server wire.ServerID, responder wire.SessionID) (wire.RequestID, <-chan Reply) {
	type res struct {
		id    wire.RequestID
		reply <-chan Reply
	}
	out := make(chan res, 1)
	s.do(func(c *Core) {
		id, reply := c.BeginS2C(server, responder)
		out <- res{id, reply}
	})
	r := <-out
	return r.id, r.reply
}

// CompleteS2C delivers a server-to-client response.
func (s *Service) CompleteS2C(server wire.ServerID, wid wire.RequestID, result []byte, err error) bool {
	reply := make(chan bool, 1)
	s.do(func(c *Core) { reply <- c.CompleteS2C(server, wid, result, err) })
	return <-reply
}

// CancelS2C cancels a pending server-to-client request.
func (s *Service) CancelS2C(server wire.ServerID, wid wire.RequestID) bool {
	reply := make(chan bool, 1)
	s.do(func(c *Core) { reply <- c.CancelS2C(server, wid) })
	return <-reply
}

// SessionLost cancels every s2c request the session was responsible for on
// server, without tearing down its other state (a soft, server-scoped loss
// signal distinct from a full UnregisterSession).
func (s *Service) SessionLost(server wire.ServerID, session wire.SessionID) {
	done := make(chan struct{})
	s.do(func(c *Core) { c.CancelAllS2CForSession(server, session); close(done) })
	<-done
}

// LspSendNotif gates an outbound server notification's text-sync side
// effect (didOpen/didChange/didClose) and reports whether it should be
// forwarded to the server.
func (s *Service) LspSendNotif(server wire.ServerID, session wire.SessionID, uri string, kind NotifKind, version uint32) DocGateDecision {
	reply := make(chan DocGateDecision, 1)
	s.do(func(c *Core) { reply <- c.GateTextSync(server, session, uri, kind, version) })
	return <-reply
}

// LspDocOpen/LspDocUpdate/LspDocClose are named aliases of LspSendNotif for
// the three notification kinds.
func (s *Service) LspDocOpen(server wire.ServerID, session wire.SessionID, uri string, version uint32) DocGateDecision {
	return s.LspSendNotif(server, session, uri, NotifDidOpen, version)
}

func (s *Service) LspDocUpdate(server wire.ServerID, session wire.SessionID, uri string, version uint32) DocGateDecision {
	return s.LspSendNotif(server, session, uri, NotifDidChange, version)
}

func (s *Service) LspDocClose(server wire.ServerID, session wire.SessionID, uri string) DocGateDecision {
	return s.LspSendNotif(server, session, uri, NotifDidClose, 0)
}

// ServerNotif routes a server-originated notification to session (a no-op
// placeholder hook point for future server->client notification filtering;
// today every server notification is forwarded as-is).
func (s *Service) ServerNotif(server wire.ServerID, _ wire.SessionID, _ []byte) bool {
	reply := make(chan bool, 1)
	s.do(func(c *Core) {
		_, ok := c.record(server)
		reply <- ok
	})
	return <-reply
}

// ServerExited tears down every pending request for server but keeps its
// attached sessions so a respawned server can be reattached under the same
// ServerID by the caller if it chooses; callers that want a clean slate
// should follow up with TerminateAll/RegisterServer.
func (s *Service) ServerExited(server wire.ServerID) {
	done := make(chan struct{})
	s.do(func(c *Core) { c.CancelAllForServer(server); close(done) })
	<-done
}

// SessionExited fully unregisters session from every server: doc gates,
// pending s2c (cancelled), and pending c2s it originated.
func (s *Service) SessionExited(session wire.SessionID) {
	done := make(chan struct{})
	s.do(func(c *Core) { c.UnregisterSession(session); close(done) })
	<-done
}

// TerminateAll removes server's record entirely, cancelling anything still
// pending against it first.
func (s *Service) TerminateAll(server wire.ServerID) bool {
	reply := make(chan bool, 1)
	s.do(func(c *Core) {
		c.CancelAllForServer(server)
		reply <- c.TerminateServer(server)
	})
	return <-reply
}
