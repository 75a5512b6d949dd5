package broker

import "github.com/xeno-editor/kernel/internal/wire"

// AllocWireRequestID mints the next wire request id for server, in the
// canonical "b:{server}:{seq}" form.
func (c *Core) AllocWireRequestID(server wire.ServerID) wire.RequestID {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.record(server)
	if !ok {
		return ""
	}
	rec.nextWireReqID++
	return wire.NewWireRequestID(server, rec.nextWireReqID)
}

// RegisterC2SPending records a server-bound request that originSession sent
// to server under originID, returning the wire id the server was
// given so the eventual response can be matched back to the origin. Returns
// "" if originSession has exceeded c2sRateLimit.
func (c *Core) RegisterC2SPending(server wire.ServerID, originSession wire.SessionID, originID wire.RequestID) wire.RequestID {
	if _, ok := c.c2sLimiter.Allow(originSession); !ok {
		return ""
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.record(server)
	if !ok {
		return ""
	}
	rec.nextWireReqID++
	wid := wire.NewWireRequestID(server, rec.nextWireReqID)
	rec.pendingC2S[wid] = pendingC2S{originSession: originSession, originID: originID}
	return wid
}

// TakeC2SPending removes and returns the c2s pending entry for wid, e.g.
// when the server's response (or a timeout) arrives.
func (c *Core) TakeC2SPending(server wire.ServerID, wid wire.RequestID) (originSession wire.SessionID, originID wire.RequestID, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, exists := c.record(server)
	if !exists {
		return 0, "", false
	}
	p, found := rec.pendingC2S[wid]
	if !found {
		return 0, "", false
	}
	delete(rec.pendingC2S, wid)
	return p.originSession, p.originID, true
}

// CancelC2SPending is an alias of TakeC2SPending: cancellation and
// fulfillment both consume the same pending entry.
func (c *Core) CancelC2SPending(server wire.ServerID, wid wire.RequestID) bool {
	_, _, ok := c.TakeC2SPending(server, wid)
	return ok
}

// BeginS2C registers a new server-to-client request addressed to whichever
// session is currently responsible for responding (responder), returning
// the wire id and a one-shot reply channel the caller must eventually
// receive from (CompleteS2C/CancelS2C/UnregisterSession all send exactly
// once and close the channel).
func (c *Core) BeginS2C(server wire.ServerID, responder wire.SessionID) (wire.RequestID, <-chan Reply) {
	c.mu.Lock()
	defer c.mu.Unlock()
	reply := make(chan Reply, 1)
	rec, ok := c.record(server)
	if !ok {
		reply <- Reply{Err: ErrUnknownServer}
		close(reply)
		return "", reply
	}
	rec.nextWireReqID++
	wid := wire.NewWireRequestID(server, rec.nextWireReqID)
	rec.pendingS2C[wid] = pendingS2C{responder: responder, reply: reply}
	return wid, reply
}

// CompleteS2C delivers the server's response for a pending s2c request,
// reporting whether a matching pending entry existed.
func (c *Core) CompleteS2C(server wire.ServerID, wid wire.RequestID, result []byte, err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.record(server)
	if !ok {
		return false
	}
	p, found := rec.pendingS2C[wid]
	if !found {
		return false
	}
	delete(rec.pendingS2C, wid)
	p.reply <- Reply{Result: result, Err: err}
	close(p.reply)
	return true
}

// CancelS2C cancels a pending s2c request, delivering RequestCancelledError
// to the waiter.
func (c *Core) CancelS2C(server wire.ServerID, wid wire.RequestID) bool {
	return c.CompleteS2C(server, wid, nil, wire.RequestCancelledError())
}

// CancelAllS2CForSession cancels every s2c request this responder session
// was handling, delivering RequestCancelledError to each waiting request;
// used when the session reports
// session_lost rather than a hard unregister.
func (c *Core) CancelAllS2CForSession(server wire.ServerID, responder wire.SessionID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.record(server)
	if !ok {
		return
	}
	for wid, p := range rec.pendingS2C {
		if p.responder == responder {
			p.reply <- Reply{Err: wire.RequestCancelledError()}
			close(p.reply)
			delete(rec.pendingS2C, wid)
		}
	}
}

// CancelAllForServer cancels every pending s2c request and drops every
// pending c2s request owned by server, used on server exit/termination.
func (c *Core) CancelAllForServer(server wire.ServerID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.record(server)
	if !ok {
		return
	}
	for wid, p := range rec.pendingS2C {
		p.reply <- Reply{Err: wire.RequestCancelledError()}
		close(p.reply)
		delete(rec.pendingS2C, wid)
	}
	for wid := range rec.pendingC2S {
		delete(rec.pendingC2S, wid)
	}
}
