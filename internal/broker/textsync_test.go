package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xeno-editor/kernel/internal/wire"
)

// TestTextSyncStateMachineMultiSession walks two sessions through the
// full gate lifecycle: S1 opens and owns a
// document, S2's didOpen is silently dropped (registry stays at S1's
// version), S2 cannot mutate it, S1 can, and only after S1 closes (with
// S2 still following) does S2's next didChange implicitly take ownership.
func TestTextSyncStateMachineMultiSession(t *testing.T) {
	c := NewCore()
	const uri = "file:///shared.rs"
	var s1, s2 wire.SessionID = 1, 2
	server := c.RegisterServer(s1)

	// S1 didOpen v1 -> Forward, becomes owner.
	assert.Equal(t, Forward, c.GateTextSync(server, s1, uri, NotifDidOpen, 1))
	owner, version, ok := c.GetDocByURI(server, uri)
	require.True(t, ok)
	assert.Equal(t, s1, owner)
	assert.EqualValues(t, 1, version)

	// S2 didOpen v10 -> DropSilently, registry still at v1/S1.
	assert.Equal(t, DropSilently, c.GateTextSync(server, s2, uri, NotifDidOpen, 10))
	owner, version, ok = c.GetDocByURI(server, uri)
	require.True(t, ok)
	assert.Equal(t, s1, owner)
	assert.EqualValues(t, 1, version)

	// S2 didChange v11 -> RejectNotOwner.
	assert.Equal(t, RejectNotOwner, c.GateTextSync(server, s2, uri, NotifDidChange, 11))

	// S1 didChange v2 -> Forward.
	assert.Equal(t, Forward, c.GateTextSync(server, s1, uri, NotifDidChange, 2))
	_, version, _ = c.GetDocByURI(server, uri)
	assert.EqualValues(t, 2, version)

	// S1 didClose, S2 still following -> DropSilently, doc stays open.
	assert.Equal(t, DropSilently, c.GateTextSync(server, s1, uri, NotifDidClose, 0))
	_, _, ok = c.GetDocByURI(server, uri)
	require.True(t, ok, "doc must remain open while S2 still follows")

	// S2 didChange v12 -> Forward via implicit takeover.
	assert.Equal(t, Forward, c.GateTextSync(server, s2, uri, NotifDidChange, 12))
	owner, version, ok = c.GetDocByURI(server, uri)
	require.True(t, ok)
	assert.Equal(t, s2, owner)
	assert.EqualValues(t, 12, version)

	// S2 didClose, no followers left -> Forward, URI removed.
	assert.Equal(t, Forward, c.GateTextSync(server, s2, uri, NotifDidClose, 0))
	_, _, ok = c.GetDocByURI(server, uri)
	assert.False(t, ok)
}

// TestUnregisterCleansC2SAndDocs ports unregister_cleans_c2s_and_docs:
// registering a pending c2s request and opening a document, then
// unregistering the session, must clear both.
func TestUnregisterCleansC2SAndDocs(t *testing.T) {
	c := NewCore()
	const uri = "file:///a.rs"
	var s1 wire.SessionID = 1
	server := c.RegisterServer(s1)

	require.Equal(t, Forward, c.GateTextSync(server, s1, uri, NotifDidOpen, 1))

	rid := c.RegisterC2SPending(server, s1, wire.NewWireRequestID(server, 1))
	require.NotEmpty(t, rid)

	c.UnregisterSession(s1)

	_, _, ok := c.GetDocByURI(server, uri)
	assert.False(t, ok, "doc entry must be removed once its sole participant unregisters")

	_, _, found := c.TakeC2SPending(server, rid)
	assert.False(t, found, "c2s pending entry must be cleared on unregister")
}

// TestS2CCancelledOnSessionLoss ports the broker's s2c-cancellation
// behavior: a pending s2c request whose responder session is lost
// receives RequestCancelledError on UnregisterSession.
func TestS2CCancelledOnSessionLoss(t *testing.T) {
	c := NewCore()
	var leader, responder wire.SessionID = 1, 2
	server := c.RegisterServer(leader)
	c.AttachSession(server, responder)

	rid, reply := c.BeginS2C(server, responder)
	require.NotEmpty(t, rid)

	c.UnregisterSession(responder)

	r, ok := <-reply
	require.True(t, ok)
	require.Error(t, r.Err)
	assert.Equal(t, "request cancelled by broker", r.Err.Error())
}

func TestWireIDAllocationIsPerServerMonotonic(t *testing.T) {
	c := NewCore()
	var s1 wire.SessionID = 1
	server := c.RegisterServer(s1)

	id1 := c.AllocWireRequestID(server)
	id2 := c.AllocWireRequestID(server)
	assert.NotEqual(t, id1, id2)
}
