package sharedstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xeno-editor/kernel/internal/wire"
)

func tx(n int) wire.Tx { return wire.Tx{{Kind: wire.OpRetain, N: uint64(n)}} }

// TestPrepareEditPipelining walks an owner through a pipelined pair of
// edits: the second queues while the first is in flight, then drains with
// the advanced fingerprint as its base.
func TestPrepareEditPipelining(t *testing.T) {
	m := New()
	m.Open("file:///a.rs", RoleOwner, 7, 20, 0xA0, 100)

	req1 := m.PrepareEdit("file:///a.rs", tx(1), true)
	require.NotNil(t, req1)
	assert.Equal(t, wire.SyncSeq(20), req1.BaseSeq)
	assert.Equal(t, uint64(1), req1.UndoGroup)

	req2 := m.PrepareEdit("file:///a.rs", tx(2), false)
	assert.Nil(t, req2)
	assert.Equal(t, 1, m.PendingDeltasLen("file:///a.rs"))

	appliedTx := tx(3)
	applied, ok := m.HandleApplyAck("file:///a.rs", 7, 21, &appliedTx, 0xA1, 102)
	require.True(t, ok)
	assert.Equal(t, &appliedTx, applied)

	drained := m.DrainPendingEditRequests()
	require.Len(t, drained, 1)
	assert.Equal(t, wire.SyncSeq(21), drained[0].BaseSeq)
	assert.Equal(t, uint64(1), drained[0].UndoGroup)
}

func TestHandleApplyAck_MismatchForcesResync(t *testing.T) {
	m := New()
	m.Open("file:///a.rs", RoleOwner, 1, 5, 0, 10)
	req := m.PrepareEdit("file:///a.rs", tx(1), true)
	require.NotNil(t, req)

	// Wrong seq: ack expected seq=6, got 7.
	_, ok := m.HandleApplyAck("file:///a.rs", 1, 7, nil, 0, 0)
	assert.False(t, ok)

	_, _, status := m.StatusForURI("file:///a.rs")
	assert.Equal(t, StatusNeedsResync, status)
	assert.False(t, m.IsInFlight("file:///a.rs"))

	// Further edits are refused while needsResync is set.
	assert.Nil(t, m.PrepareEdit("file:///a.rs", tx(1), true))
}

func TestPrepareEdit_FollowerRefused(t *testing.T) {
	m := New()
	m.Open("file:///a.rs", RoleFollower, 1, 0, 0, 0)
	assert.Nil(t, m.PrepareEdit("file:///a.rs", tx(1), true))
}

func TestStatusForURI_PriorityOrder(t *testing.T) {
	m := New()
	_, has, status := m.StatusForURI("file:///missing.rs")
	assert.False(t, has)
	assert.Equal(t, StatusOff, status)

	m.Open("file:///a.rs", RoleOwner, 1, 0, 0, 0)
	_, _, status = m.StatusForURI("file:///a.rs")
	assert.Equal(t, StatusOwner, status)

	m.Open("file:///b.rs", RoleFollower, 1, 0, 0, 0)
	_, _, status = m.StatusForURI("file:///b.rs")
	assert.Equal(t, StatusFollower, status)
}

func TestPrepareUndoRedo_Pipelined(t *testing.T) {
	m := New()
	m.Open("file:///a.rs", RoleOwner, 1, 0, 0, 0)
	require.NotNil(t, m.PrepareEdit("file:///a.rs", tx(1), true))

	assert.Nil(t, m.PrepareUndo("file:///a.rs"))
	assert.Equal(t, 1, m.PendingHistoryLen("file:///a.rs"))

	_, ok := m.HandleApplyAck("file:///a.rs", 1, 1, nil, 0, 0)
	require.True(t, ok)

	drained := m.DrainPendingEditRequests()
	require.Len(t, drained, 1)
	assert.Equal(t, wire.ApplyUndo, drained[0].Kind)
}
