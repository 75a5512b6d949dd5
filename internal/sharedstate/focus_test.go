package sharedstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFocus_AlignedGrantsOwnership(t *testing.T) {
	m := New()
	m.Open("file:///a.rs", RoleFollower, 1, 5, 0xAA, 3)

	hash, length := uint64(0xAA), uint64(3)
	resp := m.Focus(FocusRequest{
		URI:            "file:///a.rs",
		Focused:        true,
		ClientHash64:   &hash,
		ClientLenChars: &length,
	}, func() string { t.Fatal("snapshot should not be called when aligned"); return "" })

	require.NotNil(t, resp)
	assert.Nil(t, resp.Snapshot)
	role, _, status := m.StatusForURI("file:///a.rs")
	assert.Equal(t, RoleOwner, role)
	assert.Equal(t, StatusOwner, status)
}

func TestFocus_MismatchRepairsAndResyncs(t *testing.T) {
	m := New()
	m.Open("file:///a.rs", RoleFollower, 1, 5, 0xAA, 3)

	hash, length := uint64(0xBB), uint64(9)
	resp := m.Focus(FocusRequest{
		URI:            "file:///a.rs",
		Focused:        true,
		ClientHash64:   &hash,
		ClientLenChars: &length,
	}, func() string { return "authoritative text" })

	require.NotNil(t, resp)
	require.NotNil(t, resp.Snapshot)
	assert.Equal(t, "authoritative text", *resp.Snapshot)
	_, _, status := m.StatusForURI("file:///a.rs")
	assert.Equal(t, StatusNeedsResync, status)
}

func TestResync_ClearsNeedsResyncAndInstallsFingerprint(t *testing.T) {
	m := New()
	m.Open("file:///a.rs", RoleOwner, 1, 5, 0, 0)
	req := m.PrepareEdit("file:///a.rs", tx(1), true)
	require.NotNil(t, req)
	_, ok := m.HandleApplyAck("file:///a.rs", 1, 99, nil, 0, 0) // force mismatch
	require.False(t, ok)

	resp := m.Resync("file:///a.rs", 2, 0, 0xCC, 42, "fresh text")
	require.NotNil(t, resp)
	assert.Equal(t, "fresh text", *resp.Snapshot)

	_, _, status := m.StatusForURI("file:///a.rs")
	assert.Equal(t, StatusOwner, status)
	assert.False(t, m.IsInFlight("file:///a.rs"))
}
