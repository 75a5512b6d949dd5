package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xeno-editor/kernel/internal/wire"
)

func TestCore_AttachedSessionsSorted(t *testing.T) {
	c := NewCore()
	var leader wire.SessionID = 5
	server := c.RegisterServer(leader)

	require.True(t, c.AttachSession(server, 9))
	require.True(t, c.AttachSession(server, 1))
	require.True(t, c.AttachSession(server, 3))

	sessions, ok := c.AttachedSessions(server)
	require.True(t, ok)
	assert.Equal(t, []wire.SessionID{1, 3, 5, 9}, sessions)
}

func TestCore_AttachedSessionsUnknownServer(t *testing.T) {
	c := NewCore()
	_, ok := c.AttachedSessions(wire.ServerID(99999))
	assert.False(t, ok)
}
