package broker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xeno-editor/kernel/internal/wire"
)

func TestService_LifecycleRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc := NewService(ctx)

	var leader, follower wire.SessionID = 1, 2
	server := svc.LspStart(leader)
	require.True(t, svc.BeginC2S(server, follower))

	assert.Equal(t, Forward, svc.LspDocOpen(server, leader, "file:///a.rs", 1))
	assert.Equal(t, DropSilently, svc.LspDocOpen(server, follower, "file:///a.rs", 1))
	assert.Equal(t, RejectNotOwner, svc.LspDocUpdate(server, follower, "file:///a.rs", 2))

	wid, reply := svc.BeginS2C(server, follower)
	require.NotEmpty(t, wid)
	require.True(t, svc.CompleteS2C(server, wid, []byte(`{"ok":true}`), nil))

	select {
	case r := <-reply:
		require.NoError(t, r.Err)
		assert.Equal(t, `{"ok":true}`, string(r.Result))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for s2c reply")
	}

	svc.SessionExited(follower)
	assert.True(t, svc.TerminateAll(server))
}
