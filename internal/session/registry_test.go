package session_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"matchserver/internal/session"
)

func newRegistry() *session.Registry {
	return session.NewRegistry(zap.NewNop())
}

func authedClient(t *testing.T, r *session.Registry, playerID string) *session.Client {
	t.Helper()
	c := session.NewClient(nil)
	r.Register(c)
	require.NoError(t, c.Authenticate(playerID))
	require.NoError(t, r.BindPlayer(c))
	return c
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := newRegistry()
	c := session.NewClient(nil)

	id := r.Register(c)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, c.ID)
	assert.Same(t, c, r.Get(id))
	assert.Equal(t, 1, r.Count())

	assert.Nil(t, r.Get("no-such-conn"))
}

func TestRegistry_RemoveIsIdempotentAndFiresHookOnce(t *testing.T) {
	r := newRegistry()

	var fired atomic.Int32
	r.OnDisconnect(func(c *session.Client) {
		fired.Add(1)
	})

	c := session.NewClient(nil)
	id := r.Register(c)

	r.Remove(id)
	r.Remove(id)
	r.Remove("no-such-conn")

	assert.Equal(t, int32(1), fired.Load())
	assert.Nil(t, r.Get(id))
	assert.Equal(t, session.StateDisconnected, c.State())
}

func TestRegistry_BindPlayerRefusesSecondConnection(t *testing.T) {
	r := newRegistry()

	first := authedClient(t, r, "p1")
	assert.Same(t, first, r.GetByPlayer("p1"))

	second := session.NewClient(nil)
	r.Register(second)
	require.NoError(t, second.Authenticate("p1"))
	assert.ErrorIs(t, r.BindPlayer(second), session.ErrPlayerOnline)

	// The index still points at the first connection.
	assert.Same(t, first, r.GetByPlayer("p1"))
}

func TestRegistry_RemoveFreesPlayerBinding(t *testing.T) {
	r := newRegistry()

	first := authedClient(t, r, "p1")
	r.Remove(first.ID)
	assert.Nil(t, r.GetByPlayer("p1"))

	// The player can reconnect afterwards.
	second := authedClient(t, r, "p1")
	assert.Same(t, second, r.GetByPlayer("p1"))
}

func TestRegistry_SweepExpired(t *testing.T) {
	r := newRegistry()

	var removed atomic.Int32
	r.OnDisconnect(func(c *session.Client) {
		removed.Add(1)
	})

	silent := session.NewClient(nil)
	r.Register(silent)
	chatty := session.NewClient(nil)
	r.Register(chatty)

	time.Sleep(20 * time.Millisecond)
	chatty.Touch() // heartbeat arrived

	expired := r.SweepExpired(10 * time.Millisecond)
	require.Len(t, expired, 1)
	assert.Equal(t, silent.ID, expired[0])
	assert.Equal(t, int32(1), removed.Load())

	assert.Nil(t, r.Get(silent.ID))
	assert.Same(t, chatty, r.Get(chatty.ID))
}

func TestRegistry_SweepKeepsActiveConnections(t *testing.T) {
	r := newRegistry()
	c := session.NewClient(nil)
	r.Register(c)

	// A connection pinging at half the timeout is never swept.
	for i := 0; i < 4; i++ {
		time.Sleep(5 * time.Millisecond)
		c.Touch()
		assert.Empty(t, r.SweepExpired(10*time.Millisecond))
	}
	assert.Equal(t, 1, r.Count())
}
