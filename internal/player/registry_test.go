package player

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonroyaalmerol/hkbot/internal/testutil"
)

func TestRegistry_Lifecycle(t *testing.T) {
	testutil.VerifyNoLeaks(t)

	created := 0
	reg := NewRegistry(func(guildID string) *Queue {
		created++
		return NewQueue(guildID, &fakeMaterializer{}, Options{})
	})

	assert.Nil(t, reg.Peek("g1"))
	q := reg.GetOrCreate("g1")
	assert.Same(t, q, reg.GetOrCreate("g1"))
	assert.Same(t, q, reg.Peek("g1"))
	assert.Equal(t, 1, created)

	v := newFakeVoice()
	q.Attach(v)
	_, err := q.Put(partial("a"))
	require.NoError(t, err)
	v.next(t)

	require.NoError(t, reg.Teardown(context.Background(), "g1"))
	assert.Nil(t, reg.Peek("g1"))
	assert.True(t, v.closed)
	_, err = q.Put(partial("b"))
	assert.ErrorIs(t, err, ErrQueueClosed)

	require.NoError(t, reg.Teardown(context.Background(), "g1"))

	fresh := reg.GetOrCreate("g1")
	assert.NotSame(t, q, fresh)
	assert.Equal(t, 2, created)

	require.NoError(t, reg.Retire(context.Background(), q))
	assert.Same(t, fresh, reg.Peek("g1"), "retiring a stale queue keeps the live one")

	reg.GetOrCreate("g2")
	assert.Equal(t, 2, reg.Len())
	require.NoError(t, reg.Close(context.Background()))
	assert.Zero(t, reg.Len())
}
