package voice

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonroyaalmerol/hkbot/internal/testutil"
)

func TestGate_WaitBlocksUntilSet(t *testing.T) {
	testutil.VerifyNoLeaks(t)

	g := NewGate(false)
	assert.False(t, g.IsSet())

	done := make(chan error, 1)
	go func() { done <- g.Wait(context.Background()) }()

	select {
	case <-done:
		t.Fatal("wait returned while cleared")
	case <-time.After(20 * time.Millisecond):
	}

	g.Set()
	require.NoError(t, <-done)
	assert.True(t, g.IsSet())
	require.NoError(t, g.Wait(context.Background()))
}

func TestGate_ClearAndCancel(t *testing.T) {
	g := NewGate(true)
	g.Clear()
	g.Clear()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, g.Wait(ctx), context.DeadlineExceeded)

	g.Set()
	g.Set()
	assert.NoError(t, g.Wait(context.Background()))
}
