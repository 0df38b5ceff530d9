package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacerFirstCallImmediate(t *testing.T) {
	p := NewPacer(time.Hour)
	assert.True(t, p.Allow())
	assert.False(t, p.Allow())
}

func TestPacerSpacesCalls(t *testing.T) {
	p := NewPacer(50 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, p.Wait(ctx))
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestPacerZeroIntervalNeverBlocks(t *testing.T) {
	p := NewPacer(0)
	for i := 0; i < 100; i++ {
		assert.True(t, p.Allow())
	}
}

func TestPacerReset(t *testing.T) {
	p := NewPacer(time.Hour)
	require.True(t, p.Allow())
	require.False(t, p.Allow())

	p.Reset()
	assert.True(t, p.Allow())
	assert.Equal(t, time.Hour, p.Interval())
}

func TestPacerWaitCancelled(t *testing.T) {
	p := NewPacer(time.Hour)
	require.True(t, p.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, p.Wait(ctx))
}

func TestPacerImplementsLimiter(t *testing.T) {
	var _ Limiter = NewPacer(time.Second)
}
