package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRandomGateway_Bounds(t *testing.T) {
	g := NewRandomGateway(10*time.Millisecond, 50*time.Millisecond, 42)
	for i := 0; i < 200; i++ {
		d := g.Latency()
		assert.GreaterOrEqual(t, d, 10*time.Millisecond)
		assert.LessOrEqual(t, d, 50*time.Millisecond)
	}
}

func TestRandomGateway_Rates(t *testing.T) {
	g := NewRandomGateway(0, 0, 7)
	for i := 0; i < 100; i++ {
		assert.True(t, g.Decide(1).Approved)
		out := g.Decide(0)
		assert.False(t, out.Approved)
		assert.Contains(t, cannedFailureReasons, out.Reason)
	}
	assert.Equal(t, time.Duration(0), g.Latency())
}

func TestRandomGateway_SameSeedSameOutcomes(t *testing.T) {
	a := NewRandomGateway(0, time.Second, 99)
	b := NewRandomGateway(0, time.Second, 99)
	for i := 0; i < 20; i++ {
		assert.Equal(t, a.Latency(), b.Latency())
		assert.Equal(t, a.Decide(0.9), b.Decide(0.9))
	}
}

func TestSleepCtx(t *testing.T) {
	assert.NoError(t, sleepCtx(context.Background(), 0))
	assert.NoError(t, sleepCtx(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepCtx(ctx, time.Hour), context.Canceled)
}
