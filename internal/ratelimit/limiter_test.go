package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBurstThenReject(t *testing.T) {
	l := NewLimiter(60, 3)

	for i := 0; i < 3; i++ {
		ok, _ := l.Allow("agent-a")
		assert.True(t, ok, "request %d within burst", i)
	}

	ok, retryAfter := l.Allow("agent-a")
	assert.False(t, ok)
	assert.Greater(t, retryAfter.Seconds(), 0.0)
	assert.LessOrEqual(t, retryAfter.Seconds(), 1.0)
	assert.Equal(t, 0, l.Remaining("agent-a"))
}

func TestClientsAreIndependent(t *testing.T) {
	l := NewLimiter(1, 1)

	ok, _ := l.Allow("agent-a")
	assert.True(t, ok)
	ok, _ = l.Allow("agent-a")
	assert.False(t, ok)

	ok, _ = l.Allow("agent-b")
	assert.True(t, ok)
}

func TestRejectedRequestsDoNotConsumeTokens(t *testing.T) {
	l := NewLimiter(60, 1)

	ok, _ := l.Allow("agent-a")
	assert.True(t, ok)
	for i := 0; i < 5; i++ {
		ok, _ = l.Allow("agent-a")
		assert.False(t, ok)
	}

	// The bucket is only slightly negative, not five tokens in debt
	_, retryAfter := l.Allow("agent-a")
	assert.LessOrEqual(t, retryAfter.Seconds(), 1.0)
}

func TestZeroRateDisablesLimiting(t *testing.T) {
	l := NewLimiter(0, 0)

	for i := 0; i < 100; i++ {
		ok, _ := l.Allow("agent-a")
		assert.True(t, ok)
	}
}
