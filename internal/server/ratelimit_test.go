package server

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRateLimiter(t *testing.T) {
	rl := NewRateLimiter(10)

	assert.NotNil(t, rl)
	assert.Equal(t, 10, rl.perMinute)
	assert.NotNil(t, rl.clients)
}

func TestRateLimiter_Allow_NoLimit(t *testing.T) {
	rl := NewRateLimiter(0)
	for range 100 {
		require.NoError(t, rl.Allow("client"))
	}

	var nilLimiter *RateLimiter
	assert.NoError(t, nilLimiter.Allow("client"))
}

func TestRateLimiter_Allow_Window(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2)
	rl.now = func() time.Time { return now }

	require.NoError(t, rl.Allow("a"))
	require.NoError(t, rl.Allow("a"))
	assert.Equal(t, 2, rl.Used("a"))

	now = now.Add(20 * time.Second)
	err := rl.Allow("a")
	require.Error(t, err)

	var rlErr *RateLimitError
	require.True(t, errors.As(err, &rlErr))
	assert.Equal(t, 2, rlErr.Limit)
	assert.Equal(t, 40*time.Second, rlErr.RetryAfter)
	assert.Contains(t, err.Error(), "rate limit exceeded")

	// other clients have their own window
	assert.NoError(t, rl.Allow("b"))

	now = now.Add(40 * time.Second)
	assert.NoError(t, rl.Allow("a"))
	assert.Equal(t, 1, rl.Used("a"))
}

func TestRateLimiter_Used_Unknown(t *testing.T) {
	rl := NewRateLimiter(5)
	assert.Equal(t, 0, rl.Used("nobody"))
}
