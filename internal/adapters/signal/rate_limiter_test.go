package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRateLimiterBlocksOverLimit(t *testing.T) {
	req := require.New(t)
	rl := NewMessageRateLimiter(3, time.Minute)

	req.True(rl.Allow("c1"))
	req.True(rl.Allow("c1"))
	req.True(rl.Allow("c1"))
	req.False(rl.Allow("c1"))

	// Other connections have their own window.
	req.True(rl.Allow("c2"))
}

func TestRateLimiterWindowSlides(t *testing.T) {
	req := require.New(t)
	rl := NewMessageRateLimiter(2, 20*time.Millisecond)

	req.True(rl.Allow("c1"))
	req.True(rl.Allow("c1"))
	req.False(rl.Allow("c1"))

	time.Sleep(25 * time.Millisecond)
	req.True(rl.Allow("c1"))
}

func TestRateLimiterForget(t *testing.T) {
	req := require.New(t)
	rl := NewMessageRateLimiter(1, time.Minute)

	req.True(rl.Allow("c1"))
	req.False(rl.Allow("c1"))
	rl.Forget("c1")
	req.True(rl.Allow("c1"))
}
