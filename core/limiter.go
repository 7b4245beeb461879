package core

import (
	"errors"
	"fmt"
	"sync"
)

// ErrRoundLimit is returned once a RoundLimiter is exhausted.
var ErrRoundLimit = errors.New("round limit reached")

// RoundLimiter enforces a maximum number of rounds per turn.
type RoundLimiter struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewRoundLimiter creates a new limiter with a max number of rounds.
// If max == 0, unlimited rounds are allowed.
func NewRoundLimiter(max int) *RoundLimiter {
	return &RoundLimiter{max: max}
}

// Increment starts the next round and returns its 1-based number. It fails
// when the limit has already been used up.
func (rl *RoundLimiter) Increment() (int, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.max > 0 && rl.count >= rl.max {
		return rl.count, fmt.Errorf("%w: %d", ErrRoundLimit, rl.max)
	}
	rl.count++

	return rl.count, nil
}

// Exhausted reports whether no further round may start.
func (rl *RoundLimiter) Exhausted() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return rl.max > 0 && rl.count >= rl.max
}

// Count returns the number of rounds started so far.
func (rl *RoundLimiter) Count() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return rl.count
}

// Max returns the configured limit, 0 meaning unlimited.
func (rl *RoundLimiter) Max() int { return rl.max }

// Remaining returns how many rounds are left before hitting the limit.
func (rl *RoundLimiter) Remaining() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.max == 0 {
		return -1 // unlimited
	}

	return rl.max - rl.count
}
