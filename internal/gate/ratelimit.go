package gate

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// RateLimiter throttles messages per client with a sliding window: at most
// maxMessages timestamps may fall inside the trailing window. Unlike a
// token bucket, the window can report the exact instant a blocked client
// becomes eligible again, which the chat protocol surfaces to the peer.
//
// RateLimiter is safe for concurrent use. Records are created lazily on
// first check and must be removed with Cleanup when a session ends; the
// session handle's lifetime is independent of the connection, so nothing
// collects the record implicitly.
type RateLimiter struct {
	mu          sync.Mutex
	window      time.Duration
	maxMessages int
	store       map[uuid.UUID][]time.Time
}

// NewRateLimiter creates a limiter allowing maxMessages per window.
func NewRateLimiter(maxMessages int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		window:      window,
		maxMessages: maxMessages,
		store:       make(map[uuid.UUID][]time.Time),
	}
}

// Check records one message attempt at the given time. It returns whether
// the message is allowed and, when it is not, how long the client must
// wait before the next message would be accepted.
//
// The prune-check-append sequence is a single critical section so two
// concurrent checks can never both observe room in the same window.
func (rl *RateLimiter) Check(clientID uuid.UUID, now time.Time) (allowed bool, retryAfter time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := now.Add(-rl.window)
	timestamps := rl.store[clientID]

	kept := timestamps[:0]
	for _, t := range timestamps {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= rl.maxMessages {
		rl.store[clientID] = kept
		return false, kept[0].Add(rl.window).Sub(now)
	}

	rl.store[clientID] = append(kept, now)
	return true, 0
}

// Cleanup removes the client's record entirely. Called exactly once per
// client on session teardown; omitting it leaks the record forever.
func (rl *RateLimiter) Cleanup(clientID uuid.UUID) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.store, clientID)
}

// Size returns the number of tracked clients, for status reporting.
func (rl *RateLimiter) Size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.store)
}
