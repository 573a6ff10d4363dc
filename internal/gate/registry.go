package gate

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry tracks active sessions against a capacity ceiling and records
// per-session last-activity timestamps for idle detection.
//
// A session handle is a UUID issued at admission. The registry never
// touches the underlying connection; it only accounts for it. All methods
// are safe for concurrent use. The check-and-increment in TryAdmit and the
// decrement in Release share one mutex, so the invariant
// 0 <= active <= max holds at every observable point.
type Registry struct {
	mu           sync.Mutex
	max          int
	idleTimeout  time.Duration
	active       int
	lastActivity map[uuid.UUID]time.Time
}

// NewRegistry creates a registry with the given capacity ceiling and idle
// timeout threshold.
func NewRegistry(maxConnections int, idleTimeout time.Duration) *Registry {
	return &Registry{
		max:          maxConnections,
		idleTimeout:  idleTimeout,
		lastActivity: make(map[uuid.UUID]time.Time),
	}
}

// TryAdmit atomically checks capacity and, if a slot is free, claims it
// and issues a fresh session handle with the activity baseline set to now.
// Returns (uuid.Nil, false) without mutating state when at capacity.
func (r *Registry) TryAdmit(now time.Time) (uuid.UUID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active >= r.max {
		return uuid.Nil, false
	}
	id := uuid.New()
	r.active++
	r.lastActivity[id] = now
	return id, true
}

// Release frees the session's slot and removes its activity record.
// Idempotent: a second Release for the same handle, or a Release for a
// handle that was never admitted, is a no-op. This makes the race between
// normal teardown and an idle-sweep-triggered teardown safe by
// construction instead of by ordering.
func (r *Registry) Release(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.lastActivity[id]; !ok {
		return
	}
	delete(r.lastActivity, id)
	if r.active > 0 {
		r.active--
	}
}

// Touch records now as the session's last activity. Last-write-wins; a
// touch after Release is dropped so a released handle cannot resurrect
// its record.
func (r *Registry) Touch(id uuid.UUID, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.lastActivity[id]; ok {
		r.lastActivity[id] = now
	}
}

// IsIdle reports whether the session has been inactive for at least the
// idle timeout. A session without an activity record is never idle: the
// baseline defaults to now.
func (r *Registry) IsIdle(id uuid.UUID, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	last, ok := r.lastActivity[id]
	if !ok {
		return false
	}
	return now.Sub(last) >= r.idleTimeout
}

// Active returns the current number of admitted sessions.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Max returns the capacity ceiling.
func (r *Registry) Max() int {
	return r.max
}

// IdleTimeout returns the configured idle threshold.
func (r *Registry) IdleTimeout() time.Duration {
	return r.idleTimeout
}
