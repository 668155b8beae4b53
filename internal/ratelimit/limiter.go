// Package ratelimit tracks failed verification attempts per identity and
// enforces a lockout once a threshold is reached. State is process-lifetime
// only and is never persisted.
package ratelimit

import (
	"sync"
	"time"
)

const (
	// DefaultMaxAttempts is the number of consecutive failures before lockout.
	DefaultMaxAttempts = 5
	// DefaultLockout is how long a locked identity stays locked.
	DefaultLockout = 15 * time.Minute
)

type state struct {
	attempts    int
	lastAttempt time.Time
	lockedUntil time.Time
}

// Limiter is a concurrency-safe per-key attempt tracker. Keys are scoped to a
// verification target (e.g. an email address): locking one identity never
// affects another. Construct once per process and inject; never use as a
// package-level singleton.
type Limiter struct {
	mu          sync.Mutex
	m           map[string]*state
	maxAttempts int
	lockout     time.Duration
	nowF        func() time.Time
}

// New returns a Limiter with the default threshold (5 attempts) and lockout
// duration (15 minutes).
func New() *Limiter {
	return NewWithPolicy(DefaultMaxAttempts, DefaultLockout)
}

// NewWithPolicy returns a Limiter with a custom threshold and lockout duration.
func NewWithPolicy(maxAttempts int, lockout time.Duration) *Limiter {
	return &Limiter{
		m:           make(map[string]*state),
		maxAttempts: maxAttempts,
		lockout:     lockout,
		nowF:        func() time.Time { return time.Now().UTC() },
	}
}

// IsLimited reports whether key is currently locked out and, if so, how long
// until the lock expires. Expired locks are cleared lazily here.
func (l *Limiter) IsLimited(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.m[key]
	if !ok || s.lockedUntil.IsZero() {
		return false, 0
	}
	now := l.nowF()
	if !s.lockedUntil.After(now) {
		delete(l.m, key)
		return false, 0
	}
	return true, s.lockedUntil.Sub(now)
}

// RecordFailure records one failed attempt for key. It returns how many
// attempts remain before lockout and whether this failure triggered the lock.
// Failures are recorded even when the surrounding operation is being rejected,
// since the failed attempt itself is the signal being tracked.
func (l *Limiter) RecordFailure(key string) (remaining int, locked bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.nowF()
	s, ok := l.m[key]
	if !ok || (!s.lockedUntil.IsZero() && !s.lockedUntil.After(now)) {
		// First failure, or first failure after an expired lock.
		l.m[key] = &state{attempts: 1, lastAttempt: now}
		return l.maxAttempts - 1, false
	}
	s.attempts++
	s.lastAttempt = now
	if s.attempts >= l.maxAttempts {
		s.lockedUntil = now.Add(l.lockout)
		return 0, true
	}
	return l.maxAttempts - s.attempts, false
}

// RecordSuccess clears all recorded state for key.
func (l *Limiter) RecordSuccess(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.m, key)
}
