// Package devotp provides an in-memory store for plain OTPs keyed by email,
// used only when dev OTP return mode is enabled.
package devotp

import (
	"context"
	"sync"
	"time"
)

// Store holds plain OTP by email for dev-only retrieval. Not used in production.
type Store interface {
	// Put stores otp for email until expiresAt. Used when issuing a login OTP in dev mode.
	Put(ctx context.Context, email, otp string, expiresAt time.Time)
	// Get returns the otp for email if present and not expired. Returns ok false if missing or expired.
	Get(ctx context.Context, email string) (otp string, ok bool)
}

type entry struct {
	otp       string
	expiresAt time.Time
}

// MemoryStore is an in-memory Store implementation.
type MemoryStore struct {
	mu   sync.RWMutex
	m    map[string]entry
	nowF func() time.Time
}

// NewMemoryStore returns a new in-memory dev OTP store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		m:    make(map[string]entry),
		nowF: func() time.Time { return time.Now().UTC() },
	}
}

// Put stores otp for email until expiresAt.
func (s *MemoryStore) Put(ctx context.Context, email, otp string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[email] = entry{otp: otp, expiresAt: expiresAt}
}

// Get returns the otp for email if present and not expired.
func (s *MemoryStore) Get(ctx context.Context, email string) (string, bool) {
	s.mu.RLock()
	e, ok := s.m[email]
	s.mu.RUnlock()
	if !ok {
		return "", false
	}
	if !e.expiresAt.After(s.nowF()) {
		s.mu.Lock()
		delete(s.m, email)
		s.mu.Unlock()
		return "", false
	}
	return e.otp, true
}
