package domain

import "time"

// OneTimeCredential represents a mailed OTP challenge (stored in the
// one_time_credentials table). Only the SHA-256 hash of the code is
// persisted.
type OneTimeCredential struct {
	ID        string
	UserID    string
	Email     string
	CodeHash  string
	Used      bool
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Usable reports whether the credential can still satisfy a challenge at
// the given time.
func (c *OneTimeCredential) Usable(now time.Time) bool {
	return !c.Used && c.ExpiresAt.After(now)
}
