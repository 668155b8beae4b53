// Package mail delivers one-time codes to users. The production sender posts
// to an external mail relay; ConsoleSender logs deliveries for local
// development.
package mail

import (
	"context"
	"log"
	"time"
)

// Sender delivers an OTP to the given address. Implementations must not log
// the plain code in production.
type Sender interface {
	SendOTP(ctx context.Context, email, code string, expiresAt time.Time) error
}

// ConsoleSender writes deliveries to the process log. Dev only.
type ConsoleSender struct{}

// SendOTP logs the delivery instead of mailing it.
func (ConsoleSender) SendOTP(ctx context.Context, email, code string, expiresAt time.Time) error {
	log.Printf("mail: OTP for %s: %s (expires %s)", email, code, expiresAt.UTC().Format(time.RFC3339))
	return nil
}
