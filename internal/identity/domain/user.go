package domain

import (
	"errors"
	"fmt"
	"time"
)

// Role is the closed set of roles a user can hold. The permission table in
// internal/permission is the single source of truth for what each role may
// do; roles carry no implicit ordering of trust.
type Role string

const (
	// RoleSubject uploads artifacts for grading.
	RoleSubject Role = "subject"
	// RoleGrader decrypts artifacts and signs grades; the only role that
	// holds a private key.
	RoleGrader Role = "grader"
	// RoleAdmin manages users and courses.
	RoleAdmin Role = "admin"
)

// ParseRole returns the Role for s, or an error if s is not one of the closed set.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleSubject, RoleGrader, RoleAdmin:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// User is the core identity entity. It exclusively owns its key material and
// MFA secret.
type User struct {
	ID           string
	Name         string
	Email        string
	Role         Role
	PasswordHash string
	// PublicKeyPEM is present for every user; artifacts are encrypted to it.
	PublicKeyPEM string
	// PrivateKeyPEM is present only for graders, who must decrypt and sign.
	PrivateKeyPEM string
	// TOTPSecret may exist before MFA is enabled (set during enrollment) and
	// becomes load-bearing only once MFAEnabled is true.
	TOTPSecret string
	MFAEnabled bool
	CreatedAt  time.Time
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.Name == "" {
		return errors.New("name is required")
	}
	if _, err := ParseRole(string(u.Role)); err != nil {
		return err
	}
	if u.PublicKeyPEM == "" {
		return errors.New("public key is required")
	}
	if u.Role != RoleGrader && u.PrivateKeyPEM != "" {
		return errors.New("only graders hold a private key")
	}
	return nil
}

// CanSign reports whether the user holds the private key needed to sign.
func (u *User) CanSign() bool {
	return u.Role == RoleGrader && u.PrivateKeyPEM != ""
}
