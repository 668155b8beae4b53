package domain

import (
	"errors"
	"time"
)

// Artifact is an encrypted submission. Ciphertext is the IV-prefixed CBC
// payload, WrappedKey the RSA-OAEP-wrapped symmetric key (base64) that only
// the course grader can unwrap, and PayloadHash the hex SHA-256 of the
// plaintext taken before encryption.
type Artifact struct {
	ID          string
	CourseID    string
	OwnerID     string
	Filename    string
	Ciphertext  []byte
	WrappedKey  string
	PayloadHash string
	CreatedAt   time.Time
}

// Validate checks required fields.
func (a *Artifact) Validate() error {
	if a.ID == "" {
		return errors.New("artifact id is required")
	}
	if a.CourseID == "" {
		return errors.New("course id is required")
	}
	if a.OwnerID == "" {
		return errors.New("owner id is required")
	}
	if a.Filename == "" {
		return errors.New("filename is required")
	}
	if len(a.Ciphertext) == 0 {
		return errors.New("ciphertext is required")
	}
	if a.WrappedKey == "" {
		return errors.New("wrapped key is required")
	}
	if len(a.PayloadHash) != 64 {
		return errors.New("payload hash must be a hex SHA-256 digest")
	}
	return nil
}
