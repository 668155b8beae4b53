package domain

import (
	"errors"
	"time"
)

// Endorsement is a grader's signed verdict on an artifact. Signature is the
// base64 RSA-PSS signature over the artifact's payload hash; it binds the
// verdict to both the artifact content and the signing grader.
type Endorsement struct {
	ID         string
	ArtifactID string
	SignerID   string
	Score      int32
	Remarks    string
	Signature  string
	CreatedAt  time.Time
}

// Validate checks required fields.
func (e *Endorsement) Validate() error {
	if e.ID == "" {
		return errors.New("endorsement id is required")
	}
	if e.ArtifactID == "" {
		return errors.New("artifact id is required")
	}
	if e.SignerID == "" {
		return errors.New("signer id is required")
	}
	if e.Signature == "" {
		return errors.New("signature is required")
	}
	if e.Score < 0 || e.Score > 100 {
		return errors.New("score must be between 0 and 100")
	}
	return nil
}
