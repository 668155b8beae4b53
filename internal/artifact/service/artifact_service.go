package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	artifactdomain "gradevault/backend/internal/artifact/domain"
	"gradevault/backend/internal/audit"
	coursedomain "gradevault/backend/internal/course/domain"
	endorsementdomain "gradevault/backend/internal/endorsement/domain"
	identitydomain "gradevault/backend/internal/identity/domain"
	"gradevault/backend/internal/permission"
	"gradevault/backend/internal/security"
)

// Sentinel errors for artifact service; handler maps them to gRPC codes.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrCourseNotFound    = errors.New("course not found")
	ErrCourseHasNoGrader = errors.New("course has no grader assigned")
	ErrArtifactNotFound  = errors.New("artifact not found")
	ErrNotEndorsed       = errors.New("artifact has not been graded")
	ErrAlreadyEndorsed   = errors.New("artifact already graded")
	ErrMissingPrivateKey = errors.New("signer holds no private key")
)

// Actor is the authenticated caller, as established by the auth interceptor.
type Actor struct {
	ID   string
	Role identitydomain.Role
}

// ArtifactRepo is the minimal artifact repository needed by the artifact service.
type ArtifactRepo interface {
	GetByID(ctx context.Context, id string) (*artifactdomain.Artifact, error)
	Create(ctx context.Context, a *artifactdomain.Artifact) error
	ListByOwner(ctx context.Context, ownerID string) ([]*artifactdomain.Artifact, error)
	ListByCourse(ctx context.Context, courseID string) ([]*artifactdomain.Artifact, error)
}

// CourseRepo is the minimal course repository needed by the artifact service.
type CourseRepo interface {
	GetByID(ctx context.Context, id string) (*coursedomain.Course, error)
}

// EndorsementRepo is the minimal endorsement repository needed by the artifact service.
type EndorsementRepo interface {
	GetByArtifact(ctx context.Context, artifactID string) (*endorsementdomain.Endorsement, error)
	Create(ctx context.Context, e *endorsementdomain.Endorsement) error
}

// UserRepo is the minimal user repository needed by the artifact service.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*identitydomain.User, error)
}

// ArtifactService implements the encrypted upload, download, grading, and
// verification flows. Plaintext never touches storage: uploads are encrypted
// to the course grader's public key before the artifact row is written, and
// grading signatures are produced before the endorsement row is written.
type ArtifactService struct {
	artifacts    ArtifactRepo
	courses      CourseRepo
	endorsements EndorsementRepo
	users        UserRepo
	auditor      audit.AuditLogger
}

// NewArtifactService returns an ArtifactService with the given dependencies.
func NewArtifactService(
	artifacts ArtifactRepo,
	courses CourseRepo,
	endorsements EndorsementRepo,
	users UserRepo,
	auditor audit.AuditLogger,
) *ArtifactService {
	return &ArtifactService{
		artifacts:    artifacts,
		courses:      courses,
		endorsements: endorsements,
		users:        users,
		auditor:      auditor,
	}
}

// Upload encrypts payload for the course's grader and stores the resulting
// artifact. The plaintext hash is taken before encryption so later grading
// signatures commit to the original content.
func (s *ArtifactService) Upload(ctx context.Context, actor Actor, courseID, filename string, payload []byte) (*artifactdomain.Artifact, error) {
	if !permission.Check(actor.Role, permission.ActionArtifactUpload) {
		return nil, ErrPermissionDenied
	}
	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if course == nil {
		return nil, ErrCourseNotFound
	}
	if !course.HasGrader() {
		return nil, ErrCourseHasNoGrader
	}
	grader, err := s.users.GetByID(ctx, course.GraderID)
	if err != nil {
		return nil, err
	}
	if grader == nil || grader.PublicKeyPEM == "" {
		return nil, ErrCourseHasNoGrader
	}
	payloadHash := security.HashPayload(payload)
	ciphertext, wrappedKey, err := security.EncryptPayload(payload, grader.PublicKeyPEM)
	if err != nil {
		return nil, err
	}
	artifact := &artifactdomain.Artifact{
		ID:          uuid.New().String(),
		CourseID:    course.ID,
		OwnerID:     actor.ID,
		Filename:    filename,
		Ciphertext:  ciphertext,
		WrappedKey:  wrappedKey,
		PayloadHash: payloadHash,
		CreatedAt:   time.Now().UTC(),
	}
	if err := artifact.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.artifacts.Create(ctx, artifact); err != nil {
		return nil, err
	}
	s.auditor.LogEvent(ctx, actor.ID, "upload", "artifact", `{"artifact_id":"`+artifact.ID+`"}`)
	return artifact, nil
}

// ListOwn returns the caller's own artifacts.
func (s *ArtifactService) ListOwn(ctx context.Context, actor Actor) ([]*artifactdomain.Artifact, error) {
	if !permission.Check(actor.Role, permission.ActionArtifactReadOwn) {
		return nil, ErrPermissionDenied
	}
	return s.artifacts.ListByOwner(ctx, actor.ID)
}

// ListForCourse returns a course's artifacts. Graders see only courses
// assigned to them; administrators see any course.
func (s *ArtifactService) ListForCourse(ctx context.Context, actor Actor, courseID string) ([]*artifactdomain.Artifact, error) {
	if !permission.Check(actor.Role, permission.ActionArtifactReadOthers) {
		return nil, ErrPermissionDenied
	}
	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if course == nil {
		return nil, ErrCourseNotFound
	}
	if actor.Role == identitydomain.RoleGrader && course.GraderID != actor.ID {
		return nil, ErrPermissionDenied
	}
	return s.artifacts.ListByCourse(ctx, courseID)
}

// Download decrypts the artifact with the course grader's private key and
// returns the plaintext. A grader may only download from their own courses;
// administrators may download from any course, via the stored grader key.
func (s *ArtifactService) Download(ctx context.Context, actor Actor, artifactID string) ([]byte, *artifactdomain.Artifact, error) {
	if !permission.Check(actor.Role, permission.ActionArtifactDownload) {
		return nil, nil, ErrPermissionDenied
	}
	artifact, err := s.artifacts.GetByID(ctx, artifactID)
	if err != nil {
		return nil, nil, err
	}
	if artifact == nil {
		return nil, nil, ErrArtifactNotFound
	}
	course, err := s.courses.GetByID(ctx, artifact.CourseID)
	if err != nil {
		return nil, nil, err
	}
	if course == nil || !course.HasGrader() {
		return nil, nil, ErrCourseHasNoGrader
	}
	if actor.Role == identitydomain.RoleGrader && course.GraderID != actor.ID {
		return nil, nil, ErrPermissionDenied
	}
	grader, err := s.users.GetByID(ctx, course.GraderID)
	if err != nil {
		return nil, nil, err
	}
	if grader == nil || grader.PrivateKeyPEM == "" {
		return nil, nil, ErrMissingPrivateKey
	}
	plaintext, err := security.DecryptPayload(artifact.Ciphertext, artifact.WrappedKey, grader.PrivateKeyPEM)
	if err != nil {
		return nil, nil, err
	}
	s.auditor.LogEvent(ctx, actor.ID, "download", "artifact", `{"artifact_id":"`+artifact.ID+`"}`)
	return plaintext, artifact, nil
}

// Grade signs the artifact's payload hash with the grader's private key and
// stores the endorsement. Each artifact can be endorsed once; the row is
// written only after signing succeeds.
func (s *ArtifactService) Grade(ctx context.Context, actor Actor, artifactID string, score int32, remarks string) (*endorsementdomain.Endorsement, error) {
	if !permission.Check(actor.Role, permission.ActionArtifactGrade) {
		return nil, ErrPermissionDenied
	}
	artifact, err := s.artifacts.GetByID(ctx, artifactID)
	if err != nil {
		return nil, err
	}
	if artifact == nil {
		return nil, ErrArtifactNotFound
	}
	course, err := s.courses.GetByID(ctx, artifact.CourseID)
	if err != nil {
		return nil, err
	}
	if course == nil || course.GraderID != actor.ID {
		return nil, ErrPermissionDenied
	}
	existing, err := s.endorsements.GetByArtifact(ctx, artifactID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlreadyEndorsed
	}
	signer, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if signer == nil || signer.PrivateKeyPEM == "" {
		return nil, ErrMissingPrivateKey
	}
	signature, err := security.SignDigest(artifact.PayloadHash, signer.PrivateKeyPEM)
	if err != nil {
		return nil, err
	}
	endorsement := &endorsementdomain.Endorsement{
		ID:         uuid.New().String(),
		ArtifactID: artifact.ID,
		SignerID:   actor.ID,
		Score:      score,
		Remarks:    remarks,
		Signature:  signature,
		CreatedAt:  time.Now().UTC(),
	}
	if err := endorsement.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.endorsements.Create(ctx, endorsement); err != nil {
		return nil, err
	}
	s.auditor.LogEvent(ctx, actor.ID, "grade", "artifact", `{"artifact_id":"`+artifact.ID+`"}`)
	return endorsement, nil
}

// VerifyEndorsement re-checks the grading signature against the signer's
// public key. Subjects may only verify their own artifacts and graders only
// artifacts in courses assigned to them; administrators may verify any.
// Any signature-level failure reports false rather than a cause.
func (s *ArtifactService) VerifyEndorsement(ctx context.Context, actor Actor, artifactID string) (bool, *endorsementdomain.Endorsement, error) {
	if !permission.Check(actor.Role, permission.ActionArtifactReadOwn) {
		return false, nil, ErrPermissionDenied
	}
	artifact, err := s.artifacts.GetByID(ctx, artifactID)
	if err != nil {
		return false, nil, err
	}
	if artifact == nil {
		return false, nil, ErrArtifactNotFound
	}
	switch actor.Role {
	case identitydomain.RoleSubject:
		if artifact.OwnerID != actor.ID {
			return false, nil, ErrPermissionDenied
		}
	case identitydomain.RoleGrader:
		course, err := s.courses.GetByID(ctx, artifact.CourseID)
		if err != nil {
			return false, nil, err
		}
		if course == nil || course.GraderID != actor.ID {
			return false, nil, ErrPermissionDenied
		}
	}
	endorsement, err := s.endorsements.GetByArtifact(ctx, artifactID)
	if err != nil {
		return false, nil, err
	}
	if endorsement == nil {
		return false, nil, ErrNotEndorsed
	}
	signer, err := s.users.GetByID(ctx, endorsement.SignerID)
	if err != nil {
		return false, nil, err
	}
	if signer == nil || signer.PublicKeyPEM == "" {
		return false, endorsement, nil
	}
	ok := security.VerifyDigest(artifact.PayloadHash, endorsement.Signature, signer.PublicKeyPEM)
	return ok, endorsement, nil
}
