package service

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"sync"
	"testing"
	"time"

	artifactdomain "gradevault/backend/internal/artifact/domain"
	coursedomain "gradevault/backend/internal/course/domain"
	endorsementdomain "gradevault/backend/internal/endorsement/domain"
	identitydomain "gradevault/backend/internal/identity/domain"
	"gradevault/backend/internal/security"
)

type memArtifactRepo struct {
	mu sync.Mutex
	m  map[string]*artifactdomain.Artifact
}

func newMemArtifactRepo() *memArtifactRepo {
	return &memArtifactRepo{m: map[string]*artifactdomain.Artifact{}}
}

func (r *memArtifactRepo) GetByID(ctx context.Context, id string) (*artifactdomain.Artifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.m[id], nil
}

func (r *memArtifactRepo) Create(ctx context.Context, a *artifactdomain.Artifact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[a.ID] = a
	return nil
}

func (r *memArtifactRepo) ListByOwner(ctx context.Context, ownerID string) ([]*artifactdomain.Artifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*artifactdomain.Artifact
	for _, a := range r.m {
		if a.OwnerID == ownerID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memArtifactRepo) ListByCourse(ctx context.Context, courseID string) ([]*artifactdomain.Artifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*artifactdomain.Artifact
	for _, a := range r.m {
		if a.CourseID == courseID {
			out = append(out, a)
		}
	}
	return out, nil
}

type memCourseRepo struct {
	m map[string]*coursedomain.Course
}

func (r *memCourseRepo) GetByID(ctx context.Context, id string) (*coursedomain.Course, error) {
	return r.m[id], nil
}

type memEndorsementRepo struct {
	mu sync.Mutex
	m  map[string]*endorsementdomain.Endorsement // keyed by artifact ID
}

func newMemEndorsementRepo() *memEndorsementRepo {
	return &memEndorsementRepo{m: map[string]*endorsementdomain.Endorsement{}}
}

func (r *memEndorsementRepo) GetByArtifact(ctx context.Context, artifactID string) (*endorsementdomain.Endorsement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.m[artifactID], nil
}

func (r *memEndorsementRepo) Create(ctx context.Context, e *endorsementdomain.Endorsement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[e.ArtifactID] = e
	return nil
}

type memUserRepo struct {
	m map[string]*identitydomain.User
}

func (r *memUserRepo) GetByID(ctx context.Context, id string) (*identitydomain.User, error) {
	return r.m[id], nil
}

type noopAuditor struct{}

func (noopAuditor) LogEvent(ctx context.Context, userID, action, resource, metadata string) {}

type fixture struct {
	svc     *ArtifactService
	users   *memUserRepo
	courses *memCourseRepo

	subject Actor
	grader  Actor
	admin   Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	pub, priv := security.TestKeyPairPEM()

	users := &memUserRepo{m: map[string]*identitydomain.User{
		"subject-1": {ID: "subject-1", Role: identitydomain.RoleSubject, PublicKeyPEM: pub},
		"grader-1":  {ID: "grader-1", Role: identitydomain.RoleGrader, PublicKeyPEM: pub, PrivateKeyPEM: priv},
		"admin-1":   {ID: "admin-1", Role: identitydomain.RoleAdmin, PublicKeyPEM: pub},
	}}
	courses := &memCourseRepo{m: map[string]*coursedomain.Course{
		"course-1": {ID: "course-1", Code: "CS101", Title: "Intro", GraderID: "grader-1", CreatedAt: time.Now().UTC()},
		"course-2": {ID: "course-2", Code: "CS102", Title: "No Grader", CreatedAt: time.Now().UTC()},
	}}

	svc := NewArtifactService(newMemArtifactRepo(), courses, newMemEndorsementRepo(), users, noopAuditor{})
	return &fixture{
		svc:     svc,
		users:   users,
		courses: courses,
		subject: Actor{ID: "subject-1", Role: identitydomain.RoleSubject},
		grader:  Actor{ID: "grader-1", Role: identitydomain.RoleGrader},
		admin:   Actor{ID: "admin-1", Role: identitydomain.RoleAdmin},
	}
}

func TestUpload_EncryptsForGrader(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	payload := []byte("submission body")

	artifact, err := f.svc.Upload(ctx, f.subject, "course-1", "hw1.pdf", payload)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if bytes.Contains(artifact.Ciphertext, payload) {
		t.Error("ciphertext must not contain the plaintext")
	}
	if artifact.PayloadHash != security.HashPayload(payload) {
		t.Error("payload hash must be taken over the plaintext")
	}
	if artifact.WrappedKey == "" {
		t.Error("wrapped key missing")
	}
}

func TestUpload_OnlySubjects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, actor := range []Actor{f.grader, f.admin} {
		if _, err := f.svc.Upload(ctx, actor, "course-1", "hw1.pdf", []byte("x")); !errors.Is(err, ErrPermissionDenied) {
			t.Errorf("role %s: err = %v, want ErrPermissionDenied", actor.Role, err)
		}
	}
}

func TestUpload_CourseWithoutGrader(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Upload(context.Background(), f.subject, "course-2", "hw1.pdf", []byte("x")); !errors.Is(err, ErrCourseHasNoGrader) {
		t.Errorf("err = %v, want ErrCourseHasNoGrader", err)
	}
}

func TestUpload_UnknownCourse(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Upload(context.Background(), f.subject, "missing", "hw1.pdf", []byte("x")); !errors.Is(err, ErrCourseNotFound) {
		t.Errorf("err = %v, want ErrCourseNotFound", err)
	}
}

func TestDownload_RoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	payload := make([]byte, 10<<20) // 10 MB
	if _, err := rand.Read(payload); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}

	artifact, err := f.svc.Upload(ctx, f.subject, "course-1", "big.bin", payload)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	plaintext, got, err := f.svc.Download(ctx, f.grader, artifact.ID)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if !bytes.Equal(plaintext, payload) {
		t.Error("decrypted payload differs from original")
	}
	if got.ID != artifact.ID {
		t.Errorf("artifact ID = %q, want %q", got.ID, artifact.ID)
	}
}

func TestDownload_WrongKeyFailsGenerically(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	artifact, err := f.svc.Upload(ctx, f.subject, "course-1", "hw1.pdf", []byte("secret"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	// Swap the grader's private key for a different identity's key.
	_, otherPriv := security.OtherTestKeyPairPEM()
	f.users.m["grader-1"].PrivateKeyPEM = otherPriv

	if _, _, err := f.svc.Download(ctx, f.grader, artifact.ID); !errors.Is(err, security.ErrDecryptFailed) {
		t.Errorf("err = %v, want ErrDecryptFailed", err)
	}
}

func TestDownload_SubjectDenied(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	artifact, err := f.svc.Upload(ctx, f.subject, "course-1", "hw1.pdf", []byte("x"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if _, _, err := f.svc.Download(ctx, f.subject, artifact.ID); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("err = %v, want ErrPermissionDenied", err)
	}
}

func TestDownload_GraderOfAnotherCourseDenied(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	artifact, err := f.svc.Upload(ctx, f.subject, "course-1", "hw1.pdf", []byte("x"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	other := Actor{ID: "grader-2", Role: identitydomain.RoleGrader}
	if _, _, err := f.svc.Download(ctx, other, artifact.ID); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("err = %v, want ErrPermissionDenied", err)
	}
}

func TestGrade_SignsPayloadHash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	artifact, err := f.svc.Upload(ctx, f.subject, "course-1", "hw1.pdf", []byte("submission"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	endorsement, err := f.svc.Grade(ctx, f.grader, artifact.ID, 88, "solid work")
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if endorsement.SignerID != "grader-1" || endorsement.Score != 88 {
		t.Errorf("endorsement = %+v", endorsement)
	}

	pub, _ := security.TestKeyPairPEM()
	if !security.VerifyDigest(artifact.PayloadHash, endorsement.Signature, pub) {
		t.Error("signature must verify under the grader's public key")
	}
	otherPub, _ := security.OtherTestKeyPairPEM()
	if security.VerifyDigest(artifact.PayloadHash, endorsement.Signature, otherPub) {
		t.Error("signature must not verify under a different public key")
	}
}

func TestGrade_OncePerArtifact(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	artifact, err := f.svc.Upload(ctx, f.subject, "course-1", "hw1.pdf", []byte("x"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if _, err := f.svc.Grade(ctx, f.grader, artifact.ID, 90, ""); err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if _, err := f.svc.Grade(ctx, f.grader, artifact.ID, 50, ""); !errors.Is(err, ErrAlreadyEndorsed) {
		t.Errorf("err = %v, want ErrAlreadyEndorsed", err)
	}
}

func TestGrade_RequiresAssignedGrader(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	artifact, err := f.svc.Upload(ctx, f.subject, "course-1", "hw1.pdf", []byte("x"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	other := Actor{ID: "grader-2", Role: identitydomain.RoleGrader}
	if _, err := f.svc.Grade(ctx, other, artifact.ID, 90, ""); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("err = %v, want ErrPermissionDenied", err)
	}
	if _, err := f.svc.Grade(ctx, f.admin, artifact.ID, 90, ""); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("admin err = %v, want ErrPermissionDenied", err)
	}
}

func TestGrade_MissingPrivateKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	artifact, err := f.svc.Upload(ctx, f.subject, "course-1", "hw1.pdf", []byte("x"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	f.users.m["grader-1"].PrivateKeyPEM = ""
	if _, err := f.svc.Grade(ctx, f.grader, artifact.ID, 90, ""); !errors.Is(err, ErrMissingPrivateKey) {
		t.Errorf("err = %v, want ErrMissingPrivateKey", err)
	}
}

func TestVerifyEndorsement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	artifact, err := f.svc.Upload(ctx, f.subject, "course-1", "hw1.pdf", []byte("graded content"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if _, err := f.svc.Grade(ctx, f.grader, artifact.ID, 95, ""); err != nil {
		t.Fatalf("Grade: %v", err)
	}

	ok, endorsement, err := f.svc.VerifyEndorsement(ctx, f.subject, artifact.ID)
	if err != nil {
		t.Fatalf("VerifyEndorsement: %v", err)
	}
	if !ok {
		t.Error("untampered endorsement must verify")
	}
	if endorsement == nil || endorsement.Score != 95 {
		t.Errorf("endorsement = %+v", endorsement)
	}
}

func TestVerifyEndorsement_TamperedSignature(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	artifact, err := f.svc.Upload(ctx, f.subject, "course-1", "hw1.pdf", []byte("content"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	endorsement, err := f.svc.Grade(ctx, f.grader, artifact.ID, 95, "")
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	endorsement.Signature = "AAAA" + endorsement.Signature[4:]

	ok, _, err := f.svc.VerifyEndorsement(ctx, f.subject, artifact.ID)
	if err != nil {
		t.Fatalf("VerifyEndorsement: %v", err)
	}
	if ok {
		t.Error("tampered signature must not verify")
	}
}

func TestVerifyEndorsement_NotGraded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	artifact, err := f.svc.Upload(ctx, f.subject, "course-1", "hw1.pdf", []byte("x"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if _, _, err := f.svc.VerifyEndorsement(ctx, f.subject, artifact.ID); !errors.Is(err, ErrNotEndorsed) {
		t.Errorf("err = %v, want ErrNotEndorsed", err)
	}
}

func TestVerifyEndorsement_SubjectOwnArtifactsOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	artifact, err := f.svc.Upload(ctx, f.subject, "course-1", "hw1.pdf", []byte("graded content"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if _, err := f.svc.Grade(ctx, f.grader, artifact.ID, 97, "secret feedback"); err != nil {
		t.Fatalf("Grade: %v", err)
	}

	f.users.m["subject-2"] = &identitydomain.User{ID: "subject-2", Role: identitydomain.RoleSubject}
	otherSubject := Actor{ID: "subject-2", Role: identitydomain.RoleSubject}

	_, endorsement, err := f.svc.VerifyEndorsement(ctx, otherSubject, artifact.ID)
	if !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("err = %v, want ErrPermissionDenied", err)
	}
	if endorsement != nil {
		t.Error("endorsement must not leak to another subject")
	}
}

func TestVerifyEndorsement_GraderScopedToOwnCourse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	artifact, err := f.svc.Upload(ctx, f.subject, "course-1", "hw1.pdf", []byte("graded content"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if _, err := f.svc.Grade(ctx, f.grader, artifact.ID, 90, ""); err != nil {
		t.Fatalf("Grade: %v", err)
	}

	f.users.m["grader-2"] = &identitydomain.User{ID: "grader-2", Role: identitydomain.RoleGrader}
	otherGrader := Actor{ID: "grader-2", Role: identitydomain.RoleGrader}

	if _, _, err := f.svc.VerifyEndorsement(ctx, otherGrader, artifact.ID); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("other grader: err = %v, want ErrPermissionDenied", err)
	}

	ok, _, err := f.svc.VerifyEndorsement(ctx, f.grader, artifact.ID)
	if err != nil {
		t.Fatalf("assigned grader: %v", err)
	}
	if !ok {
		t.Error("assigned grader must be able to verify")
	}

	ok, _, err = f.svc.VerifyEndorsement(ctx, f.admin, artifact.ID)
	if err != nil {
		t.Fatalf("admin: %v", err)
	}
	if !ok {
		t.Error("admin must be able to verify any artifact")
	}
}

func TestListOwn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Upload(ctx, f.subject, "course-1", "a.pdf", []byte("a")); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if _, err := f.svc.Upload(ctx, f.subject, "course-1", "b.pdf", []byte("b")); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	own, err := f.svc.ListOwn(ctx, f.subject)
	if err != nil {
		t.Fatalf("ListOwn: %v", err)
	}
	if len(own) != 2 {
		t.Errorf("len = %d, want 2", len(own))
	}
}

func TestListForCourse_GraderScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Upload(ctx, f.subject, "course-1", "a.pdf", []byte("a")); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	list, err := f.svc.ListForCourse(ctx, f.grader, "course-1")
	if err != nil {
		t.Fatalf("ListForCourse: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("len = %d, want 1", len(list))
	}

	other := Actor{ID: "grader-2", Role: identitydomain.RoleGrader}
	if _, err := f.svc.ListForCourse(ctx, other, "course-1"); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("err = %v, want ErrPermissionDenied", err)
	}
	if _, err := f.svc.ListForCourse(ctx, f.subject, "course-1"); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("subject err = %v, want ErrPermissionDenied", err)
	}

	// Admins may list any course.
	if _, err := f.svc.ListForCourse(ctx, f.admin, "course-1"); err != nil {
		t.Errorf("admin: %v", err)
	}
}
