package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	coursedomain "gradevault/backend/internal/course/domain"
	identitydomain "gradevault/backend/internal/identity/domain"
	"gradevault/backend/internal/security"
)

type memUserRepo struct {
	mu      sync.Mutex
	byID    map[string]*identitydomain.User
	byEmail map[string]*identitydomain.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{byID: map[string]*identitydomain.User{}, byEmail: map[string]*identitydomain.User{}}
}

func (r *memUserRepo) GetByID(ctx context.Context, id string) (*identitydomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byID[id], nil
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (*identitydomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byEmail[email], nil
}

func (r *memUserRepo) Create(ctx context.Context, u *identitydomain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[u.ID] = u
	r.byEmail[u.Email] = u
	return nil
}

func (r *memUserRepo) List(ctx context.Context) ([]*identitydomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*identitydomain.User
	for _, u := range r.byID {
		out = append(out, u)
	}
	return out, nil
}

func (r *memUserRepo) UpdateRole(ctx context.Context, id string, role identitydomain.Role, publicKeyPEM, privateKeyPEM string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byID[id]; ok {
		u.Role = role
		u.PublicKeyPEM = publicKeyPEM
		u.PrivateKeyPEM = privateKeyPEM
	}
	return nil
}

func (r *memUserRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byID[id]; ok {
		delete(r.byEmail, u.Email)
		delete(r.byID, id)
	}
	return nil
}

type memCourseRepo struct {
	mu     sync.Mutex
	byID   map[string]*coursedomain.Course
	byCode map[string]*coursedomain.Course
}

func newMemCourseRepo() *memCourseRepo {
	return &memCourseRepo{byID: map[string]*coursedomain.Course{}, byCode: map[string]*coursedomain.Course{}}
}

func (r *memCourseRepo) GetByID(ctx context.Context, id string) (*coursedomain.Course, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byID[id], nil
}

func (r *memCourseRepo) GetByCode(ctx context.Context, code string) (*coursedomain.Course, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byCode[code], nil
}

func (r *memCourseRepo) Create(ctx context.Context, c *coursedomain.Course) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[c.ID] = c
	r.byCode[c.Code] = c
	return nil
}

func (r *memCourseRepo) List(ctx context.Context) ([]*coursedomain.Course, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*coursedomain.Course
	for _, c := range r.byID {
		out = append(out, c)
	}
	return out, nil
}

func (r *memCourseRepo) AssignGrader(ctx context.Context, id, graderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.byID[id]; ok {
		c.GraderID = graderID
	}
	return nil
}

type noopAuditor struct{}

func (noopAuditor) LogEvent(ctx context.Context, userID, action, resource, metadata string) {}

var (
	adminActor   = Actor{ID: "admin-1", Role: identitydomain.RoleAdmin}
	graderActor  = Actor{ID: "grader-1", Role: identitydomain.RoleGrader}
	subjectActor = Actor{ID: "subject-1", Role: identitydomain.RoleSubject}
)

func newTestAdminService() (*AdminService, *memUserRepo, *memCourseRepo) {
	users := newMemUserRepo()
	courses := newMemCourseRepo()
	svc := NewAdminService(users, courses, security.NewHasher(), noopAuditor{})
	return svc, users, courses
}

func seedGrader(t *testing.T, users *memUserRepo, id string) {
	t.Helper()
	pub, priv := security.TestKeyPairPEM()
	err := users.Create(context.Background(), &identitydomain.User{
		ID: id, Name: "Grader", Email: id + "@example.com", Role: identitydomain.RoleGrader,
		PasswordHash: "x", PublicKeyPEM: pub, PrivateKeyPEM: priv, CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed grader: %v", err)
	}
}

func TestCreateUser_RoleKeyPolicy(t *testing.T) {
	svc, _, _ := newTestAdminService()
	ctx := context.Background()

	grader, err := svc.CreateUser(ctx, adminActor, "G", "g@example.com", "Pass!Word123", identitydomain.RoleGrader)
	if err != nil {
		t.Fatalf("CreateUser grader: %v", err)
	}
	if !strings.Contains(grader.PrivateKeyPEM, "PRIVATE KEY") {
		t.Error("grader must hold a private key")
	}

	subject, err := svc.CreateUser(ctx, adminActor, "S", "s@example.com", "Pass!Word123", identitydomain.RoleSubject)
	if err != nil {
		t.Fatalf("CreateUser subject: %v", err)
	}
	if subject.PrivateKeyPEM != "" {
		t.Error("subject must not hold a private key")
	}
	if subject.PublicKeyPEM == "" {
		t.Error("subject must hold a public key")
	}
	if subject.PasswordHash == "Pass!Word123" {
		t.Error("password must be stored hashed")
	}
}

func TestCreateUser_AdminOnly(t *testing.T) {
	svc, _, _ := newTestAdminService()
	ctx := context.Background()

	for _, actor := range []Actor{graderActor, subjectActor} {
		_, err := svc.CreateUser(ctx, actor, "X", "x@example.com", "Pass!Word123", identitydomain.RoleSubject)
		if !errors.Is(err, ErrPermissionDenied) {
			t.Errorf("role %s: err = %v, want ErrPermissionDenied", actor.Role, err)
		}
	}
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	svc, _, _ := newTestAdminService()
	ctx := context.Background()

	if _, err := svc.CreateUser(ctx, adminActor, "A", "a@example.com", "Pass!Word123", identitydomain.RoleSubject); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := svc.CreateUser(ctx, adminActor, "B", "a@example.com", "Pass!Word123", identitydomain.RoleSubject); !errors.Is(err, ErrEmailAlreadyRegistered) {
		t.Errorf("err = %v, want ErrEmailAlreadyRegistered", err)
	}
}

func TestUpdateUserRole_PromoteGrantsPrivateKey(t *testing.T) {
	svc, users, _ := newTestAdminService()
	ctx := context.Background()

	u, err := svc.CreateUser(ctx, adminActor, "S", "s@example.com", "Pass!Word123", identitydomain.RoleSubject)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	oldPub := u.PublicKeyPEM

	updated, err := svc.UpdateUserRole(ctx, adminActor, u.ID, identitydomain.RoleGrader)
	if err != nil {
		t.Fatalf("UpdateUserRole: %v", err)
	}
	if updated.Role != identitydomain.RoleGrader {
		t.Errorf("Role = %q", updated.Role)
	}
	if !strings.Contains(updated.PrivateKeyPEM, "PRIVATE KEY") {
		t.Error("promotion to grader must grant a private key")
	}
	if updated.PublicKeyPEM == oldPub {
		t.Error("promotion must mint a fresh key pair")
	}
	if got := users.byID[u.ID]; got.PrivateKeyPEM != updated.PrivateKeyPEM {
		t.Error("repository not updated")
	}
}

func TestUpdateUserRole_DemoteRevokesPrivateKeyKeepsPublic(t *testing.T) {
	svc, _, _ := newTestAdminService()
	ctx := context.Background()

	u, err := svc.CreateUser(ctx, adminActor, "G", "g@example.com", "Pass!Word123", identitydomain.RoleGrader)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	oldPub := u.PublicKeyPEM

	updated, err := svc.UpdateUserRole(ctx, adminActor, u.ID, identitydomain.RoleSubject)
	if err != nil {
		t.Fatalf("UpdateUserRole: %v", err)
	}
	if updated.PrivateKeyPEM != "" {
		t.Error("demotion must drop the private key")
	}
	if updated.PublicKeyPEM != oldPub {
		t.Error("public key must survive demotion so old signatures stay verifiable")
	}
}

func TestDeleteUser(t *testing.T) {
	svc, users, _ := newTestAdminService()
	ctx := context.Background()

	u, err := svc.CreateUser(ctx, adminActor, "S", "s@example.com", "Pass!Word123", identitydomain.RoleSubject)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := svc.DeleteUser(ctx, adminActor, u.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if users.byID[u.ID] != nil {
		t.Error("user not deleted")
	}
	if err := svc.DeleteUser(ctx, adminActor, u.ID); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("err = %v, want ErrUserNotFound", err)
	}
}

func TestCreateCourse(t *testing.T) {
	svc, users, _ := newTestAdminService()
	ctx := context.Background()
	seedGrader(t, users, "grader-1")

	course, err := svc.CreateCourse(ctx, adminActor, "cs101", "Intro", "grader-1")
	if err != nil {
		t.Fatalf("CreateCourse: %v", err)
	}
	if course.Code != "CS101" {
		t.Errorf("Code = %q, want CS101", course.Code)
	}
	if course.GraderID != "grader-1" {
		t.Errorf("GraderID = %q", course.GraderID)
	}

	if _, err := svc.CreateCourse(ctx, adminActor, "CS101", "Dup", ""); !errors.Is(err, ErrCourseCodeTaken) {
		t.Errorf("err = %v, want ErrCourseCodeTaken", err)
	}
}

func TestCreateCourse_GraderMustHoldGraderRole(t *testing.T) {
	svc, _, _ := newTestAdminService()
	ctx := context.Background()

	u, err := svc.CreateUser(ctx, adminActor, "S", "s@example.com", "Pass!Word123", identitydomain.RoleSubject)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := svc.CreateCourse(ctx, adminActor, "CS101", "Intro", u.ID); !errors.Is(err, ErrNotAGrader) {
		t.Errorf("err = %v, want ErrNotAGrader", err)
	}
}

func TestAssignGrader(t *testing.T) {
	svc, users, courses := newTestAdminService()
	ctx := context.Background()
	seedGrader(t, users, "grader-1")

	course, err := svc.CreateCourse(ctx, adminActor, "CS101", "Intro", "")
	if err != nil {
		t.Fatalf("CreateCourse: %v", err)
	}
	if err := svc.AssignGrader(ctx, adminActor, course.ID, "grader-1"); err != nil {
		t.Fatalf("AssignGrader: %v", err)
	}
	if courses.byID[course.ID].GraderID != "grader-1" {
		t.Error("grader not assigned")
	}

	if err := svc.AssignGrader(ctx, graderActor, course.ID, "grader-1"); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("err = %v, want ErrPermissionDenied", err)
	}
	if err := svc.AssignGrader(ctx, adminActor, "missing", "grader-1"); !errors.Is(err, ErrCourseNotFound) {
		t.Errorf("err = %v, want ErrCourseNotFound", err)
	}
}

func TestListCourses_OpenToAllRoles(t *testing.T) {
	svc, _, _ := newTestAdminService()
	ctx := context.Background()

	if _, err := svc.CreateCourse(ctx, adminActor, "CS101", "Intro", ""); err != nil {
		t.Fatalf("CreateCourse: %v", err)
	}
	for _, actor := range []Actor{adminActor, graderActor, subjectActor} {
		list, err := svc.ListCourses(ctx, actor)
		if err != nil {
			t.Fatalf("ListCourses as %s: %v", actor.Role, err)
		}
		if len(list) != 1 {
			t.Errorf("len = %d, want 1", len(list))
		}
	}
}

func TestListUsers_AdminOnly(t *testing.T) {
	svc, _, _ := newTestAdminService()
	ctx := context.Background()

	if _, err := svc.ListUsers(ctx, graderActor); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("err = %v, want ErrPermissionDenied", err)
	}
	if _, err := svc.ListUsers(ctx, adminActor); err != nil {
		t.Errorf("admin: %v", err)
	}
}
