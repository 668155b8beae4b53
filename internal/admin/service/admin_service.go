package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"gradevault/backend/internal/audit"
	coursedomain "gradevault/backend/internal/course/domain"
	identitydomain "gradevault/backend/internal/identity/domain"
	"gradevault/backend/internal/permission"
	"gradevault/backend/internal/security"
)

// Sentinel errors for admin service; handler maps them to gRPC codes.
var (
	ErrInvalidInput           = errors.New("invalid input")
	ErrPermissionDenied       = errors.New("permission denied")
	ErrUserNotFound           = errors.New("user not found")
	ErrCourseNotFound         = errors.New("course not found")
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrCourseCodeTaken        = errors.New("course code already in use")
	ErrNotAGrader             = errors.New("user is not a grader")
)

// Actor is the authenticated caller.
type Actor struct {
	ID   string
	Role identitydomain.Role
}

// UserRepo is the minimal user repository needed by the admin service.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*identitydomain.User, error)
	GetByEmail(ctx context.Context, email string) (*identitydomain.User, error)
	Create(ctx context.Context, u *identitydomain.User) error
	List(ctx context.Context) ([]*identitydomain.User, error)
	UpdateRole(ctx context.Context, id string, role identitydomain.Role, publicKeyPEM, privateKeyPEM string) error
	Delete(ctx context.Context, id string) error
}

// CourseRepo is the minimal course repository needed by the admin service.
type CourseRepo interface {
	GetByID(ctx context.Context, id string) (*coursedomain.Course, error)
	GetByCode(ctx context.Context, code string) (*coursedomain.Course, error)
	Create(ctx context.Context, c *coursedomain.Course) error
	List(ctx context.Context) ([]*coursedomain.Course, error)
	AssignGrader(ctx context.Context, id, graderID string) error
}

// PasswordHasher hashes initial passwords for admin-created accounts.
type PasswordHasher interface {
	Hash(password []byte) (string, error)
}

// AdminService implements user and course administration. Every method
// checks the caller's role before touching state.
type AdminService struct {
	users   UserRepo
	courses CourseRepo
	hasher  PasswordHasher
	auditor audit.AuditLogger
}

// NewAdminService returns an AdminService with the given dependencies.
func NewAdminService(users UserRepo, courses CourseRepo, hasher PasswordHasher, auditor audit.AuditLogger) *AdminService {
	return &AdminService{users: users, courses: courses, hasher: hasher, auditor: auditor}
}

// CreateUser provisions an account with a fresh key pair. Graders keep the
// private half; everyone else holds the public key alone.
func (s *AdminService) CreateUser(ctx context.Context, actor Actor, name, email, password string, role identitydomain.Role) (*identitydomain.User, error) {
	if !permission.Check(actor.Role, permission.ActionUserCreate) {
		return nil, ErrPermissionDenied
	}
	email = strings.TrimSpace(strings.ToLower(email))
	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailAlreadyRegistered
	}
	hashed, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return nil, err
	}
	publicPEM, privatePEM, err := security.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	if role != identitydomain.RoleGrader {
		privatePEM = ""
	}
	user := &identitydomain.User{
		ID:            uuid.New().String(),
		Name:          strings.TrimSpace(name),
		Email:         email,
		Role:          role,
		PasswordHash:  hashed,
		PublicKeyPEM:  publicPEM,
		PrivateKeyPEM: privatePEM,
		CreatedAt:     time.Now().UTC(),
	}
	if err := user.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	s.auditor.LogEvent(ctx, actor.ID, "create", "user", `{"user_id":"`+user.ID+`"}`)
	return user, nil
}

// ListUsers returns all accounts.
func (s *AdminService) ListUsers(ctx context.Context, actor Actor) ([]*identitydomain.User, error) {
	if !permission.Check(actor.Role, permission.ActionUserRead) {
		return nil, ErrPermissionDenied
	}
	return s.users.List(ctx)
}

// UpdateUserRole changes a user's role. Promoting to grader generates a fresh
// key pair so the user gains signing ability; leaving the grader role drops
// the private key while the public key stays, keeping old signatures
// verifiable.
func (s *AdminService) UpdateUserRole(ctx context.Context, actor Actor, userID string, role identitydomain.Role) (*identitydomain.User, error) {
	if !permission.Check(actor.Role, permission.ActionUserUpdate) {
		return nil, ErrPermissionDenied
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if user.Role == role {
		return user, nil
	}
	publicPEM := user.PublicKeyPEM
	privatePEM := user.PrivateKeyPEM
	switch {
	case role == identitydomain.RoleGrader:
		publicPEM, privatePEM, err = security.GenerateKeyPair()
		if err != nil {
			return nil, err
		}
	default:
		privatePEM = ""
	}
	if err := s.users.UpdateRole(ctx, userID, role, publicPEM, privatePEM); err != nil {
		return nil, err
	}
	user.Role = role
	user.PublicKeyPEM = publicPEM
	user.PrivateKeyPEM = privatePEM
	s.auditor.LogEvent(ctx, actor.ID, "update", "user", `{"user_id":"`+userID+`","role":"`+string(role)+`"}`)
	return user, nil
}

// DeleteUser removes an account.
func (s *AdminService) DeleteUser(ctx context.Context, actor Actor, userID string) error {
	if !permission.Check(actor.Role, permission.ActionUserDelete) {
		return ErrPermissionDenied
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	if err := s.users.Delete(ctx, userID); err != nil {
		return err
	}
	s.auditor.LogEvent(ctx, actor.ID, "delete", "user", `{"user_id":"`+userID+`"}`)
	return nil
}

// CreateCourse adds a course, optionally with a grader already assigned.
func (s *AdminService) CreateCourse(ctx context.Context, actor Actor, code, title, graderID string) (*coursedomain.Course, error) {
	if !permission.Check(actor.Role, permission.ActionCourseCreate) {
		return nil, ErrPermissionDenied
	}
	code = strings.TrimSpace(strings.ToUpper(code))
	existing, err := s.courses.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrCourseCodeTaken
	}
	if graderID != "" {
		if err := s.requireGrader(ctx, graderID); err != nil {
			return nil, err
		}
	}
	course := &coursedomain.Course{
		ID:        uuid.New().String(),
		Code:      code,
		Title:     strings.TrimSpace(title),
		GraderID:  graderID,
		CreatedAt: time.Now().UTC(),
	}
	if err := course.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.courses.Create(ctx, course); err != nil {
		return nil, err
	}
	s.auditor.LogEvent(ctx, actor.ID, "create", "course", `{"course_id":"`+course.ID+`"}`)
	return course, nil
}

// AssignGrader sets the course's grader. The user must hold the grader role.
func (s *AdminService) AssignGrader(ctx context.Context, actor Actor, courseID, graderID string) error {
	if !permission.Check(actor.Role, permission.ActionCourseAssignGrader) {
		return ErrPermissionDenied
	}
	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		return err
	}
	if course == nil {
		return ErrCourseNotFound
	}
	if err := s.requireGrader(ctx, graderID); err != nil {
		return err
	}
	if err := s.courses.AssignGrader(ctx, courseID, graderID); err != nil {
		return err
	}
	s.auditor.LogEvent(ctx, actor.ID, "grader_assigned", "course", `{"course_id":"`+courseID+`","grader_id":"`+graderID+`"}`)
	return nil
}

// ListCourses returns all courses. Open to every role.
func (s *AdminService) ListCourses(ctx context.Context, actor Actor) ([]*coursedomain.Course, error) {
	if !permission.Check(actor.Role, permission.ActionCourseRead) {
		return nil, ErrPermissionDenied
	}
	return s.courses.List(ctx)
}

func (s *AdminService) requireGrader(ctx context.Context, userID string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	if user.Role != identitydomain.RoleGrader {
		return ErrNotAGrader
	}
	return nil
}
