// Package handler exposes the admin service as the
// gradevault.admin.v1.AdminService and gradevault.course.v1.CourseService
// JSON APIs. User and course administration is admin-only except course
// listing, which every authenticated role may call.
package handler

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"gradevault/backend/internal/admin/service"
	coursedomain "gradevault/backend/internal/course/domain"
	identitydomain "gradevault/backend/internal/identity/domain"
	"gradevault/backend/internal/server/interceptors"
	"gradevault/backend/internal/server/jsonapi"
)

// Full gRPC service names of the administration APIs.
const (
	AdminServiceName  = "gradevault.admin.v1.AdminService"
	CourseServiceName = "gradevault.course.v1.CourseService"
)

// AdminServer wires AdminService and CourseService RPCs to the admin service.
type AdminServer struct {
	svc *service.AdminService
}

func NewAdminServer(svc *service.AdminService) *AdminServer {
	return &AdminServer{svc: svc}
}

// Register registers both administration APIs on s.
func (h *AdminServer) Register(s grpc.ServiceRegistrar) {
	s.RegisterService(&grpc.ServiceDesc{
		ServiceName: AdminServiceName,
		HandlerType: jsonapi.HandlerType,
		Methods: []grpc.MethodDesc{
			jsonapi.Method(AdminServiceName, "CreateUser", h.createUser),
			jsonapi.Method(AdminServiceName, "ListUsers", h.listUsers),
			jsonapi.Method(AdminServiceName, "UpdateUserRole", h.updateUserRole),
			jsonapi.Method(AdminServiceName, "DeleteUser", h.deleteUser),
		},
	}, h)
	s.RegisterService(&grpc.ServiceDesc{
		ServiceName: CourseServiceName,
		HandlerType: jsonapi.HandlerType,
		Methods: []grpc.MethodDesc{
			jsonapi.Method(CourseServiceName, "CreateCourse", h.createCourse),
			jsonapi.Method(CourseServiceName, "AssignGrader", h.assignGrader),
			jsonapi.Method(CourseServiceName, "ListCourses", h.listCourses),
		},
	}, h)
}

// User is the API view of an account. Password hashes, key material, and
// authenticator secrets never leave the server.
type User struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	MFAEnabled bool   `json:"mfa_enabled"`
	CreatedAt  string `json:"created_at"`
}

type Course struct {
	ID        string `json:"id"`
	Code      string `json:"code"`
	Title     string `json:"title"`
	GraderID  string `json:"grader_id,omitempty"`
	CreatedAt string `json:"created_at"`
}

type CreateUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type ListUsersRequest struct{}

type ListUsersResponse struct {
	Users []User `json:"users"`
}

type UpdateUserRoleRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

type DeleteUserRequest struct {
	UserID string `json:"user_id"`
}

type DeleteUserResponse struct{}

type CreateCourseRequest struct {
	Code     string `json:"code"`
	Title    string `json:"title"`
	GraderID string `json:"grader_id,omitempty"`
}

type AssignGraderRequest struct {
	CourseID string `json:"course_id"`
	GraderID string `json:"grader_id"`
}

type AssignGraderResponse struct{}

type ListCoursesRequest struct{}

type ListCoursesResponse struct {
	Courses []Course `json:"courses"`
}

func (h *AdminServer) createUser(ctx context.Context, req *CreateUserRequest) (*User, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	u, err := h.svc.CreateUser(ctx, actor, req.Name, req.Email, req.Password, identitydomain.Role(req.Role))
	if err != nil {
		return nil, mapAdminError(err)
	}
	out := toUser(u)
	return &out, nil
}

func (h *AdminServer) listUsers(ctx context.Context, _ *ListUsersRequest) (*ListUsersResponse, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	list, err := h.svc.ListUsers(ctx, actor)
	if err != nil {
		return nil, mapAdminError(err)
	}
	out := &ListUsersResponse{Users: make([]User, 0, len(list))}
	for _, u := range list {
		out.Users = append(out.Users, toUser(u))
	}
	return out, nil
}

func (h *AdminServer) updateUserRole(ctx context.Context, req *UpdateUserRoleRequest) (*User, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	u, err := h.svc.UpdateUserRole(ctx, actor, req.UserID, identitydomain.Role(req.Role))
	if err != nil {
		return nil, mapAdminError(err)
	}
	out := toUser(u)
	return &out, nil
}

func (h *AdminServer) deleteUser(ctx context.Context, req *DeleteUserRequest) (*DeleteUserResponse, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.svc.DeleteUser(ctx, actor, req.UserID); err != nil {
		return nil, mapAdminError(err)
	}
	return &DeleteUserResponse{}, nil
}

func (h *AdminServer) createCourse(ctx context.Context, req *CreateCourseRequest) (*Course, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	c, err := h.svc.CreateCourse(ctx, actor, req.Code, req.Title, req.GraderID)
	if err != nil {
		return nil, mapAdminError(err)
	}
	out := toCourse(c)
	return &out, nil
}

func (h *AdminServer) assignGrader(ctx context.Context, req *AssignGraderRequest) (*AssignGraderResponse, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.svc.AssignGrader(ctx, actor, req.CourseID, req.GraderID); err != nil {
		return nil, mapAdminError(err)
	}
	return &AssignGraderResponse{}, nil
}

func (h *AdminServer) listCourses(ctx context.Context, _ *ListCoursesRequest) (*ListCoursesResponse, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	list, err := h.svc.ListCourses(ctx, actor)
	if err != nil {
		return nil, mapAdminError(err)
	}
	out := &ListCoursesResponse{Courses: make([]Course, 0, len(list))}
	for _, c := range list {
		out.Courses = append(out.Courses, toCourse(c))
	}
	return out, nil
}

func actorFromContext(ctx context.Context) (service.Actor, error) {
	userID, ok := interceptors.GetUserID(ctx)
	if !ok {
		return service.Actor{}, status.Error(codes.Unauthenticated, "missing identity")
	}
	role, _ := interceptors.GetRole(ctx)
	return service.Actor{ID: userID, Role: identitydomain.Role(role)}, nil
}

func toUser(u *identitydomain.User) User {
	return User{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		Role:       string(u.Role),
		MFAEnabled: u.MFAEnabled,
		CreatedAt:  u.CreatedAt.Format(time.RFC3339),
	}
}

func toCourse(c *coursedomain.Course) Course {
	return Course{
		ID:        c.ID,
		Code:      c.Code,
		Title:     c.Title,
		GraderID:  c.GraderID,
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
	}
}

func mapAdminError(err error) error {
	switch {
	case errors.Is(err, service.ErrPermissionDenied):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrCourseNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, service.ErrEmailAlreadyRegistered),
		errors.Is(err, service.ErrCourseCodeTaken):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, service.ErrNotAGrader):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, service.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
