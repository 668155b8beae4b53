package handler

import (
	"errors"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"gradevault/backend/internal/admin/service"
)

func TestMapAdminError(t *testing.T) {
	cases := []struct {
		err  error
		want codes.Code
	}{
		{service.ErrPermissionDenied, codes.PermissionDenied},
		{service.ErrUserNotFound, codes.NotFound},
		{service.ErrCourseNotFound, codes.NotFound},
		{service.ErrEmailAlreadyRegistered, codes.AlreadyExists},
		{service.ErrCourseCodeTaken, codes.AlreadyExists},
		{service.ErrNotAGrader, codes.FailedPrecondition},
		{service.ErrInvalidInput, codes.InvalidArgument},
		{errors.New("boom"), codes.Internal},
	}
	for _, tc := range cases {
		st, ok := status.FromError(mapAdminError(tc.err))
		if !ok {
			t.Fatalf("mapAdminError(%v) is not a gRPC status", tc.err)
		}
		if st.Code() != tc.want {
			t.Errorf("mapAdminError(%v) code = %v, want %v", tc.err, st.Code(), tc.want)
		}
	}
}
