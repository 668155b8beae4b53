// Package handler exposes issued plain OTPs as the
// gradevault.devotp.v1.DevOTPService JSON API. Registered only when dev OTP
// return mode is on; config refuses that mode in production.
package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"gradevault/backend/internal/devotp"
	"gradevault/backend/internal/server/jsonapi"
)

// ServiceName is the full gRPC service name of the dev OTP API.
const ServiceName = "gradevault.devotp.v1.DevOTPService"

// DevOTPServer serves plain OTPs from the dev store.
type DevOTPServer struct {
	store devotp.Store
}

func NewDevOTPServer(store devotp.Store) *DevOTPServer {
	return &DevOTPServer{store: store}
}

// Register registers the dev OTP API on s.
func (h *DevOTPServer) Register(s grpc.ServiceRegistrar) {
	s.RegisterService(&grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: jsonapi.HandlerType,
		Methods: []grpc.MethodDesc{
			jsonapi.Method(ServiceName, "GetOTP", h.getOTP),
		},
	}, h)
}

type GetOTPRequest struct {
	Email string `json:"email"`
}

type GetOTPResponse struct {
	OTP string `json:"otp"`
}

func (h *DevOTPServer) getOTP(ctx context.Context, req *GetOTPRequest) (*GetOTPResponse, error) {
	otp, ok := h.store.Get(ctx, req.Email)
	if !ok {
		return nil, status.Error(codes.NotFound, "no active code for email")
	}
	return &GetOTPResponse{OTP: otp}, nil
}
