// Package handler exposes the auth service as the
// gradevault.identity.v1.AuthService JSON API.
package handler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"gradevault/backend/internal/identity/domain"
	"gradevault/backend/internal/identity/service"
	"gradevault/backend/internal/server/interceptors"
	"gradevault/backend/internal/server/jsonapi"
)

// ServiceName is the full gRPC service name of the auth API.
const ServiceName = "gradevault.identity.v1.AuthService"

// AuthServer wires AuthService RPCs to the auth service.
type AuthServer struct {
	svc *service.AuthService
}

func NewAuthServer(svc *service.AuthService) *AuthServer {
	return &AuthServer{svc: svc}
}

// Register registers the auth API on s.
func (h *AuthServer) Register(s grpc.ServiceRegistrar) {
	s.RegisterService(&grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: jsonapi.HandlerType,
		Methods: []grpc.MethodDesc{
			jsonapi.Method(ServiceName, "Register", h.register),
			jsonapi.Method(ServiceName, "Login", h.login),
			jsonapi.Method(ServiceName, "VerifyOTP", h.verifyOTP),
			jsonapi.Method(ServiceName, "StartTOTPEnrollment", h.startTOTPEnrollment),
			jsonapi.Method(ServiceName, "VerifyTOTP", h.verifyTOTP),
			jsonapi.Method(ServiceName, "Refresh", h.refresh),
			jsonapi.Method(ServiceName, "Me", h.me),
			jsonapi.Method(ServiceName, "MFAStatus", h.mfaStatus),
		},
	}, h)
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type RegisterResponse struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	UserID       string `json:"user_id"`
	NextStep     string `json:"next_step"`
	OTPExpiresAt string `json:"otp_expires_at,omitempty"`
	DevOTP       string `json:"dev_otp,omitempty"`
}

type VerifyOTPRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type StartTOTPEnrollmentRequest struct {
	Email string `json:"email"`
}

type StartTOTPEnrollmentResponse struct {
	Secret    string `json:"secret"`
	URI       string `json:"uri"`
	QRDataURL string `json:"qr_data_url"`
}

type VerifyTOTPRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type MeRequest struct{}

type MeResponse struct {
	UserID     string `json:"user_id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	MFAEnabled bool   `json:"mfa_enabled"`
	CreatedAt  string `json:"created_at"`
}

type MFAStatusRequest struct{}

type MFAStatusResponse struct {
	MFAEnabled bool   `json:"mfa_enabled"`
	Message    string `json:"message"`
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    string `json:"expires_at"`
	UserID       string `json:"user_id"`
	Role         string `json:"role"`
}

func (h *AuthServer) register(ctx context.Context, req *RegisterRequest) (*RegisterResponse, error) {
	res, err := h.svc.Register(ctx, req.Name, req.Email, req.Password, domain.Role(req.Role))
	if err != nil {
		return nil, mapAuthError(err)
	}
	return &RegisterResponse{UserID: res.UserID, Role: res.Role}, nil
}

func (h *AuthServer) login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	res, err := h.svc.Login(ctx, req.Email, req.Password)
	if err != nil {
		return nil, mapAuthError(err)
	}
	return loginResponse(res), nil
}

func (h *AuthServer) verifyOTP(ctx context.Context, req *VerifyOTPRequest) (*LoginResponse, error) {
	res, err := h.svc.VerifyOTP(ctx, req.Email, req.Code)
	if err != nil {
		return nil, mapAuthError(err)
	}
	return loginResponse(res), nil
}

func (h *AuthServer) startTOTPEnrollment(ctx context.Context, req *StartTOTPEnrollmentRequest) (*StartTOTPEnrollmentResponse, error) {
	enrollment, err := h.svc.StartTOTPEnrollment(ctx, req.Email)
	if err != nil {
		return nil, mapAuthError(err)
	}
	return &StartTOTPEnrollmentResponse{
		Secret:    enrollment.Secret,
		URI:       enrollment.URI,
		QRDataURL: enrollment.QRDataURL,
	}, nil
}

func (h *AuthServer) verifyTOTP(ctx context.Context, req *VerifyTOTPRequest) (*TokenResponse, error) {
	res, err := h.svc.VerifyTOTP(ctx, req.Email, req.Code)
	if err != nil {
		return nil, mapAuthError(err)
	}
	return tokenResponse(res), nil
}

func (h *AuthServer) refresh(ctx context.Context, req *RefreshRequest) (*TokenResponse, error) {
	res, err := h.svc.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return nil, mapAuthError(err)
	}
	return tokenResponse(res), nil
}

func (h *AuthServer) me(ctx context.Context, _ *MeRequest) (*MeResponse, error) {
	user, err := h.currentUser(ctx)
	if err != nil {
		return nil, err
	}
	return &MeResponse{
		UserID:     user.ID,
		Name:       user.Name,
		Email:      user.Email,
		Role:       string(user.Role),
		MFAEnabled: user.MFAEnabled,
		CreatedAt:  user.CreatedAt.Format(time.RFC3339),
	}, nil
}

func (h *AuthServer) mfaStatus(ctx context.Context, _ *MFAStatusRequest) (*MFAStatusResponse, error) {
	user, err := h.currentUser(ctx)
	if err != nil {
		return nil, err
	}
	message := "TOTP MFA is not yet set up"
	if user.MFAEnabled {
		message = "TOTP MFA is enabled"
	}
	return &MFAStatusResponse{MFAEnabled: user.MFAEnabled, Message: message}, nil
}

func (h *AuthServer) currentUser(ctx context.Context) (*domain.User, error) {
	email, ok := interceptors.GetEmail(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing identity")
	}
	user, err := h.svc.Me(ctx, email)
	if err != nil {
		return nil, mapAuthError(err)
	}
	return user, nil
}

func loginResponse(res *service.LoginResult) *LoginResponse {
	out := &LoginResponse{UserID: res.UserID, NextStep: res.NextStep, DevOTP: res.DevOTP}
	if !res.OTPExpiresAt.IsZero() {
		out.OTPExpiresAt = res.OTPExpiresAt.Format(time.RFC3339)
	}
	return out
}

func tokenResponse(res *service.AuthResult) *TokenResponse {
	return &TokenResponse{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		ExpiresAt:    res.ExpiresAt.Format(time.RFC3339),
		UserID:       res.UserID,
		Role:         res.Role,
	}
}

func mapAuthError(err error) error {
	var limited *service.RateLimitedError
	if errors.As(err, &limited) {
		return status.Error(codes.ResourceExhausted,
			fmt.Sprintf("too many failed attempts, retry in %ds", int(limited.RetryAfter.Seconds())))
	}
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, service.ErrEmailAlreadyRegistered):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidOTP),
		errors.Is(err, service.ErrInvalidTOTP),
		errors.Is(err, service.ErrInvalidRefreshToken):
		// One message for every authentication failure so the caller cannot
		// tell which factor was wrong.
		return status.Error(codes.Unauthenticated, "invalid credentials")
	case errors.Is(err, service.ErrMFAAlreadyEnabled),
		errors.Is(err, service.ErrMFANotEnrolled):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
