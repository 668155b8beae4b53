// Package server assembles the gRPC server: interceptor chain plus service
// registration. Service handlers are JSON API services built on the jsonapi
// codec; the health service ships with grpc itself.
package server

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	auditrepo "gradevault/backend/internal/audit/repository"
	"gradevault/backend/internal/security"
	"gradevault/backend/internal/server/interceptors"
)

// PublicMethods are the RPCs reachable without a Bearer token: the whole
// login pipeline plus health checks. The dev OTP lookup is public too; its
// service is only registered when dev OTP return mode is on.
var PublicMethods = map[string]bool{
	"/gradevault.identity.v1.AuthService/Register":            true,
	"/gradevault.identity.v1.AuthService/Login":               true,
	"/gradevault.identity.v1.AuthService/VerifyOTP":           true,
	"/gradevault.identity.v1.AuthService/StartTOTPEnrollment": true,
	"/gradevault.identity.v1.AuthService/VerifyTOTP":          true,
	"/gradevault.identity.v1.AuthService/Refresh":             true,
	"/gradevault.devotp.v1.DevOTPService/GetOTP":              true,
	"/grpc.health.v1.Health/Check":                            true,
	"/grpc.health.v1.Health/Watch":                            true,
}

// SkipAuditMethods are RPCs that are not recorded by the audit interceptor.
// The auth pipeline audits its own events with richer metadata.
var SkipAuditMethods = map[string]bool{
	"/grpc.health.v1.Health/Check": true,
	"/grpc.health.v1.Health/Watch": true,
}

// Registrar is any service handler that can register itself on a server.
type Registrar interface {
	Register(s grpc.ServiceRegistrar)
}

// New returns a gRPC server with the auth and audit interceptors installed,
// the standard health service registered, and every given service handler
// registered.
func New(tokens *security.TokenProvider, auditRepo auditrepo.Repository, services ...Registrar) (*grpc.Server, *health.Server) {
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			interceptors.AuthUnary(tokens, PublicMethods),
			interceptors.AuditUnary(auditRepo, SkipAuditMethods),
		),
	)
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(s, healthSrv)
	for _, svc := range services {
		svc.Register(s)
	}
	return s, healthSrv
}
