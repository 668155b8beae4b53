// Package handler exposes stored audit logs as the
// gradevault.audit.v1.AuditService JSON API. Reading the trail is admin-only.
package handler

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"gradevault/backend/internal/audit/domain"
	"gradevault/backend/internal/audit/repository"
	identitydomain "gradevault/backend/internal/identity/domain"
	"gradevault/backend/internal/permission"
	"gradevault/backend/internal/server/interceptors"
	"gradevault/backend/internal/server/jsonapi"
)

// ServiceName is the full gRPC service name of the audit API.
const ServiceName = "gradevault.audit.v1.AuditService"

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// AuditServer serves read access to the audit trail.
type AuditServer struct {
	repo repository.Repository
}

func NewAuditServer(repo repository.Repository) *AuditServer {
	return &AuditServer{repo: repo}
}

// Register registers the audit API on s.
func (h *AuditServer) Register(s grpc.ServiceRegistrar) {
	s.RegisterService(&grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: jsonapi.HandlerType,
		Methods: []grpc.MethodDesc{
			jsonapi.Method(ServiceName, "ListAuditLogs", h.listAuditLogs),
		},
	}, h)
}

type ListAuditLogsRequest struct {
	UserID string `json:"user_id,omitempty"`
	Limit  int32  `json:"limit,omitempty"`
	Offset int32  `json:"offset,omitempty"`
}

type AuditLog struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Action    string `json:"action"`
	Resource  string `json:"resource"`
	IP        string `json:"ip,omitempty"`
	Metadata  string `json:"metadata,omitempty"`
	CreatedAt string `json:"created_at"`
}

type ListAuditLogsResponse struct {
	Logs []AuditLog `json:"logs"`
}

func (h *AuditServer) listAuditLogs(ctx context.Context, req *ListAuditLogsRequest) (*ListAuditLogsResponse, error) {
	role, ok := interceptors.GetRole(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing identity")
	}
	if !permission.Check(identitydomain.Role(role), permission.ActionAuditRead) {
		return nil, status.Error(codes.PermissionDenied, "permission denied")
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset := req.Offset
	if offset < 0 {
		offset = 0
	}
	var (
		logs []*domain.AuditLog
		err  error
	)
	if req.UserID != "" {
		logs, err = h.repo.ListByUser(ctx, req.UserID, limit, offset)
	} else {
		logs, err = h.repo.List(ctx, limit, offset)
	}
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	out := &ListAuditLogsResponse{Logs: make([]AuditLog, 0, len(logs))}
	for _, l := range logs {
		out.Logs = append(out.Logs, AuditLog{
			ID:        l.ID,
			UserID:    l.UserID,
			Action:    l.Action,
			Resource:  l.Resource,
			IP:        l.IP,
			Metadata:  l.Metadata,
			CreatedAt: l.CreatedAt.Format(time.RFC3339),
		})
	}
	return out, nil
}
