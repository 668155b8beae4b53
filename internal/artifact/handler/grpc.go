// Package handler exposes the artifact service as the
// gradevault.artifact.v1.ArtifactService JSON API. Every RPC requires an
// authenticated identity; the auth interceptor puts it on the context.
package handler

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	artifactdomain "gradevault/backend/internal/artifact/domain"
	"gradevault/backend/internal/artifact/service"
	endorsementdomain "gradevault/backend/internal/endorsement/domain"
	identitydomain "gradevault/backend/internal/identity/domain"
	"gradevault/backend/internal/security"
	"gradevault/backend/internal/server/interceptors"
	"gradevault/backend/internal/server/jsonapi"
)

// ServiceName is the full gRPC service name of the artifact API.
const ServiceName = "gradevault.artifact.v1.ArtifactService"

// ArtifactServer wires ArtifactService RPCs to the artifact service.
type ArtifactServer struct {
	svc *service.ArtifactService
}

func NewArtifactServer(svc *service.ArtifactService) *ArtifactServer {
	return &ArtifactServer{svc: svc}
}

// Register registers the artifact API on s.
func (h *ArtifactServer) Register(s grpc.ServiceRegistrar) {
	s.RegisterService(&grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: jsonapi.HandlerType,
		Methods: []grpc.MethodDesc{
			jsonapi.Method(ServiceName, "UploadArtifact", h.uploadArtifact),
			jsonapi.Method(ServiceName, "ListOwnArtifacts", h.listOwnArtifacts),
			jsonapi.Method(ServiceName, "ListCourseArtifacts", h.listCourseArtifacts),
			jsonapi.Method(ServiceName, "DownloadArtifact", h.downloadArtifact),
			jsonapi.Method(ServiceName, "GradeArtifact", h.gradeArtifact),
			jsonapi.Method(ServiceName, "VerifyEndorsement", h.verifyEndorsement),
		},
	}, h)
}

type UploadArtifactRequest struct {
	CourseID string `json:"course_id"`
	Filename string `json:"filename"`
	Payload  []byte `json:"payload"`
}

type Artifact struct {
	ID          string `json:"id"`
	CourseID    string `json:"course_id"`
	OwnerID     string `json:"owner_id"`
	Filename    string `json:"filename"`
	PayloadHash string `json:"payload_hash"`
	CreatedAt   string `json:"created_at"`
}

type ListOwnArtifactsRequest struct{}

type ListCourseArtifactsRequest struct {
	CourseID string `json:"course_id"`
}

type ListArtifactsResponse struct {
	Artifacts []Artifact `json:"artifacts"`
}

type DownloadArtifactRequest struct {
	ArtifactID string `json:"artifact_id"`
}

type DownloadArtifactResponse struct {
	Artifact Artifact `json:"artifact"`
	Payload  []byte   `json:"payload"`
}

type GradeArtifactRequest struct {
	ArtifactID string `json:"artifact_id"`
	Score      int32  `json:"score"`
	Remarks    string `json:"remarks"`
}

type Endorsement struct {
	ID         string `json:"id"`
	ArtifactID string `json:"artifact_id"`
	SignerID   string `json:"signer_id"`
	Score      int32  `json:"score"`
	Remarks    string `json:"remarks,omitempty"`
	Signature  string `json:"signature"`
	CreatedAt  string `json:"created_at"`
}

type VerifyEndorsementRequest struct {
	ArtifactID string `json:"artifact_id"`
}

type VerifyEndorsementResponse struct {
	Valid       bool        `json:"valid"`
	Endorsement Endorsement `json:"endorsement"`
}

func (h *ArtifactServer) uploadArtifact(ctx context.Context, req *UploadArtifactRequest) (*Artifact, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	a, err := h.svc.Upload(ctx, actor, req.CourseID, req.Filename, req.Payload)
	if err != nil {
		return nil, mapArtifactError(err)
	}
	out := toArtifact(a)
	return &out, nil
}

func (h *ArtifactServer) listOwnArtifacts(ctx context.Context, _ *ListOwnArtifactsRequest) (*ListArtifactsResponse, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	list, err := h.svc.ListOwn(ctx, actor)
	if err != nil {
		return nil, mapArtifactError(err)
	}
	return toArtifactList(list), nil
}

func (h *ArtifactServer) listCourseArtifacts(ctx context.Context, req *ListCourseArtifactsRequest) (*ListArtifactsResponse, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	list, err := h.svc.ListForCourse(ctx, actor, req.CourseID)
	if err != nil {
		return nil, mapArtifactError(err)
	}
	return toArtifactList(list), nil
}

func (h *ArtifactServer) downloadArtifact(ctx context.Context, req *DownloadArtifactRequest) (*DownloadArtifactResponse, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	payload, a, err := h.svc.Download(ctx, actor, req.ArtifactID)
	if err != nil {
		return nil, mapArtifactError(err)
	}
	return &DownloadArtifactResponse{Artifact: toArtifact(a), Payload: payload}, nil
}

func (h *ArtifactServer) gradeArtifact(ctx context.Context, req *GradeArtifactRequest) (*Endorsement, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	e, err := h.svc.Grade(ctx, actor, req.ArtifactID, req.Score, req.Remarks)
	if err != nil {
		return nil, mapArtifactError(err)
	}
	out := toEndorsement(e)
	return &out, nil
}

func (h *ArtifactServer) verifyEndorsement(ctx context.Context, req *VerifyEndorsementRequest) (*VerifyEndorsementResponse, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	valid, e, err := h.svc.VerifyEndorsement(ctx, actor, req.ArtifactID)
	if err != nil {
		return nil, mapArtifactError(err)
	}
	return &VerifyEndorsementResponse{Valid: valid, Endorsement: toEndorsement(e)}, nil
}

func actorFromContext(ctx context.Context) (service.Actor, error) {
	userID, ok := interceptors.GetUserID(ctx)
	if !ok {
		return service.Actor{}, status.Error(codes.Unauthenticated, "missing identity")
	}
	role, _ := interceptors.GetRole(ctx)
	return service.Actor{ID: userID, Role: identitydomain.Role(role)}, nil
}

func toArtifact(a *artifactdomain.Artifact) Artifact {
	return Artifact{
		ID:          a.ID,
		CourseID:    a.CourseID,
		OwnerID:     a.OwnerID,
		Filename:    a.Filename,
		PayloadHash: a.PayloadHash,
		CreatedAt:   a.CreatedAt.Format(time.RFC3339),
	}
}

func toArtifactList(list []*artifactdomain.Artifact) *ListArtifactsResponse {
	out := &ListArtifactsResponse{Artifacts: make([]Artifact, 0, len(list))}
	for _, a := range list {
		out.Artifacts = append(out.Artifacts, toArtifact(a))
	}
	return out
}

func toEndorsement(e *endorsementdomain.Endorsement) Endorsement {
	return Endorsement{
		ID:         e.ID,
		ArtifactID: e.ArtifactID,
		SignerID:   e.SignerID,
		Score:      e.Score,
		Remarks:    e.Remarks,
		Signature:  e.Signature,
		CreatedAt:  e.CreatedAt.Format(time.RFC3339),
	}
}

func mapArtifactError(err error) error {
	switch {
	case errors.Is(err, service.ErrPermissionDenied):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, service.ErrCourseNotFound),
		errors.Is(err, service.ErrArtifactNotFound),
		errors.Is(err, service.ErrNotEndorsed):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, service.ErrAlreadyEndorsed):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, service.ErrCourseHasNoGrader),
		errors.Is(err, service.ErrMissingPrivateKey):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, service.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, security.ErrDecryptFailed):
		return status.Error(codes.DataLoss, "payload cannot be decrypted")
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
