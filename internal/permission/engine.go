// Package permission maps (role, action) to an allow/deny decision. Check is
// pure and side-effect-free; every sensitive operation calls it as an explicit
// guard before touching any state.
package permission

import (
	"gradevault/backend/internal/identity/domain"
)

// Action names a guarded operation as resource:verb.
type Action string

const (
	ActionArtifactUpload     Action = "artifact:upload"
	ActionArtifactReadOwn    Action = "artifact:read_own"
	ActionArtifactReadOthers Action = "artifact:read_others"
	ActionArtifactDownload   Action = "artifact:download"
	ActionArtifactGrade      Action = "artifact:grade"

	ActionUserCreate Action = "user:create"
	ActionUserRead   Action = "user:read"
	ActionUserUpdate Action = "user:update"
	ActionUserDelete Action = "user:delete"

	ActionCourseCreate       Action = "course:create"
	ActionCourseAssignGrader Action = "course:assign_grader"
	ActionCourseRead         Action = "course:read"

	ActionAuditRead Action = "audit:read"
)

// table is the static permission matrix. An action absent from the table is
// denied for every role.
var table = map[Action][]domain.Role{
	ActionArtifactUpload:     {domain.RoleSubject},
	ActionArtifactReadOwn:    {domain.RoleSubject, domain.RoleGrader, domain.RoleAdmin},
	ActionArtifactReadOthers: {domain.RoleGrader, domain.RoleAdmin},
	ActionArtifactDownload:   {domain.RoleGrader, domain.RoleAdmin},
	ActionArtifactGrade:      {domain.RoleGrader},

	ActionUserCreate: {domain.RoleAdmin},
	ActionUserRead:   {domain.RoleAdmin},
	ActionUserUpdate: {domain.RoleAdmin},
	ActionUserDelete: {domain.RoleAdmin},

	ActionCourseCreate:       {domain.RoleAdmin},
	ActionCourseAssignGrader: {domain.RoleAdmin},
	ActionCourseRead:         {domain.RoleSubject, domain.RoleGrader, domain.RoleAdmin},

	ActionAuditRead: {domain.RoleAdmin},
}

// Check reports whether role may perform action.
func Check(role domain.Role, action Action) bool {
	for _, allowed := range table[action] {
		if role == allowed {
			return true
		}
	}
	return false
}
