package audit

import "strings"

// ActionResource holds action and resource derived from a gRPC full method name.
type ActionResource struct {
	Action   string
	Resource string
}

// Course method overrides: audit grader assignment as grader_assigned on resource "course".
const courseAssignGrader = "/gradevault.course.v1.CourseService/AssignGrader"

// ParseFullMethod returns action and resource for a gRPC full method (e.g. /gradevault.artifact.v1.ArtifactService/UploadArtifact).
// Action is a verb: get, list, create, update, delete, upload, download, grade, or a lowercase method name for others.
// Resource is derived from the service name (e.g. ArtifactService -> artifact).
func ParseFullMethod(fullMethod string) ActionResource {
	if fullMethod == courseAssignGrader {
		return ActionResource{Action: "grader_assigned", Resource: "course"}
	}
	// fullMethod format: /gradevault.package.v1.ServiceName/MethodName
	slash := strings.LastIndex(fullMethod, "/")
	if slash < 0 {
		return ActionResource{Action: "unknown", Resource: "unknown"}
	}
	method := fullMethod[slash+1:]
	beforeSlash := fullMethod[:slash]
	dot := strings.LastIndex(beforeSlash, ".")
	if dot < 0 {
		return ActionResource{Action: strings.ToLower(method), Resource: "unknown"}
	}
	serviceName := beforeSlash[dot+1:]
	resource := serviceToResource(serviceName)
	action := methodToAction(method)
	return ActionResource{Action: action, Resource: resource}
}

func serviceToResource(serviceName string) string {
	// ArtifactService -> artifact, AuthService -> auth
	s := strings.TrimSuffix(serviceName, "Service")
	if s == "" {
		return "unknown"
	}
	return strings.ToLower(s[0:1]) + s[1:]
}

func methodToAction(method string) string {
	switch {
	case strings.HasPrefix(method, "Get") && method != "Get":
		return "get"
	case strings.HasPrefix(method, "List"):
		return "list"
	case strings.HasPrefix(method, "Create"):
		return "create"
	case strings.HasPrefix(method, "Update"):
		return "update"
	case strings.HasPrefix(method, "Delete"):
		return "delete"
	case strings.HasPrefix(method, "Upload"):
		return "upload"
	case strings.HasPrefix(method, "Download"):
		return "download"
	case strings.HasPrefix(method, "Grade"):
		return "grade"
	case strings.HasPrefix(method, "Register"):
		return "register"
	case strings.HasPrefix(method, "Verify"):
		return "verify"
	case strings.HasPrefix(method, "Assign"):
		return "assign"
	default:
		return strings.ToLower(method)
	}
}
