package interceptors

import (
	"context"
	"testing"
)

func TestWithIdentityRoundTrip(t *testing.T) {
	ctx := WithIdentity(context.Background(), "user-1", "u@example.com", "grader")

	if v, ok := GetUserID(ctx); !ok || v != "user-1" {
		t.Errorf("GetUserID = %q, %v", v, ok)
	}
	if v, ok := GetEmail(ctx); !ok || v != "u@example.com" {
		t.Errorf("GetEmail = %q, %v", v, ok)
	}
	if v, ok := GetRole(ctx); !ok || v != "grader" {
		t.Errorf("GetRole = %q, %v", v, ok)
	}
}

func TestGettersOnBareContext(t *testing.T) {
	ctx := context.Background()
	if _, ok := GetUserID(ctx); ok {
		t.Error("GetUserID reported ok on bare context")
	}
	if _, ok := GetEmail(ctx); ok {
		t.Error("GetEmail reported ok on bare context")
	}
	if _, ok := GetRole(ctx); ok {
		t.Error("GetRole reported ok on bare context")
	}
}
