package handler

import (
	"context"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// mockStore implements devotp.Store for tests.
type mockStore struct {
	otps map[string]string
}

func (m *mockStore) Put(ctx context.Context, email, otp string, expiresAt time.Time) {
	if m.otps == nil {
		m.otps = make(map[string]string)
	}
	m.otps[email] = otp
}

func (m *mockStore) Get(ctx context.Context, email string) (string, bool) {
	otp, ok := m.otps[email]
	return otp, ok
}

func TestGetOTP_Success(t *testing.T) {
	store := &mockStore{
		otps: map[string]string{
			"dev@example.com": "123456",
		},
	}
	srv := NewDevOTPServer(store)

	resp, err := srv.getOTP(context.Background(), &GetOTPRequest{Email: "dev@example.com"})
	if err != nil {
		t.Fatalf("getOTP: %v", err)
	}
	if resp.OTP != "123456" {
		t.Errorf("otp = %q, want %q", resp.OTP, "123456")
	}
}

func TestGetOTP_NotFound(t *testing.T) {
	srv := NewDevOTPServer(&mockStore{otps: make(map[string]string)})

	_, err := srv.getOTP(context.Background(), &GetOTPRequest{Email: "nobody@example.com"})
	if err == nil {
		t.Fatal("expected error for unknown email")
	}
	st, ok := status.FromError(err)
	if !ok {
		t.Fatalf("error is not a gRPC status: %v", err)
	}
	if st.Code() != codes.NotFound {
		t.Errorf("status code = %v, want %v", st.Code(), codes.NotFound)
	}
}
