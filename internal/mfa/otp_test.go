package mfa

import (
	"testing"
)

func TestGenerateOTP_ReturnsSixDigits(t *testing.T) {
	otp, err := GenerateOTP()
	if err != nil {
		t.Fatalf("GenerateOTP: %v", err)
	}
	if len(otp) != 6 {
		t.Errorf("OTP length = %d, want 6", len(otp))
	}
	for _, c := range otp {
		if c < '0' || c > '9' {
			t.Errorf("OTP contains non-digit: %c", c)
		}
	}
}

func TestGenerateOTP_Randomness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		otp, err := GenerateOTP()
		if err != nil {
			t.Fatalf("GenerateOTP: %v", err)
		}
		if seen[otp] {
			t.Errorf("duplicate OTP generated: %s", otp)
		}
		seen[otp] = true
	}
}

func TestHashOTP_Consistent(t *testing.T) {
	hash1 := HashOTP("123456")
	hash2 := HashOTP("123456")

	if hash1 != hash2 {
		t.Errorf("HashOTP not consistent: hash1 = %q, hash2 = %q", hash1, hash2)
	}
	if len(hash1) != 64 {
		t.Errorf("hash length = %d, want 64 (SHA-256 hex)", len(hash1))
	}
}

func TestOTPEqual_CorrectMatch(t *testing.T) {
	storedHash := HashOTP("123456")
	if !OTPEqual("123456", storedHash) {
		t.Error("OTPEqual should match correct OTP")
	}
}

func TestOTPEqual_RejectsIncorrect(t *testing.T) {
	storedHash := HashOTP("123456")
	if OTPEqual("654321", storedHash) {
		t.Error("OTPEqual should reject incorrect OTP")
	}
}

func TestOTPEqual_RejectsLengthMismatch(t *testing.T) {
	storedHash := HashOTP("123456")
	if OTPEqual("123456", "a"+storedHash) {
		t.Error("OTPEqual should reject hash with different length")
	}
}
