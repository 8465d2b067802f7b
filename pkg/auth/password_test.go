package auth

import (
	"strings"
	"testing"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name       string
		password   string
		shouldFail bool
	}{
		{name: "valid strong password", password: "SecureP4ss", shouldFail: false},
		{name: "too short", password: "Pa55", shouldFail: true},
		{name: "too long", password: strings.Repeat("Aa1", 50), shouldFail: true},
		{name: "missing uppercase", password: "securepass123", shouldFail: true},
		{name: "missing lowercase", password: "SECUREPASS123", shouldFail: true},
		{name: "missing digit", password: "SecurePassword", shouldFail: true},
		{name: "common password rejected case-insensitively", password: "Password123", shouldFail: true},
		{name: "common password with suffix allowed", password: "Password123x", shouldFail: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.shouldFail && err == nil {
				t.Errorf("expected error, got nil")
			}
			if !tt.shouldFail && err != nil {
				t.Errorf("expected no error, got: %v", err)
			}
		})
	}
}

func TestValidatePasswordErrorIsOpaque(t *testing.T) {
	err := ValidatePassword("short")
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Error() != "invalid password" {
		t.Errorf("error message must not leak requirements, got: %v", err)
	}
}

func TestHashAndComparePassword(t *testing.T) {
	password := "SecureP4ss"

	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == "" || hash == password {
		t.Error("hash must be non-empty and differ from plaintext")
	}

	if err := ComparePassword(hash, password); err != nil {
		t.Errorf("ComparePassword with correct password failed: %v", err)
	}
	if err := ComparePassword(hash, "WrongPassword1"); err == nil {
		t.Error("ComparePassword with wrong password should fail")
	}
}

func TestHashPasswordEmpty(t *testing.T) {
	if _, err := HashPassword(""); err == nil {
		t.Error("empty password must not hash")
	}
}
