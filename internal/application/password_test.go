package application

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHashRoundTrip(t *testing.T) {
	t.Parallel()

	hash, err := createPasswordHashWithCost("correct horse", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if strings.Contains(hash, "correct horse") {
		t.Fatalf("hash must not contain the password")
	}
	if err := VerifyPassword(hash, "correct horse"); err != nil {
		t.Fatalf("expected password to verify, got %v", err)
	}
	if err := VerifyPassword(hash, "wrong horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestCreatePasswordHashUsesConfiguredCost(t *testing.T) {
	t.Parallel()

	hash, err := CreatePasswordHash("password123")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		t.Fatalf("cost failed: %v", err)
	}
	if cost != PasswordCost {
		t.Fatalf("expected cost %d, got %d", PasswordCost, cost)
	}
}

func TestCreatePasswordHashRejectsLongPasswords(t *testing.T) {
	t.Parallel()

	if _, err := createPasswordHashWithCost(strings.Repeat("a", MaxPasswordLength+1), bcrypt.MinCost); err == nil {
		t.Fatalf("expected overlong password to be rejected")
	}
}

func TestVerifyPasswordRejectsMalformedHash(t *testing.T) {
	t.Parallel()

	err := VerifyPassword("not-a-hash", "password")
	if err == nil || errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected malformed hash error, got %v", err)
	}
}
