package utils

import (
	"errors"
	"testing"
)

func TestHashAndVerify(t *testing.T) {
	hashed, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hashed == "s3cret" {
		t.Fatal("password stored in clear text")
	}
	if !VerifyPassword("s3cret", hashed) {
		t.Fatal("expected password to verify")
	}
	if VerifyPassword("wrong", hashed) {
		t.Fatal("wrong password verified")
	}
	if _, err := HashPassword(""); !errors.Is(err, ErrEmptyPassword) {
		t.Fatalf("expected ErrEmptyPassword, got %v", err)
	}
}
