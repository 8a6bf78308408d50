package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if hash == "correct horse battery" {
		t.Fatal("hash equals plaintext")
	}

	if !CheckPassword(hash, "correct horse battery") {
		t.Error("CheckPassword() rejected the right password")
	}
	if CheckPassword(hash, "wrong password") {
		t.Error("CheckPassword() accepted the wrong password")
	}
}

func TestHashPasswordLength(t *testing.T) {
	if _, err := HashPassword("short"); !errors.Is(err, ErrPasswordTooShort) {
		t.Errorf("HashPassword(short) error = %v, want %v", err, ErrPasswordTooShort)
	}
	if _, err := HashPassword(strings.Repeat("x", 73)); !errors.Is(err, ErrPasswordTooLong) {
		t.Errorf("HashPassword(73 bytes) error = %v, want %v", err, ErrPasswordTooLong)
	}
}
