package auth

import (
	"errors"
	"testing"
	"time"
)

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !CheckPasswordHash("s3cret", hash) {
		t.Error("Expected password to match its hash")
	}
	if CheckPasswordHash("wrong", hash) {
		t.Error("Expected wrong password to be rejected")
	}
	if CheckPasswordHash("s3cret", "not-a-hash") {
		t.Error("Expected malformed hash to be rejected")
	}
}

func TestStreamSigner(t *testing.T) {
	s := NewStreamSigner("key", time.Minute)
	if !s.Enabled() {
		t.Fatal("Expected signer to be enabled")
	}

	token, err := s.Sign("job-1")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := s.Verify(token, "job-1"); err != nil {
		t.Errorf("Expected token to verify, got %v", err)
	}
	if err := s.Verify(token, "job-2"); !errors.Is(err, ErrInvalidStreamToken) {
		t.Errorf("Expected mismatch to fail, got %v", err)
	}
	if err := s.Verify("", "job-1"); !errors.Is(err, ErrInvalidStreamToken) {
		t.Errorf("Expected empty token to fail, got %v", err)
	}

	other := NewStreamSigner("other-key", time.Minute)
	if err := other.Verify(token, "job-1"); !errors.Is(err, ErrInvalidStreamToken) {
		t.Errorf("Expected foreign key to fail, got %v", err)
	}
}

func TestStreamSignerExpired(t *testing.T) {
	s := NewStreamSigner("key", -time.Minute)
	token, err := s.Sign("job-1")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Verify(token, "job-1"); !errors.Is(err, ErrInvalidStreamToken) {
		t.Errorf("Expected expired token to fail, got %v", err)
	}
}

func TestNilStreamSigner(t *testing.T) {
	var s *StreamSigner = NewStreamSigner("", time.Minute)
	if s.Enabled() {
		t.Fatal("Expected signer to be disabled without secret")
	}
	if token, err := s.Sign("job"); token != "" || err != nil {
		t.Errorf("Expected empty token, got %q (%v)", token, err)
	}
	if err := s.Verify("", "job"); err != nil {
		t.Errorf("Expected disabled signer to accept anything, got %v", err)
	}
}
