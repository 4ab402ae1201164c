package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// HashPassword generates a bcrypt hash of the password.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(bytes), nil
}

// CheckPasswordHash compares a password with a bcrypt hash.
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// ErrInvalidStreamToken is returned for missing, forged, expired or mismatched tokens.
var ErrInvalidStreamToken = errors.New("invalid stream token")

// StreamClaims bind a token to one job's output.
type StreamClaims struct {
	JobID string `json:"job"`
	jwt.RegisteredClaims
}

// StreamSigner issues and checks HS256 tokens for stream URLs.
// A nil *StreamSigner disables signing.
type StreamSigner struct {
	secret []byte
	ttl    time.Duration
}

// NewStreamSigner returns nil when secret is empty.
func NewStreamSigner(secret string, ttl time.Duration) *StreamSigner {
	if secret == "" {
		return nil
	}
	return &StreamSigner{secret: []byte(secret), ttl: ttl}
}

// Enabled reports whether stream URLs must carry a token.
func (s *StreamSigner) Enabled() bool {
	return s != nil
}

// Sign issues a token for jobID.
func (s *StreamSigner) Sign(jobID string) (string, error) {
	if s == nil {
		return "", nil
	}
	now := time.Now()
	claims := StreamClaims{
		JobID: jobID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign stream token: %w", err)
	}
	return token, nil
}

// Verify checks that token is valid and issued for jobID.
func (s *StreamSigner) Verify(token, jobID string) error {
	if s == nil {
		return nil
	}
	if token == "" {
		return ErrInvalidStreamToken
	}

	claims := &StreamClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidStreamToken, err)
	}
	if claims.JobID != jobID {
		return ErrInvalidStreamToken
	}
	return nil
}
