// Package token issues, verifies and revokes signed session tokens.
package token

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/rsclarke/aiconnect/internal/models"
)

// TTL is the fixed validity window of a session token.
const TTL = 24 * time.Hour

var (
	// ErrSecretMissing is returned when no signing secret is configured.
	ErrSecretMissing = errors.New("jwt secret is not configured")
	// ErrInvalidToken covers bad signatures, malformed tokens and expiry.
	ErrInvalidToken = errors.New("token is invalid or expired")
	// ErrRevoked is returned by Verify for tokens on the revocation list.
	ErrRevoked = errors.New("token has been revoked")
)

// Claims are the session token claims.
type Claims struct {
	Platform string `json:"platform"`
	Services string `json:"services"`
	User     string `json:"user"`
	Tenant   string `json:"tenant,omitempty"`
	jwt.RegisteredClaims
}

// Payload is the input to Generate.
type Payload struct {
	Platform string
	Services string
	User     string
	Tenant   string
}

// Result is a freshly signed token, its issue time and its expiry. Both
// times are whole seconds, the resolution of the iat and exp claims, so the
// token is valid for exactly TTL from IssuedAt.
type Result struct {
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// RevocationStore persists revoked token hashes.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenHash string, expiresAt int64) error
	IsRevoked(ctx context.Context, tokenHash string) (bool, error)
	List(ctx context.Context) ([]models.RevokedToken, error)
	Prune(ctx context.Context, cutoff int64) (int64, error)
}

// Service signs and validates session tokens.
type Service struct {
	secret []byte
	store  RevocationStore
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service. An empty secret is allowed; Generate and
// Verify report ErrSecretMissing until one is configured.
func NewService(secret string, store RevocationStore, opts ...Option) *Service {
	s := &Service{
		secret: []byte(secret),
		store:  store,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HasSecret reports whether a signing secret is configured.
func (s *Service) HasSecret() bool {
	return len(s.secret) > 0
}

// Generate signs a new token valid for TTL.
func (s *Service) Generate(_ context.Context, p Payload) (Result, error) {
	if !s.HasSecret() {
		return Result{}, ErrSecretMissing
	}

	now := s.now().Truncate(time.Second)
	exp := now.Add(TTL)
	claims := Claims{
		Platform: p.Platform,
		Services: p.Services,
		User:     p.User,
		Tenant:   strings.ToLower(p.Tenant),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Result{}, fmt.Errorf("sign token: %w", err)
	}
	return Result{Token: signed, IssuedAt: now, ExpiresAt: exp}, nil
}

// Parse checks the signature and expiry without consulting the revocation list.
func (s *Service) Parse(raw string) (*Claims, error) {
	if !s.HasSecret() {
		return nil, ErrSecretMissing
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// Verify parses raw and rejects revoked tokens. A revocation lookup failure
// is returned as an error so callers deny the request.
func (s *Service) Verify(ctx context.Context, raw string) (*Claims, error) {
	claims, err := s.Parse(raw)
	if err != nil {
		return nil, err
	}
	revoked, err := s.IsRevoked(ctx, raw)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrRevoked
	}
	return claims, nil
}

// IsTokenExpired decodes raw without verifying it and reports whether it
// lacks an expiry or is past it.
func (s *Service) IsTokenExpired(raw string) bool {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return true
	}
	if claims.ExpiresAt == nil {
		return true
	}
	return !s.now().Before(claims.ExpiresAt.Time)
}

// IsRevoked reports whether raw is on the revocation list.
func (s *Service) IsRevoked(ctx context.Context, raw string) (bool, error) {
	if s.store == nil {
		return false, nil
	}
	revoked, err := s.store.IsRevoked(ctx, Hash(raw))
	if err != nil {
		return false, fmt.Errorf("check revocation: %w", err)
	}
	return revoked, nil
}

// Revoke adds raw to the revocation list. Revoking twice is a no-op.
func (s *Service) Revoke(ctx context.Context, raw string) error {
	if s.store == nil {
		return errors.New("revocation store is not configured")
	}
	exp := s.now().Add(TTL).Unix()
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err == nil && claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Unix()
	}
	if err := s.store.Revoke(ctx, Hash(raw), exp); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// RevokedTokens lists the revocation list.
func (s *Service) RevokedTokens(ctx context.Context) ([]models.RevokedToken, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.List(ctx)
}

// Prune drops revocation entries for tokens that have expired on their own.
func (s *Service) Prune(ctx context.Context) (int64, error) {
	if s.store == nil {
		return 0, nil
	}
	return s.store.Prune(ctx, s.now().Unix())
}

// Hash returns the hex sha256 of a raw token.
func Hash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
