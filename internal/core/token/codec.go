// Package token issues and verifies the HS256-signed session tokens carried in
// the session cookie.
package token

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/giftcard/giftcard-api/internal/core/domain"
)

// DefaultLifetime is used when Config.Lifetime is not positive.
const DefaultLifetime = 7 * 24 * time.Hour

// Config holds the process-wide signing settings, read once at startup.
type Config struct {
	Secret   string
	Lifetime time.Duration
	Issuer   string
}

// Claims is the JWT payload. Field names are part of the wire format.
type Claims struct {
	UserID int64  `json:"id"`
	Email  string `json:"email"`
	Role   int64  `json:"role"`
	jwt.RegisteredClaims
}

// Codec signs and verifies session tokens.
type Codec struct {
	secret   []byte
	lifetime time.Duration
	issuer   string
	now      func() time.Time
}

// Option customizes a Codec.
type Option func(*Codec)

// WithClock overrides the time source used for iat/exp and for verification.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

func NewCodec(cfg Config, opts ...Option) (*Codec, error) {
	if cfg.Secret == "" {
		return nil, errors.New("token: empty signing secret")
	}
	lifetime := cfg.Lifetime
	if lifetime <= 0 {
		lifetime = DefaultLifetime
	}
	c := &Codec{
		secret:   []byte(cfg.Secret),
		lifetime: lifetime,
		issuer:   cfg.Issuer,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Lifetime returns the validity window applied to issued tokens.
func (c *Codec) Lifetime() time.Duration {
	return c.lifetime
}

// Issue signs a claim set for subject that expires after the configured lifetime.
func (c *Codec) Issue(subject domain.TokenSubject) (string, error) {
	now := c.now()
	claims := Claims{
		UserID: subject.UserID,
		Email:  subject.Email,
		Role:   subject.RoleID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.lifetime)),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of raw and returns its claims.
// Failures are one of domain.ErrTokenMalformed, domain.ErrTokenInvalidSignature
// or domain.ErrTokenExpired.
func (c *Codec) Verify(raw string) (*domain.TokenClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithStrictDecoding(),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	}, opts...)
	if err != nil {
		return nil, classify(raw, err)
	}
	if claims.UserID <= 0 {
		return nil, fmt.Errorf("%w: missing subject id", domain.ErrTokenMalformed)
	}

	out := &domain.TokenClaims{
		UserID:  claims.UserID,
		Email:   claims.Email,
		RoleID:  claims.Role,
		TokenID: claims.ID,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	out.ExpiresAt = claims.ExpiresAt.Time
	return out, nil
}

func classify(raw string, err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", domain.ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", domain.ErrTokenInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenMalformed) && undecodableSignature(raw):
		return fmt.Errorf("%w: %v", domain.ErrTokenInvalidSignature, err)
	default:
		return fmt.Errorf("%w: %v", domain.ErrTokenMalformed, err)
	}
}

// undecodableSignature reports whether raw has a well-formed header and
// payload but a signature segment that is not strict base64url, such as one
// with altered padding bits.
func undecodableSignature(raw string) bool {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return false
	}
	enc := base64.RawURLEncoding.Strict()
	for _, seg := range parts[:2] {
		b, err := enc.DecodeString(seg)
		if err != nil || !json.Valid(b) {
			return false
		}
	}
	_, err := enc.DecodeString(parts[2])
	return err != nil
}
