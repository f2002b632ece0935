package token

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/giftcard/giftcard-api/internal/core/domain"
)

const b64url = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

func newTestCodec(t *testing.T, opts ...Option) *Codec {
	t.Helper()
	c, err := NewCodec(Config{Secret: "secret", Lifetime: time.Hour, Issuer: "giftcard-api"}, opts...)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return c
}

func TestNewCodec_RejectsEmptySecret(t *testing.T) {
	if _, err := NewCodec(Config{}); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}

func TestNewCodec_DefaultLifetime(t *testing.T) {
	c, err := NewCodec(Config{Secret: "s"})
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	if c.Lifetime() != 7*24*time.Hour {
		t.Fatalf("expected 7 day lifetime, got %s", c.Lifetime())
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	c := newTestCodec(t)

	subjects := []domain.TokenSubject{
		{UserID: 1, Email: "admin@example.com", RoleID: 1},
		{UserID: 42, Email: "alice@x.com", RoleID: 2},
		{UserID: 9001, Email: "", RoleID: 0},
	}
	for _, s := range subjects {
		raw, err := c.Issue(s)
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		claims, err := c.Verify(raw)
		if err != nil {
			t.Fatalf("Verify: %v", err)
		}
		if claims.UserID != s.UserID || claims.Email != s.Email || claims.RoleID != s.RoleID {
			t.Fatalf("claims mismatch: got %+v want %+v", claims, s)
		}
		if claims.TokenID == "" {
			t.Fatalf("expected jti to be set")
		}
		if got := claims.ExpiresAt.Sub(claims.IssuedAt); got != time.Hour {
			t.Fatalf("expected exp-iat of 1h, got %s", got)
		}
	}
}

func TestCodec_WireShape(t *testing.T) {
	c := newTestCodec(t)
	raw, err := c.Issue(domain.TokenSubject{UserID: 7, Email: "bob@x.com", RoleID: 2})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(parts))
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	var body map[string]any
	if err := json.Unmarshal(payload, &body); err != nil {
		t.Fatalf("payload json: %v", err)
	}
	for _, k := range []string{"id", "email", "role", "iat", "exp", "iss"} {
		if _, ok := body[k]; !ok {
			t.Fatalf("payload missing %q: %v", k, body)
		}
	}
	if body["email"] != "bob@x.com" || body["iss"] != "giftcard-api" {
		t.Fatalf("unexpected payload: %v", body)
	}
}

func TestCodec_Expired(t *testing.T) {
	now := time.Now()
	// Issued one lifetime plus a second ago, so exp = now - 1s.
	issuer := newTestCodec(t, WithClock(func() time.Time { return now.Add(-time.Hour - time.Second) }))
	raw, err := issuer.Issue(domain.TokenSubject{UserID: 1, Email: "a@x.com", RoleID: 1})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	verifier := newTestCodec(t, WithClock(func() time.Time { return now }))
	if _, err := verifier.Verify(raw); !errors.Is(err, domain.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestCodec_ExpiresExactlyAtExp(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	issuer := newTestCodec(t, WithClock(func() time.Time { return now }))
	raw, err := issuer.Issue(domain.TokenSubject{UserID: 1, Email: "a@x.com", RoleID: 1})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	atExp := newTestCodec(t, WithClock(func() time.Time { return now.Add(time.Hour) }))
	if _, err := atExp.Verify(raw); !errors.Is(err, domain.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired at exp, got %v", err)
	}

	justBefore := newTestCodec(t, WithClock(func() time.Time { return now.Add(time.Hour - time.Second) }))
	if _, err := justBefore.Verify(raw); err != nil {
		t.Fatalf("expected valid token one second before exp, got %v", err)
	}
}

func TestCodec_TamperedSignature(t *testing.T) {
	c := newTestCodec(t)
	raw, err := c.Issue(domain.TokenSubject{UserID: 3, Email: "c@x.com", RoleID: 2})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Every other alphabet character at every signature position, including
	// the padding bits of the final character.
	sigStart := strings.LastIndex(raw, ".") + 1
	for i := sigStart; i < len(raw); i++ {
		for _, r := range b64url {
			if byte(r) == raw[i] {
				continue
			}
			tampered := raw[:i] + string(r) + raw[i+1:]
			if _, err := c.Verify(tampered); !errors.Is(err, domain.ErrTokenInvalidSignature) {
				t.Fatalf("position %d char %q: expected ErrTokenInvalidSignature, got %v", i-sigStart, r, err)
			}
		}
	}
}

func TestCodec_TruncatedSignature(t *testing.T) {
	c := newTestCodec(t)
	raw, err := c.Issue(domain.TokenSubject{UserID: 3, Email: "c@x.com", RoleID: 2})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := c.Verify(raw[:len(raw)-1]); !errors.Is(err, domain.ErrTokenInvalidSignature) {
		t.Fatalf("expected ErrTokenInvalidSignature, got %v", err)
	}
}

func TestCodec_WrongSecret(t *testing.T) {
	c := newTestCodec(t)
	other, err := NewCodec(Config{Secret: "other", Lifetime: time.Hour, Issuer: "giftcard-api"})
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	raw, err := other.Issue(domain.TokenSubject{UserID: 3, Email: "c@x.com", RoleID: 2})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := c.Verify(raw); !errors.Is(err, domain.ErrTokenInvalidSignature) {
		t.Fatalf("expected ErrTokenInvalidSignature, got %v", err)
	}
}

func TestCodec_RejectsOtherAlgorithms(t *testing.T) {
	c := newTestCodec(t)
	now := time.Now()
	claims := Claims{
		UserID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "giftcard-api",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := c.Verify(raw); !errors.Is(err, domain.ErrTokenInvalidSignature) {
		t.Fatalf("expected ErrTokenInvalidSignature for HS512, got %v", err)
	}
}

func TestCodec_Malformed(t *testing.T) {
	c := newTestCodec(t)
	for _, raw := range []string{"", "not-a-token", "a.b", "a.b.c.d", "!!!.###.$$$"} {
		if _, err := c.Verify(raw); !errors.Is(err, domain.ErrTokenMalformed) {
			t.Fatalf("%q: expected ErrTokenMalformed, got %v", raw, err)
		}
	}
}

func TestCodec_WrongIssuer(t *testing.T) {
	c := newTestCodec(t)
	other, err := NewCodec(Config{Secret: "secret", Lifetime: time.Hour, Issuer: "someone-else"})
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	raw, err := other.Issue(domain.TokenSubject{UserID: 3, Email: "c@x.com", RoleID: 2})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := c.Verify(raw); !errors.Is(err, domain.ErrTokenMalformed) {
		t.Fatalf("expected ErrTokenMalformed, got %v", err)
	}
}
