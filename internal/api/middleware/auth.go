package middleware

import (
	"context"
	"errors"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/giftcard/giftcard-api/internal/api/metrics"
	"github.com/giftcard/giftcard-api/internal/api/session"
	"github.com/giftcard/giftcard-api/internal/core/domain"
	"github.com/giftcard/giftcard-api/internal/core/ports"
)

// IdentityResolver loads the identity named by a verified token.
type IdentityResolver interface {
	GetByID(ctx context.Context, id int64) (*domain.ResolvedIdentity, error)
}

// Authenticate requires a valid session cookie. The resolved identity is
// attached to the request context; read it with IdentityFrom.
func Authenticate(codec ports.TokenCodec, resolver IdentityResolver, transport *session.Transport, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identity, err := resolve(c, codec, resolver, transport)
			if err != nil {
				reason := rejectionReason(err)
				if reason == "" {
					// Store outage, not a credential problem.
					return err
				}
				metrics.TokenRejectionsTotal.WithLabelValues(reason).Inc()
				log.Debug().
					Str("reason", reason).
					Str("path", c.Path()).
					Msg("request rejected")
				if errors.Is(err, domain.ErrUserNotFound) {
					return domain.ErrTokenUnknownSubject
				}
				return err
			}

			attach(c, identity)
			return next(c)
		}
	}
}

// OptionalAuth attaches an identity when the request carries a valid session
// cookie and otherwise lets the request through anonymously.
func OptionalAuth(codec ports.TokenCodec, resolver IdentityResolver, transport *session.Transport, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identity, err := resolve(c, codec, resolver, transport)
			if err != nil {
				if !errors.Is(err, domain.ErrTokenMissing) {
					log.Debug().Err(err).Str("path", c.Path()).Msg("optional auth ignored session")
				}
				return next(c)
			}

			attach(c, identity)
			return next(c)
		}
	}
}

func resolve(c echo.Context, codec ports.TokenCodec, resolver IdentityResolver, transport *session.Transport) (*domain.ResolvedIdentity, error) {
	raw, ok := transport.Read(c)
	if !ok {
		return nil, domain.ErrTokenMissing
	}
	claims, err := codec.Verify(raw)
	if err != nil {
		return nil, err
	}
	return resolver.GetByID(c.Request().Context(), claims.UserID)
}

func attach(c echo.Context, identity *domain.ResolvedIdentity) {
	req := c.Request()
	c.SetRequest(req.WithContext(WithIdentity(req.Context(), identity)))
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrTokenMissing):
		return "missing"
	case errors.Is(err, domain.ErrTokenExpired):
		return "expired"
	case errors.Is(err, domain.ErrTokenInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, domain.ErrTokenMalformed):
		return "malformed"
	case errors.Is(err, domain.ErrUserNotFound):
		return "user_not_found"
	default:
		return ""
	}
}
