package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/giftcard/giftcard-api/internal/api/middleware"
	"github.com/giftcard/giftcard-api/internal/core/domain"
)

// ctxIdentity extracts the identity attached by the auth middleware. Routes
// behind Authenticate always have one; its absence means the route was wired
// without the middleware.
func ctxIdentity(c echo.Context) (*domain.ResolvedIdentity, error) {
	identity, ok := middleware.IdentityFrom(c.Request().Context())
	if !ok {
		return nil, domain.ErrTokenMissing
	}
	return identity, nil
}

// withClientIP tags the request context with the caller address for auditing.
func withClientIP(c echo.Context) {
	req := c.Request()
	c.SetRequest(req.WithContext(domain.WithClientIP(req.Context(), c.RealIP())))
}
