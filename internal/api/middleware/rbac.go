package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/giftcard/giftcard-api/internal/api/metrics"
	"github.com/giftcard/giftcard-api/internal/core/domain"
)

// RequireRole enforces role-based access control. It must run after
// Authenticate or OptionalAuth; a request without identity is refused.
func RequireRole(allowedRoles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identity, ok := IdentityFrom(c.Request().Context())
			if !ok {
				metrics.AccessDeniedTotal.WithLabelValues("anonymous").Inc()
				return domain.ErrInsufficientRole
			}
			if !identity.HasRole(allowedRoles...) {
				metrics.AccessDeniedTotal.WithLabelValues(identity.RoleName).Inc()
				return domain.ErrInsufficientRole
			}
			return next(c)
		}
	}
}

// RequireAdmin admits only the admin role.
func RequireAdmin() echo.MiddlewareFunc {
	return RequireRole(domain.RoleAdmin)
}
