package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/giftcard/giftcard-api/internal/core/domain"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
	Code   string `json:"code"`
}

type apiError struct {
	status  int
	message string
	code    string
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their appropriate HTTP status codes.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope: {"status":"error","error":"<message>","code":"<id>"}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		ae := resolveError(err, log, c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(ae.status)
			return
		}
		_ = c.JSON(ae.status, errorResponse{Status: "error", Error: ae.message, Code: ae.code})
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) apiError {
	// Echo's own errors (bind failures, 404 from router, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return apiError{he.Code, fmt.Sprintf("%v", he.Message), statusCode(he.Code)}
	}

	// Known domain errors → deterministic HTTP codes.
	switch {
	case errors.Is(err, domain.ErrMissingFields):
		return apiError{http.StatusBadRequest, "Username, email, and password are required", "missing_fields"}
	case errors.Is(err, domain.ErrWeakPassword):
		return apiError{http.StatusBadRequest, "Password must be at least 6 characters long", "weak_password"}
	case errors.Is(err, domain.ErrInvalidField):
		return apiError{http.StatusBadRequest, fieldMessage(err), "invalid_field"}
	case errors.Is(err, domain.ErrMissingPasswords):
		return apiError{http.StatusBadRequest, "Current and new password are required", "missing_fields"}
	case errors.Is(err, domain.ErrMissingCredentials):
		return apiError{http.StatusBadRequest, "Username and password are required", "missing_credentials"}
	case errors.Is(err, domain.ErrDuplicateIdentity):
		return apiError{http.StatusConflict, "Username or email already exists", "duplicate_identity"}
	case errors.Is(err, domain.ErrInvalidCredentials):
		return apiError{http.StatusUnauthorized, "Invalid credentials", "invalid_credentials"}
	case errors.Is(err, domain.ErrTooManyAttempts):
		return apiError{http.StatusTooManyRequests, "Too many login attempts, try again later", "too_many_attempts"}
	case errors.Is(err, domain.ErrTokenMissing):
		return apiError{http.StatusUnauthorized, "Access token required", "token_required"}
	case domain.IsTokenError(err):
		// One answer for every token failure; the reason is only logged.
		return apiError{http.StatusUnauthorized, "Invalid or expired token", "token_invalid"}
	case errors.Is(err, domain.ErrInsufficientRole):
		return apiError{http.StatusForbidden, "Insufficient permissions", "insufficient_role"}
	case errors.Is(err, domain.ErrUserNotFound):
		return apiError{http.StatusNotFound, "User not found", "user_not_found"}
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return apiError{http.StatusInternalServerError, "Internal server error", "internal_error"}
}

// fieldMessage drops the sentinel prefix from a field validation error.
func fieldMessage(err error) string {
	msg := strings.TrimPrefix(err.Error(), domain.ErrInvalidField.Error()+": ")
	if msg == "" || msg == domain.ErrInvalidField.Error() {
		return "Validation error"
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}

func statusCode(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return "http_error"
	}
	return strings.ToLower(strings.ReplaceAll(text, " ", "_"))
}
