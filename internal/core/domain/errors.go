package domain

import "errors"

// Registration and login validation.
var (
	ErrMissingFields      = errors.New("username, email, and password are required")
	ErrWeakPassword       = errors.New("password must be at least 6 characters long")
	ErrInvalidField       = errors.New("validation error")
	ErrDuplicateIdentity  = errors.New("username or email already exists")
	ErrMissingCredentials = errors.New("username and password are required")
	ErrMissingPasswords   = errors.New("current and new password are required")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTooManyAttempts    = errors.New("too many login attempts")
)

// Token verification.
var (
	ErrTokenMissing          = errors.New("access token required")
	ErrTokenMalformed        = errors.New("token malformed")
	ErrTokenInvalidSignature = errors.New("token signature invalid")
	ErrTokenExpired          = errors.New("token expired")
	ErrTokenUnknownSubject   = errors.New("token subject no longer exists")
)

// Lookups, authorization and persistence.
var (
	ErrUserNotFound     = errors.New("user not found")
	ErrRoleNotFound     = errors.New("role not found")
	ErrInsufficientRole = errors.New("insufficient permissions")
	ErrStoreFailure     = errors.New("store failure")
)

// IsTokenError reports whether err is one of the token verification failures.
func IsTokenError(err error) bool {
	return errors.Is(err, ErrTokenMalformed) ||
		errors.Is(err, ErrTokenInvalidSignature) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrTokenUnknownSubject)
}
