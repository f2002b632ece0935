package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/giftcard/giftcard-api/internal/api/metrics"
	"github.com/giftcard/giftcard-api/internal/api/middleware"
	"github.com/giftcard/giftcard-api/internal/api/session"
	"github.com/giftcard/giftcard-api/internal/core/domain"
	"github.com/giftcard/giftcard-api/internal/core/ports"
)

var timeNow = time.Now

type AuthHandler struct {
	authService ports.AuthService
	codec       ports.TokenCodec
	session     *session.Transport
	audit       ports.AuditRecorder
	log         zerolog.Logger
}

func NewAuthHandler(authService ports.AuthService, codec ports.TokenCodec, transport *session.Transport, audit ports.AuditRecorder, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		codec:       codec,
		session:     transport,
		audit:       audit,
		log:         log,
	}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role" validate:"omitempty,max=50"`
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type userIDParam struct {
	ID int64 `param:"id" validate:"gt=0"`
}

// Register creates a new user account. Anonymous callers are signed in as the
// new account.
//
// @Summary      Register a new user
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "User registration details"
// @Success      201   {object}  successResponse
// @Failure      400   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	role := req.Role
	if role == "" {
		role = domain.RoleUser
	}
	caller, signedIn := middleware.IdentityFrom(c.Request().Context())
	if role != domain.RoleUser && (!signedIn || !caller.IsAdmin) {
		metrics.AccessDeniedTotal.WithLabelValues(callerRole(caller)).Inc()
		return domain.ErrInsufficientRole
	}

	withClientIP(c)
	identity, err := h.authService.Register(c.Request().Context(), req.Username, req.Email, req.Password, role)
	if err != nil {
		metrics.AuthAttemptsTotal.WithLabelValues("register", outcome(err)).Inc()
		return err
	}

	// A signed-in caller registering someone else keeps their own session.
	if !signedIn {
		if err := h.startSession(c, identity); err != nil {
			return err
		}
	}
	metrics.AuthAttemptsTotal.WithLabelValues("register", "success").Inc()
	return c.JSON(http.StatusCreated, success(identity, "User registered successfully"))
}

// Login authenticates a user by username or email and starts a session.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  successResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      429   {object}  map[string]string
// @Router       /api/auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	identifier := req.Username
	if identifier == "" {
		identifier = req.Email
	}

	withClientIP(c)
	identity, err := h.authService.Login(c.Request().Context(), identifier, req.Password)
	if err != nil {
		metrics.AuthAttemptsTotal.WithLabelValues("login", outcome(err)).Inc()
		return err
	}

	if err := h.startSession(c, identity); err != nil {
		return err
	}
	metrics.AuthAttemptsTotal.WithLabelValues("login", "success").Inc()
	return c.JSON(http.StatusOK, success(identity, "Login successful"))
}

// Logout clears the session cookie. It succeeds with or without a session;
// when OptionalAuth resolved one, the logout is audited.
//
// @Summary      Logout
// @Tags         auth
// @Produce      json
// @Success      200   {object}  successResponse
// @Router       /api/auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	h.session.Clear(c)

	if identity, ok := middleware.IdentityFrom(c.Request().Context()); ok {
		h.audit.Record(domain.AuthEvent{
			Kind:       domain.EventLogout,
			UserID:     identity.ID,
			Identifier: identity.Username,
			IP:         c.RealIP(),
			Timestamp:  timeNow().UTC(),
		})
		h.log.Info().Int64("user_id", identity.ID).Msg("user logged out")
	}
	return c.JSON(http.StatusOK, success(nil, "Logout successful"))
}

// Me returns the identity of the authenticated caller.
//
// @Summary      Current user
// @Tags         auth
// @Produce      json
// @Success      200   {object}  successResponse
// @Failure      401   {object}  map[string]string
// @Router       /api/auth/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	identity, err := ctxIdentity(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, success(identity, "User data retrieved successfully"))
}

// ChangePassword replaces the caller's password. The session stays valid.
//
// @Summary      Change password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      changePasswordRequest  true  "Current and new password"
// @Success      200   {object}  successResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /api/auth/password [put]
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	identity, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	var req changePasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	withClientIP(c)
	if err := h.authService.ChangePassword(c.Request().Context(), identity.ID, req.CurrentPassword, req.NewPassword); err != nil {
		metrics.AuthAttemptsTotal.WithLabelValues("change_password", outcome(err)).Inc()
		return err
	}
	metrics.AuthAttemptsTotal.WithLabelValues("change_password", "success").Inc()
	return c.JSON(http.StatusOK, success(nil, "Password updated successfully"))
}

// GetUser returns the identity of any user. Admin only.
//
// @Summary      Get user by id
// @Tags         admin
// @Produce      json
// @Param        id   path      int  true  "User ID"
// @Success      200  {object}  successResponse
// @Failure      400  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/admin/users/{id} [get]
func (h *AuthHandler) GetUser(c echo.Context) error {
	var p userIDParam
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}
	if err := c.Validate(&p); err != nil {
		return err
	}

	identity, err := h.authService.GetByID(c.Request().Context(), p.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, success(identity, "User retrieved successfully"))
}

func (h *AuthHandler) startSession(c echo.Context, identity *domain.ResolvedIdentity) error {
	token, err := h.codec.Issue(domain.SubjectOf(identity))
	if err != nil {
		return fmt.Errorf("issue session token: %w", err)
	}
	h.session.Write(c, token)
	return nil
}

// outcome labels a failed attempt for metrics.
func outcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrMissingFields),
		errors.Is(err, domain.ErrMissingCredentials),
		errors.Is(err, domain.ErrMissingPasswords),
		errors.Is(err, domain.ErrWeakPassword),
		errors.Is(err, domain.ErrInvalidField):
		return "invalid_input"
	case errors.Is(err, domain.ErrDuplicateIdentity):
		return "duplicate"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, domain.ErrTooManyAttempts):
		return "rate_limited"
	default:
		return "error"
	}
}

func callerRole(identity *domain.ResolvedIdentity) string {
	if identity == nil {
		return "anonymous"
	}
	return identity.RoleName
}
