package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/giftcard/giftcard-api/internal/core/domain"
	"github.com/giftcard/giftcard-api/internal/core/ports"
	"github.com/giftcard/giftcard-api/internal/pkg/password"
)

const minPasswordLength = 6

// AuthServiceConfig carries the optional collaborators of AuthService.
type AuthServiceConfig struct {
	// DefaultRoleID is assigned when the requested role cannot be found.
	// Zero turns an unresolvable role into domain.ErrRoleNotFound.
	DefaultRoleID int64
	Limiter       ports.LoginLimiter
	Audit         ports.AuditRecorder
	Logger        zerolog.Logger
}

// AuthService implements registration, login and identity lookup.
type AuthService struct {
	users         ports.CredentialStore
	roles         ports.RoleStore
	limiter       ports.LoginLimiter
	audit         ports.AuditRecorder
	defaultRoleID int64
	validate      *validator.Validate
	log           zerolog.Logger
	now           func() time.Time
}

func NewAuthService(users ports.CredentialStore, roles ports.RoleStore, cfg AuthServiceConfig) *AuthService {
	s := &AuthService{
		users:         users,
		roles:         roles,
		limiter:       cfg.Limiter,
		audit:         cfg.Audit,
		defaultRoleID: cfg.DefaultRoleID,
		validate:      validator.New(),
		log:           cfg.Logger,
		now:           time.Now,
	}
	if s.limiter == nil {
		s.limiter = noopLimiter{}
	}
	if s.audit == nil {
		s.audit = noopRecorder{}
	}
	return s
}

// Register validates the input, creates the account and returns its identity.
// Checks run in order and the first failure wins: missing fields, password
// length, uniqueness, then field shape.
func (s *AuthService) Register(ctx context.Context, username, email, plaintext, roleName string) (*domain.ResolvedIdentity, error) {
	if username == "" || email == "" || plaintext == "" {
		return nil, domain.ErrMissingFields
	}
	if err := checkPassword(plaintext); err != nil {
		return nil, err
	}

	exists, err := s.users.ExistsByUsernameOrEmail(ctx, username, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.ErrDuplicateIdentity
	}
	if err := s.validateShape(username, email); err != nil {
		return nil, err
	}

	if roleName == "" {
		roleName = domain.RoleUser
	}
	roleID, err := s.resolveRoleID(ctx, roleName)
	if err != nil {
		return nil, err
	}

	created, err := s.users.Create(ctx, domain.NewUser{
		Username: username,
		Email:    email,
		Password: plaintext,
		RoleID:   roleID,
	})
	if err != nil {
		return nil, err
	}

	// Reload so the identity carries the joined role.
	user, err := s.users.FindByID(ctx, created.ID, true)
	if err != nil {
		return nil, fmt.Errorf("reload user %d: %w", created.ID, err)
	}

	identity := Transform(user)
	s.record(ctx, domain.EventRegister, identity.ID, username, "")
	s.log.Info().Int64("user_id", identity.ID).Str("role", identity.RoleName).Msg("user registered")
	return &identity, nil
}

// Login authenticates identifier (username or email) with plaintext. Unknown
// users and wrong passwords both yield domain.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, identifier, plaintext string) (*domain.ResolvedIdentity, error) {
	if identifier == "" || plaintext == "" {
		return nil, domain.ErrMissingCredentials
	}

	if err := s.limiter.Allow(ctx, identifier); err != nil {
		if errors.Is(err, domain.ErrTooManyAttempts) {
			s.record(ctx, domain.EventLoginFailure, 0, identifier, "rate_limited")
			return nil, err
		}
		s.log.Warn().Err(err).Msg("login limiter unavailable, allowing attempt")
	}

	user, err := s.users.FindByUsernameOrEmail(ctx, identifier)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.record(ctx, domain.EventLoginFailure, 0, identifier, "unknown_identity")
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if !s.users.VerifyPassword(user, plaintext) {
		s.record(ctx, domain.EventLoginFailure, user.ID, identifier, "wrong_password")
		return nil, domain.ErrInvalidCredentials
	}

	if err := s.limiter.Reset(ctx, identifier); err != nil {
		s.log.Warn().Err(err).Msg("failed to reset login limiter")
	}

	identity := Transform(user)
	s.record(ctx, domain.EventLoginSuccess, identity.ID, identifier, "")
	return &identity, nil
}

// GetByID returns the identity of user id, or domain.ErrUserNotFound.
func (s *AuthService) GetByID(ctx context.Context, id int64) (*domain.ResolvedIdentity, error) {
	user, err := s.users.FindByID(ctx, id, true)
	if err != nil {
		return nil, err
	}
	identity := Transform(user)
	return &identity, nil
}

// ChangePassword replaces the password of userID after checking current.
// A wrong current password yields domain.ErrInvalidCredentials.
func (s *AuthService) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	if current == "" || next == "" {
		return domain.ErrMissingPasswords
	}
	if err := checkPassword(next); err != nil {
		return err
	}

	user, err := s.users.FindByID(ctx, userID, false)
	if err != nil {
		return err
	}
	if !s.users.VerifyPassword(user, current) {
		s.record(ctx, domain.EventPasswordChange, userID, user.Username, "wrong_password")
		return domain.ErrInvalidCredentials
	}

	if err := s.users.UpdatePassword(ctx, userID, next); err != nil {
		return err
	}
	s.record(ctx, domain.EventPasswordChange, userID, user.Username, "")
	s.log.Info().Int64("user_id", userID).Msg("password changed")
	return nil
}

// AdminAccount describes the administrator created at startup.
type AdminAccount struct {
	Username string
	Email    string
	Password string
}

// EnsureAdmin creates account with the admin role unless a user with the same
// username or email already exists. An empty account is a no-op. It reports
// whether a user was created.
func (s *AuthService) EnsureAdmin(ctx context.Context, account AdminAccount) (bool, error) {
	if account == (AdminAccount{}) {
		return false, nil
	}
	if account.Username == "" || account.Email == "" || account.Password == "" {
		return false, domain.ErrMissingFields
	}
	if err := checkPassword(account.Password); err != nil {
		return false, err
	}
	if err := s.validateShape(account.Username, account.Email); err != nil {
		return false, err
	}

	exists, err := s.users.ExistsByUsernameOrEmail(ctx, account.Username, account.Email)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	role, err := s.roles.FindByName(ctx, domain.RoleAdmin)
	if err != nil {
		return false, fmt.Errorf("resolve admin role: %w", err)
	}

	created, err := s.users.Create(ctx, domain.NewUser{
		Username: account.Username,
		Email:    account.Email,
		Password: account.Password,
		RoleID:   role.ID,
	})
	if errors.Is(err, domain.ErrDuplicateIdentity) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.log.Info().Int64("user_id", created.ID).Str("username", created.Username).Msg("admin account created")
	return true, nil
}

// Transform projects a user and its role into a ResolvedIdentity. A missing
// role yields domain.RoleUnknown and no admin rights.
func Transform(user *domain.User) domain.ResolvedIdentity {
	if user == nil {
		return domain.ResolvedIdentity{RoleName: domain.RoleUnknown}
	}
	roleName := domain.RoleUnknown
	if user.Role != nil && user.Role.Name != "" {
		roleName = user.Role.Name
	}
	return domain.ResolvedIdentity{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		RoleID:    user.RoleID,
		RoleName:  roleName,
		IsAdmin:   roleName == domain.RoleAdmin,
		CreatedAt: user.CreatedAt,
	}
}

func (s *AuthService) resolveRoleID(ctx context.Context, roleName string) (int64, error) {
	role, err := s.roles.FindByName(ctx, roleName)
	if err == nil {
		return role.ID, nil
	}
	if !errors.Is(err, domain.ErrRoleNotFound) {
		return 0, err
	}
	if s.defaultRoleID == 0 {
		return 0, fmt.Errorf("resolve role %q: %w", roleName, err)
	}

	s.log.Warn().
		Str("role", roleName).
		Int64("fallback_role_id", s.defaultRoleID).
		Msg("role not found, assigning fallback role")
	return s.defaultRoleID, nil
}

func checkPassword(plaintext string) error {
	if len(plaintext) < minPasswordLength {
		return domain.ErrWeakPassword
	}
	if len(plaintext) > password.MaxLength {
		return fmt.Errorf("%w: password must be at most %d bytes", domain.ErrInvalidField, password.MaxLength)
	}
	return nil
}

type registrationShape struct {
	Username string `validate:"min=3,max=50"`
	Email    string `validate:"email"`
}

func (s *AuthService) validateShape(username, email string) error {
	err := s.validate.Struct(registrationShape{Username: username, Email: email})
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		fe := ve[0]
		switch fe.Field() {
		case "Username":
			return fmt.Errorf("%w: username must be between 3 and 50 characters", domain.ErrInvalidField)
		case "Email":
			return fmt.Errorf("%w: email must be a valid email", domain.ErrInvalidField)
		}
	}
	return fmt.Errorf("%w: %v", domain.ErrInvalidField, err)
}

func (s *AuthService) record(ctx context.Context, kind domain.AuthEventKind, userID int64, identifier, reason string) {
	s.audit.Record(domain.AuthEvent{
		Kind:       kind,
		UserID:     userID,
		Identifier: identifier,
		Reason:     reason,
		IP:         domain.ClientIP(ctx),
		Timestamp:  s.now().UTC(),
	})
}

type noopLimiter struct{}

func (noopLimiter) Allow(context.Context, string) error { return nil }
func (noopLimiter) Reset(context.Context, string) error { return nil }

type noopRecorder struct{}

func (noopRecorder) Record(domain.AuthEvent) {}
