package ports

import (
	"context"

	"github.com/giftcard/giftcard-api/internal/core/domain"
)

// AuditRecorder accepts auth events for asynchronous persistence.
// Record never blocks the caller.
type AuditRecorder interface {
	Record(event domain.AuthEvent)
}

// AuditService persists a single auth event.
type AuditService interface {
	Process(ctx context.Context, event domain.AuthEvent) error
}

// LoginLimiter throttles repeated login attempts per identifier.
type LoginLimiter interface {
	// Allow returns domain.ErrTooManyAttempts once the identifier exceeded its budget.
	Allow(ctx context.Context, identifier string) error
	Reset(ctx context.Context, identifier string) error
}
