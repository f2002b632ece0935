package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/giftcard/giftcard-api/internal/core/domain"
	"github.com/giftcard/giftcard-api/internal/core/ports"
)

type auditService struct {
	repo ports.AuditRepository
	log  zerolog.Logger
}

// NewAuditService returns an AuditService that writes events to repo.
func NewAuditService(repo ports.AuditRepository, log zerolog.Logger) ports.AuditService {
	return &auditService{repo: repo, log: log}
}

// Process persists a single auth event.
func (s *auditService) Process(ctx context.Context, event domain.AuthEvent) error {
	if event.Kind == "" {
		return fmt.Errorf("process auth event: empty kind")
	}
	if event.Timestamp.IsZero() {
		return fmt.Errorf("process auth event %s: missing timestamp", event.Kind)
	}

	if err := s.repo.InsertEvent(ctx, &event); err != nil {
		return fmt.Errorf("process auth event %s: %w", event.Kind, err)
	}

	s.log.Debug().
		Str("kind", string(event.Kind)).
		Int64("user_id", event.UserID).
		Str("reason", event.Reason).
		Msg("auth event stored")
	return nil
}
