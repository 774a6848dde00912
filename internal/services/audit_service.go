package services

import (
	"context"
	"log/slog"

	"memberauth/internal/models"
	pkglogger "memberauth/pkg/logger"
)

// AuditRepository defines the interface for audit trail persistence
type AuditRepository interface {
	Create(ctx context.Context, event *models.AuditEvent) (*models.AuditEvent, error)
	ListForMember(ctx context.Context, memberID string, limit int) ([]*models.AuditEvent, error)
}

// AuditService appends audit events with a dual-write pattern: the database
// row is the record of authority, slog gives operators an immediate view.
// A failed database write fails the operation that produced the event.
type AuditService struct {
	repo        AuditRepository
	auditLogger *pkglogger.AuditLogger
	logger      *slog.Logger
}

func NewAuditService(repo AuditRepository, auditLogger *pkglogger.AuditLogger, logger *slog.Logger) *AuditService {
	return &AuditService{
		repo:        repo,
		auditLogger: auditLogger,
		logger:      logger,
	}
}

// Record appends one event. memberID may be empty for events with no resolved
// account (unknown email on login).
func (s *AuditService) Record(ctx context.Context, memberID, action, detail, ipAddress string, success bool) error {
	event := &models.AuditEvent{
		Action:    action,
		Detail:    detail,
		IPAddress: ipAddress,
	}
	if memberID != "" {
		event.MemberID = &memberID
	}

	s.auditLogger.Log(pkglogger.AuditEvent{
		Action:    action,
		MemberID:  memberID,
		IPAddress: ipAddress,
		Success:   success,
		Detail:    detail,
	})

	if _, err := s.repo.Create(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist audit event",
			slog.String("action", action),
			slog.Any("error", err),
		)
		return models.ErrInternalServer
	}

	return nil
}

// History returns recent audit events for a member.
func (s *AuditService) History(ctx context.Context, memberID string, limit int) ([]*models.AuditEvent, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	events, err := s.repo.ListForMember(ctx, memberID, limit)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list audit events",
			slog.String("member_id", memberID),
			slog.Any("error", err),
		)
		return nil, models.ErrInternalServer
	}
	return events, nil
}
