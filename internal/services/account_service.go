package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"memberauth/internal/models"
	pkgauth "memberauth/pkg/auth"
)

// AccountService handles member registration
type AccountService struct {
	members MemberRepository
	history PasswordHistoryRepository
	audit   *AuditService
	logger  *slog.Logger
}

func NewAccountService(
	members MemberRepository,
	history PasswordHistoryRepository,
	audit *AuditService,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		members: members,
		history: history,
		audit:   audit,
		logger:  logger,
	}
}

// Register creates a member account. The initial hash is seeded into the
// password history so the reuse ban covers it from day one.
func (s *AccountService) Register(ctx context.Context, email, password, firstName, lastName, ipAddress string) (*models.Member, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, models.ErrBadRequest
	}

	if err := pkgauth.ValidatePassword(password); err != nil {
		return nil, models.ErrWeakPassword
	}

	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	now := time.Now()
	member := &models.Member{
		Email:              email,
		PasswordHash:       hash,
		FirstName:          strings.TrimSpace(firstName),
		LastName:           strings.TrimSpace(lastName),
		LastPasswordChange: &now,
	}

	created, err := s.members.Create(ctx, member)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			// The unique index on lower(email) is the authority here;
			// a pre-check would only race against it.
			return nil, models.ErrConflict
		}
		s.logger.ErrorContext(ctx, "failed to create member", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := s.history.Append(ctx, created.ID, hash, now); err != nil {
		s.logger.ErrorContext(ctx, "failed to seed password history",
			slog.String("member_id", created.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := s.audit.Record(ctx, created.ID, models.AuditRegistration, "", ipAddress, true); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "member registered", slog.String("member_id", created.ID))
	return created, nil
}
