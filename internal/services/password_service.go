package services

import (
	"context"
	"log/slog"
	"math"
	"time"

	"memberauth/internal/config"
	"memberauth/internal/models"
	pkgauth "memberauth/pkg/auth"
)

// PasswordHistoryRepository defines the interface for superseded hash access
type PasswordHistoryRepository interface {
	Append(ctx context.Context, memberID, passwordHash string, changedAt time.Time) error
	Latest(ctx context.Context, memberID string, limit int) ([]*models.PasswordHistoryEntry, error)
}

// PasswordService enforces the change policy: current-password recheck,
// change cooldown, strength rules and the reuse ban.
type PasswordService struct {
	members MemberRepository
	history PasswordHistoryRepository
	audit   *AuditService
	cfg     config.AuthConfig
	logger  *slog.Logger
}

func NewPasswordService(
	members MemberRepository,
	history PasswordHistoryRepository,
	audit *AuditService,
	cfg config.AuthConfig,
	logger *slog.Logger,
) *PasswordService {
	return &PasswordService{
		members: members,
		history: history,
		audit:   audit,
		cfg:     cfg,
		logger:  logger,
	}
}

// Change rotates an authenticated member's password. The session survives the
// change; only the hash moves.
func (s *PasswordService) Change(ctx context.Context, member *models.Member, currentPassword, newPassword, ipAddress string) error {
	if err := pkgauth.ComparePassword(member.PasswordHash, currentPassword); err != nil {
		return models.ErrWrongCurrentPassword
	}

	now := time.Now()
	if member.LastPasswordChange != nil {
		elapsed := now.Sub(*member.LastPasswordChange)
		if elapsed < s.cfg.ChangeCooldown {
			left := int(math.Ceil((s.cfg.ChangeCooldown - elapsed).Minutes()))
			if left < 1 {
				left = 1
			}
			return &models.CooldownError{MinutesLeft: left}
		}
	}

	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return models.ErrWeakPassword
	}

	if err := s.checkReuse(ctx, member, newPassword, 1); err != nil {
		return err
	}

	newHash, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to hash new password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.members.RotatePassword(ctx, member.ID, member.PasswordHash, newHash, now); err != nil {
		s.logger.ErrorContext(ctx, "failed to rotate password",
			slog.String("member_id", member.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.InfoContext(ctx, "password changed", slog.String("member_id", member.ID))

	return s.audit.Record(ctx, member.ID, models.AuditPasswordChanged, "", ipAddress, true)
}

// checkReuse compares the plaintext candidate against the current hash and up
// to historyDepth most recent superseded hashes. Hashes are salted, so the
// only possible comparison is bcrypt against each stored value.
func (s *PasswordService) checkReuse(ctx context.Context, member *models.Member, candidate string, historyDepth int) error {
	if err := pkgauth.ComparePassword(member.PasswordHash, candidate); err == nil {
		return models.ErrPasswordSameAsCurrent
	}

	entries, err := s.history.Latest(ctx, member.ID, historyDepth)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to load password history",
			slog.String("member_id", member.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	for _, entry := range entries {
		if err := pkgauth.ComparePassword(entry.PasswordHash, candidate); err == nil {
			return models.ErrPasswordReused
		}
	}

	return nil
}

// ChangeRequired reports whether the member is past the password-age nudge.
func (s *PasswordService) ChangeRequired(member *models.Member) bool {
	return member.PasswordExpired(time.Now(), s.cfg.PasswordMaxAge)
}
