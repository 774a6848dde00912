package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"memberauth/internal/config"
	"memberauth/internal/models"
	pkgauth "memberauth/pkg/auth"

	"github.com/google/uuid"
)

// ResetService owns the forgot-password flow: enumeration-silent link
// issuance and single-use redemption.
type ResetService struct {
	members   MemberRepository
	passwords *PasswordService
	sessions  SessionRevoker
	email     EmailSender
	audit     *AuditService
	cfg       config.AuthConfig
	emailCfg  config.EmailConfig
	logger    *slog.Logger
}

func NewResetService(
	members MemberRepository,
	passwords *PasswordService,
	sessions SessionRevoker,
	email EmailSender,
	audit *AuditService,
	cfg config.AuthConfig,
	emailCfg config.EmailConfig,
	logger *slog.Logger,
) *ResetService {
	return &ResetService{
		members:   members,
		passwords: passwords,
		sessions:  sessions,
		email:     email,
		audit:     audit,
		cfg:       cfg,
		emailCfg:  emailCfg,
		logger:    logger,
	}
}

// RequestReset issues a reset link when the email maps to an account, and
// reveals nothing either way. The caller gets nil regardless of account
// existence; only infrastructure failures surface.
func (s *ResetService) RequestReset(ctx context.Context, email, ipAddress string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil
	}

	member, err := s.members.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Same outward behavior as the found case.
			return nil
		}
		s.logger.ErrorContext(ctx, "failed to look up member for reset", slog.Any("error", err))
		return models.ErrInternalServer
	}

	token := uuid.New().String()
	expiry := time.Now().Add(s.cfg.ResetTokenTTL)

	if err := s.members.SetResetToken(ctx, member.ID, token, expiry); err != nil {
		s.logger.ErrorContext(ctx, "failed to store reset token",
			slog.String("member_id", member.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	link := fmt.Sprintf("%s/reset-password?token=%s", strings.TrimRight(s.emailCfg.ResetURLBase, "/"), url.QueryEscape(token))
	if err := ValidateResetLink(link, s.emailCfg.ResetURLBase); err != nil {
		// A link that escapes the trusted origin never leaves the building.
		s.logger.ErrorContext(ctx, "reset link failed origin check", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.email.SendResetLink(ctx, member.Email, link); err != nil {
		return models.ErrEmailDelivery
	}

	return s.audit.Record(ctx, member.ID, models.AuditResetLinkSent, "", ipAddress, true)
}

// RedeemReset swaps the password for the holder of a live reset token. The
// token works once: rotation clears it, and a failed attempt leaves it
// intact only while it is still within its expiry window.
func (s *ResetService) RedeemReset(ctx context.Context, token, newPassword, ipAddress string) error {
	if token == "" {
		return models.ErrResetTokenInvalid
	}

	member, err := s.members.GetByResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrResetTokenInvalid
		}
		s.logger.ErrorContext(ctx, "failed to look up reset token", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if member.ResetTokenExpiry == nil || time.Now().After(*member.ResetTokenExpiry) {
		return models.ErrResetTokenInvalid
	}

	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return models.ErrWeakPassword
	}

	// Reset digs one entry deeper than an ordinary change: the member may
	// be trying to return to a password from before their last rotation.
	if err := s.passwords.checkReuse(ctx, member, newPassword, 2); err != nil {
		return err
	}

	newHash, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to hash reset password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	// RotatePassword also clears the token fields, consuming the link.
	if err := s.members.RotatePassword(ctx, member.ID, member.PasswordHash, newHash, time.Now()); err != nil {
		s.logger.ErrorContext(ctx, "failed to rotate password on reset",
			slog.String("member_id", member.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	// Whoever held a session before the reset does not keep it.
	if err := s.sessions.InvalidateAllForMember(ctx, member.ID); err != nil {
		s.logger.ErrorContext(ctx, "failed to clear sessions on reset",
			slog.String("member_id", member.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.InfoContext(ctx, "password reset", slog.String("member_id", member.ID))

	return s.audit.Record(ctx, member.ID, models.AuditPasswordReset, "", ipAddress, true)
}
