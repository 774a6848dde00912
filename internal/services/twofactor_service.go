package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"time"

	"memberauth/internal/auth"
	"memberauth/internal/config"
	"memberauth/internal/models"
)

// SessionIssuer creates a session after the second factor is verified
type SessionIssuer interface {
	Issue(ctx context.Context, member *models.Member, ipAddress, userAgent string) (*models.Session, error)
}

// SessionRevoker clears every active session a member holds
type SessionRevoker interface {
	InvalidateAllForMember(ctx context.Context, memberID string) error
}

// VerifiedLogin is the outcome of a correct emailed code.
type VerifiedLogin struct {
	SessionToken           string    `json:"session_token"`
	ExpiresAt              time.Time `json:"expires_at"`
	PasswordChangeRequired bool      `json:"password_change_required"`
}

// TwoFactorService runs the second authentication step. Only a correct code
// clears the password failure counter; three wrong codes cost the member a
// short lockout and any session they still held.
type TwoFactorService struct {
	members    MemberRepository
	challenges ChallengeStore
	pending    *auth.PendingTokenManager
	sessions   SessionIssuer
	revoker    SessionRevoker
	audit      *AuditService
	cfg        config.AuthConfig
	logger     *slog.Logger
}

func NewTwoFactorService(
	members MemberRepository,
	challenges ChallengeStore,
	pending *auth.PendingTokenManager,
	sessions SessionIssuer,
	revoker SessionRevoker,
	audit *AuditService,
	cfg config.AuthConfig,
	logger *slog.Logger,
) *TwoFactorService {
	return &TwoFactorService{
		members:    members,
		challenges: challenges,
		pending:    pending,
		sessions:   sessions,
		revoker:    revoker,
		audit:      audit,
		cfg:        cfg,
		logger:     logger,
	}
}

// Verify exchanges a pending token plus the emailed code for a session.
func (s *TwoFactorService) Verify(ctx context.Context, pendingToken, code, ipAddress, userAgent string) (*VerifiedLogin, error) {
	claims, err := s.pending.Validate(pendingToken)
	if err != nil {
		return nil, models.ErrUnauthorized
	}

	member, err := s.members.GetByID(ctx, claims.MemberID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		s.logger.ErrorContext(ctx, "failed to load member", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	now := time.Now()
	if member.Locked(now) {
		return nil, &models.LockedError{RemainingMinutes: remainingMinutes(*member.LockedUntil, now)}
	}

	record, err := s.challenges.Get(ctx, claims.ChallengeID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrChallengeExpired):
			_ = s.audit.Record(ctx, member.ID, models.AuditTwoFactorExpired, "", ipAddress, false)
			return nil, models.ErrChallengeExpired
		case errors.Is(err, models.ErrChallengeNotFound):
			return nil, models.ErrChallengeNotFound
		default:
			s.logger.ErrorContext(ctx, "challenge lookup failed", slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
	}

	// The pending token binds member and challenge; a mismatch means the
	// token is being replayed against someone else's challenge.
	if record.MemberID != claims.MemberID {
		return nil, models.ErrUnauthorized
	}

	if subtle.ConstantTimeCompare([]byte(record.Code), []byte(code)) != 1 {
		return nil, s.recordFailedCode(ctx, member, claims.ChallengeID, ipAddress)
	}

	return s.completeLogin(ctx, member, claims.ChallengeID, ipAddress, userAgent)
}

func (s *TwoFactorService) recordFailedCode(ctx context.Context, member *models.Member, challengeID, ipAddress string) error {
	attempts, exceeded, err := s.challenges.RecordFailure(ctx, challengeID, s.cfg.MaxChallengeTries)
	if err != nil {
		if errors.Is(err, models.ErrChallengeExpired) || errors.Is(err, models.ErrChallengeNotFound) {
			return err
		}
		s.logger.ErrorContext(ctx, "failed to record challenge failure", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.audit.Record(ctx, member.ID, models.AuditTwoFactorFailed, "", ipAddress, false); err != nil {
		return err
	}

	if exceeded {
		until := time.Now().Add(s.cfg.ChallengeLockout)
		if err := s.members.ApplyLockout(ctx, member.ID, until); err != nil {
			s.logger.ErrorContext(ctx, "failed to apply challenge lockout",
				slog.String("member_id", member.ID), slog.Any("error", err))
			return models.ErrInternalServer
		}
		// A member failing the second factor repeatedly forfeits any
		// session they still hold.
		if err := s.revoker.InvalidateAllForMember(ctx, member.ID); err != nil {
			s.logger.ErrorContext(ctx, "failed to clear sessions on lockout",
				slog.String("member_id", member.ID), slog.Any("error", err))
			return models.ErrInternalServer
		}
		if err := s.audit.Record(ctx, member.ID, models.AuditAccountLocked, "second factor", ipAddress, false); err != nil {
			return err
		}
		return models.ErrChallengeLockedOut
	}

	return &models.ChallengeInvalidError{Remaining: s.cfg.MaxChallengeTries - attempts}
}

func (s *TwoFactorService) completeLogin(ctx context.Context, member *models.Member, challengeID, ipAddress, userAgent string) (*VerifiedLogin, error) {
	if err := s.challenges.Delete(ctx, challengeID, member.ID); err != nil {
		s.logger.ErrorContext(ctx, "failed to consume challenge", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	// Counter and lockout clear only now, on a fully verified login.
	if err := s.members.ClearLockout(ctx, member.ID); err != nil {
		s.logger.ErrorContext(ctx, "failed to clear failure counter",
			slog.String("member_id", member.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	session, err := s.sessions.Issue(ctx, member, ipAddress, userAgent)
	if err != nil {
		return nil, err
	}

	if err := s.audit.Record(ctx, member.ID, models.AuditTwoFactorSuccess, "", ipAddress, true); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "member logged in", slog.String("member_id", member.ID))

	return &VerifiedLogin{
		SessionToken:           session.Token,
		ExpiresAt:              session.ExpiresAt,
		PasswordChangeRequired: member.PasswordExpired(time.Now(), s.cfg.PasswordMaxAge),
	}, nil
}
