package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"memberauth/internal/config"
	"memberauth/internal/models"
	pkgauth "memberauth/pkg/auth"
)

// SessionRepository defines the interface for session ledger access
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) (*models.Session, error)
	Slide(ctx context.Context, token string, idle time.Duration) (*models.Session, error)
	Invalidate(ctx context.Context, token string) error
	InvalidateAllForMember(ctx context.Context, memberID string) error
	DeactivateExpired(ctx context.Context) (int64, error)
}

// SessionService owns the single-active-session ledger: issuing, validating
// with a sliding expiry, and retiring sessions.
type SessionService struct {
	sessions SessionRepository
	members  MemberRepository
	audit    *AuditService
	cfg      config.AuthConfig
	logger   *slog.Logger
}

func NewSessionService(
	sessions SessionRepository,
	members MemberRepository,
	audit *AuditService,
	cfg config.AuthConfig,
	logger *slog.Logger,
) *SessionService {
	return &SessionService{
		sessions: sessions,
		members:  members,
		audit:    audit,
		cfg:      cfg,
		logger:   logger,
	}
}

// Issue mints an opaque token and writes the new session, superseding any
// the member already had.
func (s *SessionService) Issue(ctx context.Context, member *models.Member, ipAddress, userAgent string) (*models.Session, error) {
	token, err := pkgauth.GenerateSessionToken()
	if err != nil {
		s.logger.ErrorContext(ctx, "session token generation failed", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	session := &models.Session{
		MemberID:  member.ID,
		Token:     token,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		ExpiresAt: time.Now().Add(s.cfg.SessionIdle),
	}

	created, err := s.sessions.Create(ctx, session)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to create session",
			slog.String("member_id", member.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return created, nil
}

// Validate checks an opaque token, slides the expiry forward, and returns the
// member it belongs to. Implements the middleware's SessionValidator.
func (s *SessionService) Validate(ctx context.Context, token string) (*models.Member, *models.Session, error) {
	session, err := s.sessions.Slide(ctx, token, s.cfg.SessionIdle)
	if err != nil {
		if errors.Is(err, models.ErrSessionInvalid) {
			return nil, nil, models.ErrSessionInvalid
		}
		s.logger.ErrorContext(ctx, "session validation failed", slog.Any("error", err))
		return nil, nil, models.ErrInternalServer
	}

	member, err := s.members.GetByID(ctx, session.MemberID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil, models.ErrSessionInvalid
		}
		s.logger.ErrorContext(ctx, "failed to load session member", slog.Any("error", err))
		return nil, nil, models.ErrInternalServer
	}

	return member, session, nil
}

// Logout retires the presented session. Logging out a session that is already
// gone is not an error worth surfacing.
func (s *SessionService) Logout(ctx context.Context, member *models.Member, token, ipAddress string) error {
	if err := s.sessions.Invalidate(ctx, token); err != nil && !errors.Is(err, models.ErrNotFound) {
		s.logger.ErrorContext(ctx, "failed to invalidate session",
			slog.String("member_id", member.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	return s.audit.Record(ctx, member.ID, models.AuditLogout, "", ipAddress, true)
}

// InvalidateAllForMember clears every active session the member holds.
func (s *SessionService) InvalidateAllForMember(ctx context.Context, memberID string) error {
	return s.sessions.InvalidateAllForMember(ctx, memberID)
}

// SweepExpired retires sessions past their expiry; validation never depends
// on it.
func (s *SessionService) SweepExpired(ctx context.Context) (int64, error) {
	return s.sessions.DeactivateExpired(ctx)
}
