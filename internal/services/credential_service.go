package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"strings"
	"time"

	"memberauth/internal/auth"
	"memberauth/internal/challenge"
	"memberauth/internal/config"
	"memberauth/internal/models"
	pkgauth "memberauth/pkg/auth"

	"github.com/google/uuid"
)

// MemberRepository defines the interface for member data access
type MemberRepository interface {
	GetByID(ctx context.Context, id string) (*models.Member, error)
	GetByEmail(ctx context.Context, email string) (*models.Member, error)
	GetByResetToken(ctx context.Context, token string) (*models.Member, error)
	Create(ctx context.Context, member *models.Member) (*models.Member, error)
	IncrementFailedLogins(ctx context.Context, id string) (int, error)
	ApplyLockout(ctx context.Context, id string, until time.Time) error
	ClearLockout(ctx context.Context, id string) error
	SetResetToken(ctx context.Context, id, token string, expiry time.Time) error
	RotatePassword(ctx context.Context, id, oldHash, newHash string, changedAt time.Time) error
}

// ChallengeStore defines the interface for pending second-factor challenges
type ChallengeStore interface {
	Save(ctx context.Context, challengeID string, record *challenge.Challenge, ttl time.Duration) error
	Get(ctx context.Context, challengeID string) (*challenge.Challenge, error)
	Delete(ctx context.Context, challengeID, memberID string) error
	RecordFailure(ctx context.Context, challengeID string, maxAttempts int) (int, bool, error)
}

// PendingLogin is the outcome of a correct password: a handle the client
// exchanges, together with the emailed code, for a session.
type PendingLogin struct {
	PendingToken string    `json:"pending_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// CredentialService runs the first authentication step: password check,
// lockout enforcement and second-factor issuance. A correct password never
// yields a session directly.
type CredentialService struct {
	members    MemberRepository
	challenges ChallengeStore
	pending    *auth.PendingTokenManager
	email      EmailSender
	audit      *AuditService
	cfg        config.AuthConfig
	logger     *slog.Logger
}

func NewCredentialService(
	members MemberRepository,
	challenges ChallengeStore,
	pending *auth.PendingTokenManager,
	email EmailSender,
	audit *AuditService,
	cfg config.AuthConfig,
	logger *slog.Logger,
) *CredentialService {
	return &CredentialService{
		members:    members,
		challenges: challenges,
		pending:    pending,
		email:      email,
		audit:      audit,
		cfg:        cfg,
		logger:     logger,
	}
}

// remainingMinutes rounds a lockout remainder up, so the member is never told
// a number smaller than the actual wait.
func remainingMinutes(until time.Time, now time.Time) int {
	return int(math.Ceil(until.Sub(now).Minutes()))
}

// generateCode returns a uniform 6-digit code from a CSPRNG.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("failed to generate verification code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// Login verifies the password and, when correct, issues an emailed challenge
// plus a pending token. The failure counter is NOT cleared here; only a
// verified second factor does that.
func (s *CredentialService) Login(ctx context.Context, email, password, ipAddress string) (*PendingLogin, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, models.ErrInvalidCredentials
	}

	member, err := s.members.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Burn the same bcrypt work as the wrong-password path, or the
			// response time tells the caller which emails have accounts.
			pkgauth.CompareDummyPassword(password)
			_ = s.audit.Record(ctx, "", models.AuditFailedLoginUnknownEmail, email, ipAddress, false)
			return nil, models.ErrInvalidCredentials
		}
		s.logger.ErrorContext(ctx, "failed to look up member", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	// Lockout is checked before the password is even compared: a locked
	// account reveals nothing about credential validity.
	now := time.Now()
	if member.Locked(now) {
		return nil, &models.LockedError{RemainingMinutes: remainingMinutes(*member.LockedUntil, now)}
	}

	if err := pkgauth.ComparePassword(member.PasswordHash, password); err != nil {
		return nil, s.recordFailedPassword(ctx, member, ipAddress)
	}

	return s.issueChallenge(ctx, member, ipAddress)
}

func (s *CredentialService) recordFailedPassword(ctx context.Context, member *models.Member, ipAddress string) error {
	count, err := s.members.IncrementFailedLogins(ctx, member.ID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to increment login failures",
			slog.String("member_id", member.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.audit.Record(ctx, member.ID, models.AuditFailedLoginWrongPass, "", ipAddress, false); err != nil {
		return err
	}

	if count >= s.cfg.MaxPasswordFailures {
		until := time.Now().Add(s.cfg.PasswordLockout)
		if err := s.members.ApplyLockout(ctx, member.ID, until); err != nil {
			s.logger.ErrorContext(ctx, "failed to apply lockout",
				slog.String("member_id", member.ID), slog.Any("error", err))
			return models.ErrInternalServer
		}
		if err := s.audit.Record(ctx, member.ID, models.AuditAccountLocked, "", ipAddress, false); err != nil {
			return err
		}
		return &models.LockedError{RemainingMinutes: remainingMinutes(until, time.Now())}
	}

	return models.ErrInvalidCredentials
}

func (s *CredentialService) issueChallenge(ctx context.Context, member *models.Member, ipAddress string) (*PendingLogin, error) {
	code, err := generateCode()
	if err != nil {
		s.logger.ErrorContext(ctx, "code generation failed", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	challengeID := uuid.New().String()
	expiresAt := time.Now().Add(s.cfg.ChallengeExpiry)

	record := &challenge.Challenge{
		MemberID:  member.ID,
		Email:     member.Email,
		Code:      code,
		ExpiresAt: expiresAt.Unix(),
	}
	if err := s.challenges.Save(ctx, challengeID, record, s.cfg.ChallengeExpiry); err != nil {
		s.logger.ErrorContext(ctx, "failed to store challenge",
			slog.String("member_id", member.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := s.email.SendTwoFactorCode(ctx, member.Email, code, expiresAt); err != nil {
		// The challenge is unusable without its code; drop it.
		_ = s.challenges.Delete(ctx, challengeID, member.ID)
		return nil, models.ErrEmailDelivery
	}

	if err := s.audit.Record(ctx, member.ID, models.AuditTwoFactorSent, "", ipAddress, true); err != nil {
		return nil, err
	}

	pendingToken, err := s.pending.Generate(member.ID, challengeID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to sign pending token",
			slog.String("member_id", member.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.InfoContext(ctx, "second factor issued", slog.String("member_id", member.ID))

	return &PendingLogin{
		PendingToken: pendingToken,
		ExpiresAt:    expiresAt,
	}, nil
}
