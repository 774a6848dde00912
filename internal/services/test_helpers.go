package services

import (
	"context"
	"io"
	"log/slog"
	"time"

	"memberauth/internal/challenge"
	"memberauth/internal/config"
	"memberauth/internal/models"
	pkglogger "memberauth/pkg/logger"
)

// MockMemberRepository implements MemberRepository for testing
type MockMemberRepository struct {
	GetByIDFunc         func(ctx context.Context, id string) (*models.Member, error)
	GetByEmailFunc      func(ctx context.Context, email string) (*models.Member, error)
	GetByResetTokenFunc func(ctx context.Context, token string) (*models.Member, error)
	CreateFunc          func(ctx context.Context, member *models.Member) (*models.Member, error)
	IncrementFailedFunc func(ctx context.Context, id string) (int, error)
	ApplyLockoutFunc    func(ctx context.Context, id string, until time.Time) error
	ClearLockoutFunc    func(ctx context.Context, id string) error
	SetResetTokenFunc   func(ctx context.Context, id, token string, expiry time.Time) error
	RotatePasswordFunc  func(ctx context.Context, id, oldHash, newHash string, changedAt time.Time) error
}

func (m *MockMemberRepository) GetByID(ctx context.Context, id string) (*models.Member, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockMemberRepository) GetByEmail(ctx context.Context, email string) (*models.Member, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockMemberRepository) GetByResetToken(ctx context.Context, token string) (*models.Member, error) {
	if m.GetByResetTokenFunc != nil {
		return m.GetByResetTokenFunc(ctx, token)
	}
	return nil, models.ErrNotFound
}

func (m *MockMemberRepository) Create(ctx context.Context, member *models.Member) (*models.Member, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, member)
	}
	return nil, models.ErrInternalServer
}

func (m *MockMemberRepository) IncrementFailedLogins(ctx context.Context, id string) (int, error) {
	if m.IncrementFailedFunc != nil {
		return m.IncrementFailedFunc(ctx, id)
	}
	return 0, models.ErrNotFound
}

func (m *MockMemberRepository) ApplyLockout(ctx context.Context, id string, until time.Time) error {
	if m.ApplyLockoutFunc != nil {
		return m.ApplyLockoutFunc(ctx, id, until)
	}
	return nil
}

func (m *MockMemberRepository) ClearLockout(ctx context.Context, id string) error {
	if m.ClearLockoutFunc != nil {
		return m.ClearLockoutFunc(ctx, id)
	}
	return nil
}

func (m *MockMemberRepository) SetResetToken(ctx context.Context, id, token string, expiry time.Time) error {
	if m.SetResetTokenFunc != nil {
		return m.SetResetTokenFunc(ctx, id, token, expiry)
	}
	return nil
}

func (m *MockMemberRepository) RotatePassword(ctx context.Context, id, oldHash, newHash string, changedAt time.Time) error {
	if m.RotatePasswordFunc != nil {
		return m.RotatePasswordFunc(ctx, id, oldHash, newHash, changedAt)
	}
	return nil
}

// MockChallengeStore implements ChallengeStore for testing
type MockChallengeStore struct {
	SaveFunc          func(ctx context.Context, challengeID string, record *challenge.Challenge, ttl time.Duration) error
	GetFunc           func(ctx context.Context, challengeID string) (*challenge.Challenge, error)
	DeleteFunc        func(ctx context.Context, challengeID, memberID string) error
	RecordFailureFunc func(ctx context.Context, challengeID string, maxAttempts int) (int, bool, error)
}

func (m *MockChallengeStore) Save(ctx context.Context, challengeID string, record *challenge.Challenge, ttl time.Duration) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, challengeID, record, ttl)
	}
	return nil
}

func (m *MockChallengeStore) Get(ctx context.Context, challengeID string) (*challenge.Challenge, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, challengeID)
	}
	return nil, models.ErrChallengeNotFound
}

func (m *MockChallengeStore) Delete(ctx context.Context, challengeID, memberID string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, challengeID, memberID)
	}
	return nil
}

func (m *MockChallengeStore) RecordFailure(ctx context.Context, challengeID string, maxAttempts int) (int, bool, error) {
	if m.RecordFailureFunc != nil {
		return m.RecordFailureFunc(ctx, challengeID, maxAttempts)
	}
	return 0, false, models.ErrChallengeNotFound
}

// MockEmailSender implements EmailSender for testing
type MockEmailSender struct {
	SendTwoFactorCodeFunc func(ctx context.Context, email, code string, expiresAt time.Time) error
	SendResetLinkFunc     func(ctx context.Context, email, link string) error
}

func (m *MockEmailSender) SendTwoFactorCode(ctx context.Context, email, code string, expiresAt time.Time) error {
	if m.SendTwoFactorCodeFunc != nil {
		return m.SendTwoFactorCodeFunc(ctx, email, code, expiresAt)
	}
	return nil
}

func (m *MockEmailSender) SendResetLink(ctx context.Context, email, link string) error {
	if m.SendResetLinkFunc != nil {
		return m.SendResetLinkFunc(ctx, email, link)
	}
	return nil
}

// MockSessionRepository implements SessionRepository for testing
type MockSessionRepository struct {
	CreateFunc                 func(ctx context.Context, session *models.Session) (*models.Session, error)
	SlideFunc                  func(ctx context.Context, token string, idle time.Duration) (*models.Session, error)
	InvalidateFunc             func(ctx context.Context, token string) error
	InvalidateAllForMemberFunc func(ctx context.Context, memberID string) error
	DeactivateExpiredFunc      func(ctx context.Context) (int64, error)
}

func (m *MockSessionRepository) Create(ctx context.Context, session *models.Session) (*models.Session, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, session)
	}
	return session, nil
}

func (m *MockSessionRepository) Slide(ctx context.Context, token string, idle time.Duration) (*models.Session, error) {
	if m.SlideFunc != nil {
		return m.SlideFunc(ctx, token, idle)
	}
	return nil, models.ErrSessionInvalid
}

func (m *MockSessionRepository) Invalidate(ctx context.Context, token string) error {
	if m.InvalidateFunc != nil {
		return m.InvalidateFunc(ctx, token)
	}
	return nil
}

func (m *MockSessionRepository) InvalidateAllForMember(ctx context.Context, memberID string) error {
	if m.InvalidateAllForMemberFunc != nil {
		return m.InvalidateAllForMemberFunc(ctx, memberID)
	}
	return nil
}

func (m *MockSessionRepository) DeactivateExpired(ctx context.Context) (int64, error) {
	if m.DeactivateExpiredFunc != nil {
		return m.DeactivateExpiredFunc(ctx)
	}
	return 0, nil
}

// MockAuditRepository implements AuditRepository for testing
type MockAuditRepository struct {
	CreateFunc        func(ctx context.Context, event *models.AuditEvent) (*models.AuditEvent, error)
	ListForMemberFunc func(ctx context.Context, memberID string, limit int) ([]*models.AuditEvent, error)

	Events []*models.AuditEvent
}

func (m *MockAuditRepository) Create(ctx context.Context, event *models.AuditEvent) (*models.AuditEvent, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, event)
	}
	event.CreatedAt = time.Now()
	m.Events = append(m.Events, event)
	return event, nil
}

func (m *MockAuditRepository) ListForMember(ctx context.Context, memberID string, limit int) ([]*models.AuditEvent, error) {
	if m.ListForMemberFunc != nil {
		return m.ListForMemberFunc(ctx, memberID, limit)
	}
	return m.Events, nil
}

// Actions returns the recorded action codes in order.
func (m *MockAuditRepository) Actions() []string {
	actions := make([]string, 0, len(m.Events))
	for _, e := range m.Events {
		actions = append(actions, e.Action)
	}
	return actions
}

// MockPasswordHistoryRepository implements PasswordHistoryRepository for testing
type MockPasswordHistoryRepository struct {
	AppendFunc func(ctx context.Context, memberID, passwordHash string, changedAt time.Time) error
	LatestFunc func(ctx context.Context, memberID string, limit int) ([]*models.PasswordHistoryEntry, error)
}

func (m *MockPasswordHistoryRepository) Append(ctx context.Context, memberID, passwordHash string, changedAt time.Time) error {
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, memberID, passwordHash, changedAt)
	}
	return nil
}

func (m *MockPasswordHistoryRepository) Latest(ctx context.Context, memberID string, limit int) ([]*models.PasswordHistoryEntry, error) {
	if m.LatestFunc != nil {
		return m.LatestFunc(ctx, memberID, limit)
	}
	return []*models.PasswordHistoryEntry{}, nil
}

// MockSessionIssuer implements SessionIssuer for testing
type MockSessionIssuer struct {
	IssueFunc func(ctx context.Context, member *models.Member, ipAddress, userAgent string) (*models.Session, error)
}

func (m *MockSessionIssuer) Issue(ctx context.Context, member *models.Member, ipAddress, userAgent string) (*models.Session, error) {
	if m.IssueFunc != nil {
		return m.IssueFunc(ctx, member, ipAddress, userAgent)
	}
	return &models.Session{
		ID:       "sess-1",
		MemberID: member.ID,
		Token:    "session-token",
	}, nil
}

// MockSessionRevoker implements SessionRevoker for testing
type MockSessionRevoker struct {
	InvalidateAllForMemberFunc func(ctx context.Context, memberID string) error

	Revoked []string
}

func (m *MockSessionRevoker) InvalidateAllForMember(ctx context.Context, memberID string) error {
	if m.InvalidateAllForMemberFunc != nil {
		return m.InvalidateAllForMemberFunc(ctx, memberID)
	}
	m.Revoked = append(m.Revoked, memberID)
	return nil
}

// testLogger discards output
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testAuditService wires an AuditService over a mock repository
func testAuditService(repo *MockAuditRepository) *AuditService {
	logger := testLogger()
	return NewAuditService(repo, pkglogger.NewAuditLogger(logger), logger)
}

// testAuthConfig mirrors the documented production defaults
func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		PendingTokenSecret:  "test-secret-at-least-32-chars-long",
		PendingTokenExpiry:  5 * time.Minute,
		MaxPasswordFailures: 3,
		PasswordLockout:     15 * time.Minute,
		MaxChallengeTries:   3,
		ChallengeLockout:    5 * time.Minute,
		ChallengeExpiry:     5 * time.Minute,
		SessionIdle:         20 * time.Minute,
		SweepInterval:       10 * time.Minute,
		ChangeCooldown:      5 * time.Minute,
		ResetTokenTTL:       time.Hour,
		PasswordMaxAge:      90 * 24 * time.Hour,
	}
}
