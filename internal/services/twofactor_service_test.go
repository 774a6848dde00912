package services

import (
	"context"
	"testing"
	"time"

	"memberauth/internal/challenge"
	"memberauth/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTwoFactorService(
	members *MockMemberRepository,
	store *MockChallengeStore,
	issuer *MockSessionIssuer,
	revoker *MockSessionRevoker,
	audit *MockAuditRepository,
) *TwoFactorService {
	return NewTwoFactorService(
		members, store, testPendingManager(), issuer, revoker,
		testAuditService(audit), testAuthConfig(), testLogger(),
	)
}

func verifyFixture(t *testing.T) (*models.Member, *challenge.Challenge, string) {
	t.Helper()

	member := &models.Member{
		ID:           "member-1",
		Email:        "member@example.com",
		PasswordHash: quickHash(t, "CorrectHorse1@"),
	}
	recent := time.Now().Add(-24 * time.Hour)
	member.LastPasswordChange = &recent

	record := &challenge.Challenge{
		MemberID:  "member-1",
		Email:     member.Email,
		Code:      "483920",
		ExpiresAt: time.Now().Add(5 * time.Minute).Unix(),
	}

	pendingToken, err := testPendingManager().Generate("member-1", "ch-1")
	require.NoError(t, err)

	return member, record, pendingToken
}

func TestVerifyGarbagePendingToken(t *testing.T) {
	svc := newTwoFactorService(&MockMemberRepository{}, &MockChallengeStore{}, &MockSessionIssuer{}, &MockSessionRevoker{}, &MockAuditRepository{})

	_, err := svc.Verify(context.Background(), "not-a-jwt", "123456", "", "")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestVerifyCorrectCode(t *testing.T) {
	member, record, pendingToken := verifyFixture(t)

	cleared := false
	members := &MockMemberRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Member, error) {
			return member, nil
		},
		ClearLockoutFunc: func(ctx context.Context, id string) error {
			cleared = true
			return nil
		},
	}

	consumed := false
	store := &MockChallengeStore{
		GetFunc: func(ctx context.Context, challengeID string) (*challenge.Challenge, error) {
			assert.Equal(t, "ch-1", challengeID)
			return record, nil
		},
		DeleteFunc: func(ctx context.Context, challengeID, memberID string) error {
			consumed = true
			return nil
		},
	}

	issuer := &MockSessionIssuer{
		IssueFunc: func(ctx context.Context, m *models.Member, ip, ua string) (*models.Session, error) {
			return &models.Session{
				MemberID:  m.ID,
				Token:     "opaque-session-token",
				ExpiresAt: time.Now().Add(20 * time.Minute),
			}, nil
		},
	}

	auditRepo := &MockAuditRepository{}
	svc := newTwoFactorService(members, store, issuer, &MockSessionRevoker{}, auditRepo)

	result, err := svc.Verify(context.Background(), pendingToken, "483920", "203.0.113.7", "test-agent")
	require.NoError(t, err)

	assert.Equal(t, "opaque-session-token", result.SessionToken)
	assert.False(t, result.PasswordChangeRequired)
	assert.True(t, cleared, "failure counter clears only on verified login")
	assert.True(t, consumed, "challenge is single use")
	assert.Equal(t, []string{models.AuditTwoFactorSuccess}, auditRepo.Actions())
}

func TestVerifyPasswordAgeNudge(t *testing.T) {
	member, record, pendingToken := verifyFixture(t)
	stale := time.Now().Add(-100 * 24 * time.Hour)
	member.LastPasswordChange = &stale

	members := &MockMemberRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Member, error) {
			return member, nil
		},
	}
	store := &MockChallengeStore{
		GetFunc: func(ctx context.Context, challengeID string) (*challenge.Challenge, error) {
			return record, nil
		},
	}

	svc := newTwoFactorService(members, store, &MockSessionIssuer{}, &MockSessionRevoker{}, &MockAuditRepository{})

	result, err := svc.Verify(context.Background(), pendingToken, "483920", "", "")
	require.NoError(t, err)
	assert.True(t, result.PasswordChangeRequired)
}

func TestVerifyWrongCodeWithAttemptsLeft(t *testing.T) {
	member, record, pendingToken := verifyFixture(t)

	members := &MockMemberRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Member, error) {
			return member, nil
		},
	}
	store := &MockChallengeStore{
		GetFunc: func(ctx context.Context, challengeID string) (*challenge.Challenge, error) {
			return record, nil
		},
		RecordFailureFunc: func(ctx context.Context, challengeID string, maxAttempts int) (int, bool, error) {
			return 1, false, nil
		},
	}

	auditRepo := &MockAuditRepository{}
	svc := newTwoFactorService(members, store, &MockSessionIssuer{}, &MockSessionRevoker{}, auditRepo)

	_, err := svc.Verify(context.Background(), pendingToken, "000000", "", "")

	var invalid *models.ChallengeInvalidError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, 2, invalid.Remaining)
	assert.Equal(t, []string{models.AuditTwoFactorFailed}, auditRepo.Actions())
}

func TestVerifyThirdWrongCodeLocksAndClearsSessions(t *testing.T) {
	member, record, pendingToken := verifyFixture(t)

	var lockedUntil time.Time
	members := &MockMemberRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Member, error) {
			return member, nil
		},
		ApplyLockoutFunc: func(ctx context.Context, id string, until time.Time) error {
			lockedUntil = until
			return nil
		},
	}
	store := &MockChallengeStore{
		GetFunc: func(ctx context.Context, challengeID string) (*challenge.Challenge, error) {
			return record, nil
		},
		RecordFailureFunc: func(ctx context.Context, challengeID string, maxAttempts int) (int, bool, error) {
			return 3, true, nil
		},
	}
	revoker := &MockSessionRevoker{}

	auditRepo := &MockAuditRepository{}
	svc := newTwoFactorService(members, store, &MockSessionIssuer{}, revoker, auditRepo)

	_, err := svc.Verify(context.Background(), pendingToken, "000000", "", "")

	assert.ErrorIs(t, err, models.ErrChallengeLockedOut)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), lockedUntil, 2*time.Second)
	assert.Equal(t, []string{"member-1"}, revoker.Revoked)
	assert.Equal(t, []string{models.AuditTwoFactorFailed, models.AuditAccountLocked}, auditRepo.Actions())
}

func TestVerifyExpiredChallenge(t *testing.T) {
	member, _, pendingToken := verifyFixture(t)

	members := &MockMemberRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Member, error) {
			return member, nil
		},
	}
	store := &MockChallengeStore{
		GetFunc: func(ctx context.Context, challengeID string) (*challenge.Challenge, error) {
			return nil, models.ErrChallengeExpired
		},
	}

	auditRepo := &MockAuditRepository{}
	svc := newTwoFactorService(members, store, &MockSessionIssuer{}, &MockSessionRevoker{}, auditRepo)

	_, err := svc.Verify(context.Background(), pendingToken, "483920", "", "")

	assert.ErrorIs(t, err, models.ErrChallengeExpired)
	assert.Equal(t, []string{models.AuditTwoFactorExpired}, auditRepo.Actions())
}

func TestVerifyLockedMember(t *testing.T) {
	member, record, pendingToken := verifyFixture(t)
	until := time.Now().Add(4 * time.Minute)
	member.LockedUntil = &until

	members := &MockMemberRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Member, error) {
			return member, nil
		},
	}
	store := &MockChallengeStore{
		GetFunc: func(ctx context.Context, challengeID string) (*challenge.Challenge, error) {
			return record, nil
		},
	}

	svc := newTwoFactorService(members, store, &MockSessionIssuer{}, &MockSessionRevoker{}, &MockAuditRepository{})

	_, err := svc.Verify(context.Background(), pendingToken, "483920", "", "")

	var locked *models.LockedError
	require.ErrorAs(t, err, &locked)
	assert.Equal(t, 4, locked.RemainingMinutes)
}

func TestVerifyChallengeMemberMismatch(t *testing.T) {
	member, record, pendingToken := verifyFixture(t)
	record.MemberID = "someone-else"

	members := &MockMemberRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Member, error) {
			return member, nil
		},
	}
	store := &MockChallengeStore{
		GetFunc: func(ctx context.Context, challengeID string) (*challenge.Challenge, error) {
			return record, nil
		},
	}

	svc := newTwoFactorService(members, store, &MockSessionIssuer{}, &MockSessionRevoker{}, &MockAuditRepository{})

	_, err := svc.Verify(context.Background(), pendingToken, "483920", "", "")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}
