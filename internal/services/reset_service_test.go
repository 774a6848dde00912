package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"memberauth/internal/config"
	"memberauth/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEmailConfig() config.EmailConfig {
	return config.EmailConfig{
		Provider:     "smtp",
		FromAddress:  "no-reply@example.com",
		FromName:     "Member Portal",
		ResetURLBase: "https://portal.example.com",
	}
}

func newResetService(members *MockMemberRepository, history *MockPasswordHistoryRepository, revoker *MockSessionRevoker, email *MockEmailSender, audit *MockAuditRepository) *ResetService {
	auditSvc := testAuditService(audit)
	passwords := NewPasswordService(members, history, auditSvc, testAuthConfig(), testLogger())
	return NewResetService(members, passwords, revoker, email, auditSvc, testAuthConfig(), testEmailConfig(), testLogger())
}

func resetFixture(t *testing.T, token string, expiry time.Time) *models.Member {
	t.Helper()
	return &models.Member{
		ID:               "member-1",
		Email:            "member@example.com",
		PasswordHash:     quickHash(t, "OldPassword1@"),
		ResetToken:       &token,
		ResetTokenExpiry: &expiry,
	}
}

func TestRequestResetUnknownEmailIsSilent(t *testing.T) {
	sent := false
	email := &MockEmailSender{
		SendResetLinkFunc: func(ctx context.Context, to, link string) error {
			sent = true
			return nil
		},
	}
	svc := newResetService(&MockMemberRepository{}, &MockPasswordHistoryRepository{}, &MockSessionRevoker{}, email, &MockAuditRepository{})

	err := svc.RequestReset(context.Background(), "nobody@example.com", "")
	assert.NoError(t, err)
	assert.False(t, sent)
}

func TestRequestResetKnownEmail(t *testing.T) {
	member := &models.Member{ID: "member-1", Email: "member@example.com"}

	var storedToken string
	var storedExpiry time.Time
	members := &MockMemberRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Member, error) {
			return member, nil
		},
		SetResetTokenFunc: func(ctx context.Context, id, token string, expiry time.Time) error {
			storedToken = token
			storedExpiry = expiry
			return nil
		},
	}

	var sentLink string
	email := &MockEmailSender{
		SendResetLinkFunc: func(ctx context.Context, to, link string) error {
			sentLink = link
			return nil
		},
	}

	auditRepo := &MockAuditRepository{}
	svc := newResetService(members, &MockPasswordHistoryRepository{}, &MockSessionRevoker{}, email, auditRepo)

	err := svc.RequestReset(context.Background(), "Member@Example.com", "203.0.113.7")
	require.NoError(t, err)

	assert.NotEmpty(t, storedToken)
	assert.WithinDuration(t, time.Now().Add(time.Hour), storedExpiry, 2*time.Second)
	assert.True(t, strings.HasPrefix(sentLink, "https://portal.example.com/reset-password?token="))
	assert.Contains(t, sentLink, storedToken)
	assert.Equal(t, []string{models.AuditResetLinkSent}, auditRepo.Actions())
}

func TestRedeemResetUnknownToken(t *testing.T) {
	svc := newResetService(&MockMemberRepository{}, &MockPasswordHistoryRepository{}, &MockSessionRevoker{}, &MockEmailSender{}, &MockAuditRepository{})

	err := svc.RedeemReset(context.Background(), "bogus", "NewPassword123@", "")
	assert.ErrorIs(t, err, models.ErrResetTokenInvalid)

	err = svc.RedeemReset(context.Background(), "", "NewPassword123@", "")
	assert.ErrorIs(t, err, models.ErrResetTokenInvalid)
}

func TestRedeemResetExpiredToken(t *testing.T) {
	member := resetFixture(t, "tok-1", time.Now().Add(-time.Minute))
	members := &MockMemberRepository{
		GetByResetTokenFunc: func(ctx context.Context, token string) (*models.Member, error) {
			return member, nil
		},
	}
	svc := newResetService(members, &MockPasswordHistoryRepository{}, &MockSessionRevoker{}, &MockEmailSender{}, &MockAuditRepository{})

	err := svc.RedeemReset(context.Background(), "tok-1", "NewPassword123@", "")
	assert.ErrorIs(t, err, models.ErrResetTokenInvalid)
}

func TestRedeemResetWeakPassword(t *testing.T) {
	member := resetFixture(t, "tok-1", time.Now().Add(30*time.Minute))
	members := &MockMemberRepository{
		GetByResetTokenFunc: func(ctx context.Context, token string) (*models.Member, error) {
			return member, nil
		},
	}
	svc := newResetService(members, &MockPasswordHistoryRepository{}, &MockSessionRevoker{}, &MockEmailSender{}, &MockAuditRepository{})

	err := svc.RedeemReset(context.Background(), "tok-1", "weak", "")
	assert.ErrorIs(t, err, models.ErrWeakPassword)
}

func TestRedeemResetReuseChecksTwoDeep(t *testing.T) {
	member := resetFixture(t, "tok-1", time.Now().Add(30*time.Minute))
	members := &MockMemberRepository{
		GetByResetTokenFunc: func(ctx context.Context, token string) (*models.Member, error) {
			return member, nil
		},
	}
	history := &MockPasswordHistoryRepository{
		LatestFunc: func(ctx context.Context, memberID string, limit int) ([]*models.PasswordHistoryEntry, error) {
			assert.Equal(t, 2, limit)
			return []*models.PasswordHistoryEntry{
				{MemberID: memberID, PasswordHash: quickHash(t, "PriorPassword1@")},
				{MemberID: memberID, PasswordHash: quickHash(t, "OlderPassword1@")},
			}, nil
		},
	}
	svc := newResetService(members, history, &MockSessionRevoker{}, &MockEmailSender{}, &MockAuditRepository{})

	err := svc.RedeemReset(context.Background(), "tok-1", "OlderPassword1@", "")
	assert.ErrorIs(t, err, models.ErrPasswordReused)

	err = svc.RedeemReset(context.Background(), "tok-1", "OldPassword1@", "")
	assert.ErrorIs(t, err, models.ErrPasswordSameAsCurrent)
}

func TestRedeemResetSuccess(t *testing.T) {
	member := resetFixture(t, "tok-1", time.Now().Add(30*time.Minute))

	rotated := false
	members := &MockMemberRepository{
		GetByResetTokenFunc: func(ctx context.Context, token string) (*models.Member, error) {
			assert.Equal(t, "tok-1", token)
			return member, nil
		},
		RotatePasswordFunc: func(ctx context.Context, id, oldHash, newHash string, changedAt time.Time) error {
			rotated = true
			assert.Equal(t, member.PasswordHash, oldHash)
			return nil
		},
	}
	revoker := &MockSessionRevoker{}
	auditRepo := &MockAuditRepository{}
	svc := newResetService(members, &MockPasswordHistoryRepository{}, revoker, &MockEmailSender{}, auditRepo)

	err := svc.RedeemReset(context.Background(), "tok-1", "NewPassword123@", "203.0.113.7")
	require.NoError(t, err)

	assert.True(t, rotated)
	assert.Equal(t, []string{"member-1"}, revoker.Revoked)
	assert.Equal(t, []string{models.AuditPasswordReset}, auditRepo.Actions())
}
