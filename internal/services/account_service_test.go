package services

import (
	"context"
	"testing"
	"time"

	"memberauth/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAccountService(members *MockMemberRepository, history *MockPasswordHistoryRepository, audit *MockAuditRepository) *AccountService {
	return NewAccountService(members, history, testAuditService(audit), testLogger())
}

func TestRegisterWeakPassword(t *testing.T) {
	svc := newAccountService(&MockMemberRepository{}, &MockPasswordHistoryRepository{}, &MockAuditRepository{})

	_, err := svc.Register(context.Background(), "new@example.com", "weak", "Ada", "Lovelace", "")
	assert.ErrorIs(t, err, models.ErrWeakPassword)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	members := &MockMemberRepository{
		CreateFunc: func(ctx context.Context, member *models.Member) (*models.Member, error) {
			return nil, models.ErrConflict
		},
	}
	svc := newAccountService(members, &MockPasswordHistoryRepository{}, &MockAuditRepository{})

	_, err := svc.Register(context.Background(), "taken@example.com", "NewPassword123@", "Ada", "Lovelace", "")
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestRegisterSuccess(t *testing.T) {
	var created *models.Member
	members := &MockMemberRepository{
		CreateFunc: func(ctx context.Context, member *models.Member) (*models.Member, error) {
			member.ID = "member-1"
			created = member
			return member, nil
		},
	}

	var seededHash string
	history := &MockPasswordHistoryRepository{
		AppendFunc: func(ctx context.Context, memberID, passwordHash string, changedAt time.Time) error {
			assert.Equal(t, "member-1", memberID)
			seededHash = passwordHash
			return nil
		},
	}

	auditRepo := &MockAuditRepository{}
	svc := newAccountService(members, history, auditRepo)

	member, err := svc.Register(context.Background(), "  New@Example.COM ", "NewPassword123@", " Ada ", " Lovelace ", "203.0.113.7")
	require.NoError(t, err)

	assert.Equal(t, "new@example.com", created.Email)
	assert.Equal(t, "Ada", created.FirstName)
	assert.Equal(t, "Lovelace", created.LastName)
	assert.NotEqual(t, "NewPassword123@", created.PasswordHash)
	require.NotNil(t, created.LastPasswordChange)

	// The initial hash is part of the reuse record from the start.
	assert.Equal(t, member.PasswordHash, seededHash)

	assert.Equal(t, []string{models.AuditRegistration}, auditRepo.Actions())
}

func TestRegisterEmptyEmail(t *testing.T) {
	svc := newAccountService(&MockMemberRepository{}, &MockPasswordHistoryRepository{}, &MockAuditRepository{})

	_, err := svc.Register(context.Background(), "   ", "NewPassword123@", "", "", "")
	assert.ErrorIs(t, err, models.ErrBadRequest)
}
