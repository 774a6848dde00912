package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memberauth/internal/models"
	pkgauth "memberauth/pkg/auth"
)

func newTestSession(t *testing.T, memberID string, idle time.Duration) *models.Session {
	t.Helper()

	token, err := pkgauth.GenerateSessionToken()
	require.NoError(t, err)

	return &models.Session{
		MemberID:  memberID,
		Token:     token,
		IPAddress: "203.0.113.1",
		UserAgent: "integration-test",
		ExpiresAt: time.Now().Add(idle),
	}
}

func TestSessionSupersession(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	members, sessions, _, _ := InitializeRepositories(testDB.DB)

	member, _, err := CreateTestMember(ctx, members, "supersede")
	require.NoError(t, err)

	first, err := sessions.Create(ctx, newTestSession(t, member.ID, 20*time.Minute))
	require.NoError(t, err)

	second, err := sessions.Create(ctx, newTestSession(t, member.ID, 20*time.Minute))
	require.NoError(t, err)

	// Only the newest session validates
	_, err = sessions.Slide(ctx, first.Token, 20*time.Minute)
	assert.ErrorIs(t, err, models.ErrSessionInvalid)

	slid, err := sessions.Slide(ctx, second.Token, 20*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, second.ID, slid.ID)

	// Member pointer tracks the newest token
	refreshed, err := members.GetByID(ctx, member.ID)
	require.NoError(t, err)
	require.NotNil(t, refreshed.CurrentSessionToken)
	assert.Equal(t, second.Token, *refreshed.CurrentSessionToken)
}

func TestSessionSlideExtendsExpiry(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	members, sessions, _, _ := InitializeRepositories(testDB.DB)

	member, _, err := CreateTestMember(ctx, members, "slide")
	require.NoError(t, err)

	created, err := sessions.Create(ctx, newTestSession(t, member.ID, time.Minute))
	require.NoError(t, err)

	slid, err := sessions.Slide(ctx, created.Token, 20*time.Minute)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(20*time.Minute), slid.ExpiresAt, 5*time.Second)
	assert.True(t, slid.ExpiresAt.After(created.ExpiresAt))
}

func TestSessionExpiryEnforcedLazily(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	members, sessions, _, _ := InitializeRepositories(testDB.DB)

	member, _, err := CreateTestMember(ctx, members, "expired")
	require.NoError(t, err)

	created, err := sessions.Create(ctx, newTestSession(t, member.ID, -time.Minute))
	require.NoError(t, err)

	// Validation rejects and retires the row in passing
	_, err = sessions.Slide(ctx, created.Token, 20*time.Minute)
	assert.ErrorIs(t, err, models.ErrSessionInvalid)

	var active bool
	require.NoError(t, testDB.Pool.QueryRow(ctx,
		"SELECT is_active FROM sessions WHERE id = $1", created.ID).Scan(&active))
	assert.False(t, active)
}

func TestSessionInvalidate(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	members, sessions, _, _ := InitializeRepositories(testDB.DB)

	member, _, err := CreateTestMember(ctx, members, "logout")
	require.NoError(t, err)

	created, err := sessions.Create(ctx, newTestSession(t, member.ID, 20*time.Minute))
	require.NoError(t, err)

	require.NoError(t, sessions.Invalidate(ctx, created.Token))

	_, err = sessions.Slide(ctx, created.Token, 20*time.Minute)
	assert.ErrorIs(t, err, models.ErrSessionInvalid)

	refreshed, err := members.GetByID(ctx, member.ID)
	require.NoError(t, err)
	assert.Nil(t, refreshed.CurrentSessionToken)

	// Retiring an already-retired token reports not found
	err = sessions.Invalidate(ctx, created.Token)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestInvalidateAllForMember(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	members, sessions, _, _ := InitializeRepositories(testDB.DB)

	member, _, err := CreateTestMember(ctx, members, "revoke-all")
	require.NoError(t, err)

	current, err := sessions.Create(ctx, newTestSession(t, member.ID, 20*time.Minute))
	require.NoError(t, err)

	require.NoError(t, sessions.InvalidateAllForMember(ctx, member.ID))

	_, err = sessions.Slide(ctx, current.Token, 20*time.Minute)
	assert.ErrorIs(t, err, models.ErrSessionInvalid)

	refreshed, err := members.GetByID(ctx, member.ID)
	require.NoError(t, err)
	assert.Nil(t, refreshed.CurrentSessionToken)
}

func TestDeactivateExpiredSweep(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	members, sessions, _, _ := InitializeRepositories(testDB.DB)

	staleMember, _, err := CreateTestMember(ctx, members, "sweep-stale")
	require.NoError(t, err)
	freshMember, _, err := CreateTestMember(ctx, members, "sweep-fresh")
	require.NoError(t, err)

	_, err = sessions.Create(ctx, newTestSession(t, staleMember.ID, -time.Minute))
	require.NoError(t, err)
	fresh, err := sessions.Create(ctx, newTestSession(t, freshMember.ID, 20*time.Minute))
	require.NoError(t, err)

	retired, err := sessions.DeactivateExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), retired)

	// The live session is untouched
	_, err = sessions.Slide(ctx, fresh.Token, 20*time.Minute)
	assert.NoError(t, err)
}
