package challenge

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"memberauth/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewStore(client, "2fa"), mr
}

func testChallenge(memberID string) *Challenge {
	return &Challenge{
		MemberID:  memberID,
		Email:     "member@example.com",
		Code:      "483920",
		ExpiresAt: time.Now().Add(5 * time.Minute).Unix(),
	}
}

func TestStoreSaveAndGet(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	record := testChallenge("member-1")
	require.NoError(t, store.Save(ctx, "ch-1", record, 5*time.Minute))

	got, err := store.Get(ctx, "ch-1")
	require.NoError(t, err)
	assert.Equal(t, "member-1", got.MemberID)
	assert.Equal(t, "483920", got.Code)
	assert.Equal(t, uint16(0), got.Attempts)
}

func TestStoreGetNotFound(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrChallengeNotFound)
}

func TestStoreGetExpired(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	record := testChallenge("member-1")
	record.ExpiresAt = time.Now().Add(-time.Second).Unix()
	require.NoError(t, store.Save(ctx, "ch-1", record, 5*time.Minute))

	_, err := store.Get(ctx, "ch-1")
	assert.ErrorIs(t, err, models.ErrChallengeExpired)

	// Expired challenge is removed, not left behind
	_, err = store.Get(ctx, "ch-1")
	assert.ErrorIs(t, err, models.ErrChallengeNotFound)
}

func TestStoreSupersedesPreviousChallenge(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	first := testChallenge("member-1")
	require.NoError(t, store.Save(ctx, "ch-old", first, 5*time.Minute))

	second := testChallenge("member-1")
	second.Code = "915728"
	require.NoError(t, store.Save(ctx, "ch-new", second, 5*time.Minute))

	// Old challenge no longer verifies
	_, err := store.Get(ctx, "ch-old")
	assert.ErrorIs(t, err, models.ErrChallengeNotFound)

	got, err := store.Get(ctx, "ch-new")
	require.NoError(t, err)
	assert.Equal(t, "915728", got.Code)
}

func TestStoreConcurrentSavesLeaveOneChallenge(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for round := 0; round < 20; round++ {
		idA := fmt.Sprintf("ch-a-%d", round)
		idB := fmt.Sprintf("ch-b-%d", round)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.Save(ctx, idA, testChallenge("member-1"), 5*time.Minute))
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, store.Save(ctx, idB, testChallenge("member-1"), 5*time.Minute))
		}()
		wg.Wait()

		// Whichever save landed last owns the member index; the other
		// challenge must be gone, not live until its TTL.
		winner, err := store.redis.Get(ctx, store.memberKey("member-1")).Result()
		require.NoError(t, err)

		loser := idA
		if winner == idA {
			loser = idB
		}
		_, err = store.Get(ctx, winner)
		assert.NoError(t, err)
		_, err = store.Get(ctx, loser)
		assert.ErrorIs(t, err, models.ErrChallengeNotFound)
	}
}

func TestStoreSupersessionIsPerMember(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "ch-a", testChallenge("member-a"), 5*time.Minute))
	require.NoError(t, store.Save(ctx, "ch-b", testChallenge("member-b"), 5*time.Minute))

	_, err := store.Get(ctx, "ch-a")
	assert.NoError(t, err)
	_, err = store.Get(ctx, "ch-b")
	assert.NoError(t, err)
}

func TestStoreDelete(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "ch-1", testChallenge("member-1"), 5*time.Minute))
	require.NoError(t, store.Delete(ctx, "ch-1", "member-1"))

	_, err := store.Get(ctx, "ch-1")
	assert.ErrorIs(t, err, models.ErrChallengeNotFound)
}

func TestStoreRecordFailure(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "ch-1", testChallenge("member-1"), 5*time.Minute))

	attempts, exceeded, err := store.RecordFailure(ctx, "ch-1", 3)
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
	assert.False(t, exceeded)

	got, err := store.Get(ctx, "ch-1")
	require.NoError(t, err)
	assert.Equal(t, uint16(1), got.Attempts)

	attempts, exceeded, err = store.RecordFailure(ctx, "ch-1", 3)
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.False(t, exceeded)

	// Third failure hits the cap and consumes the challenge
	attempts, exceeded, err = store.RecordFailure(ctx, "ch-1", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.True(t, exceeded)

	_, err = store.Get(ctx, "ch-1")
	assert.ErrorIs(t, err, models.ErrChallengeNotFound)
}

func TestStoreRecordFailureExpired(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	record := testChallenge("member-1")
	record.ExpiresAt = time.Now().Add(-time.Second).Unix()
	require.NoError(t, store.Save(ctx, "ch-1", record, 5*time.Minute))

	_, _, err := store.RecordFailure(ctx, "ch-1", 3)
	assert.ErrorIs(t, err, models.ErrChallengeExpired)
}

func TestStoreRecordFailureNotFound(t *testing.T) {
	store, _ := newTestStore(t)

	_, _, err := store.RecordFailure(context.Background(), "missing", 3)
	assert.ErrorIs(t, err, models.ErrChallengeNotFound)
}

func TestStoreTTLEviction(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "ch-1", testChallenge("member-1"), 5*time.Minute))

	mr.FastForward(6 * time.Minute)

	_, err := store.Get(ctx, "ch-1")
	assert.ErrorIs(t, err, models.ErrChallengeNotFound)
}
