package challenge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"memberauth/internal/models"

	"github.com/redis/go-redis/v9"
)

// Challenge is a pending email-code verification between password check and
// session issuance. It lives only in redis and expires on its own.
type Challenge struct {
	MemberID  string `json:"member_id"`
	Email     string `json:"email"`
	Code      string `json:"code"`
	ExpiresAt int64  `json:"expires_at"`
	Attempts  uint16 `json:"attempts"`
}

// Store keeps pending challenges in redis. A per-member index key enforces at
// most one live challenge per member: issuing a new one deletes the previous.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

func NewStore(redisClient redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "2fa"
	}
	return &Store{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *Store) key(challengeID string) string {
	return s.prefix + ":challenge:" + challengeID
}

func (s *Store) memberKey(memberID string) string {
	return s.prefix + ":member:" + memberID
}

// Save stores a challenge under challengeID and points the member index at it.
// Any previous challenge for the same member is deleted in the same WATCHed
// transaction, so concurrent issuance for one member cannot leave a superseded
// code live.
func (s *Store) Save(ctx context.Context, challengeID string, record *Challenge, ttl time.Duration) error {
	const maxRetries = 4

	encoded, err := json.Marshal(record)
	if err != nil {
		return err
	}
	memberKey := s.memberKey(record.MemberID)

	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			prev, err := tx.Get(ctx, memberKey).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				if prev != "" && prev != challengeID {
					pipe.Del(ctx, s.key(prev))
				}
				pipe.Set(ctx, s.key(challengeID), encoded, ttl)
				pipe.Set(ctx, memberKey, challengeID, ttl)
				return nil
			})
			return err
		}, memberKey)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			return fmt.Errorf("%w: %v", models.ErrChallengeBackend, err)
		}
		return nil
	}

	return fmt.Errorf("%w: concurrent challenge updates", models.ErrChallengeBackend)
}

// Get returns the challenge, deleting it when past its expiry.
func (s *Store) Get(ctx context.Context, challengeID string) (*Challenge, error) {
	data, err := s.redis.Get(ctx, s.key(challengeID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, models.ErrChallengeNotFound
		}
		return nil, fmt.Errorf("%w: %v", models.ErrChallengeBackend, err)
	}

	record := &Challenge{}
	if err := json.Unmarshal(data, record); err != nil {
		return nil, err
	}
	if time.Now().Unix() > record.ExpiresAt {
		_, _ = s.redis.Del(ctx, s.key(challengeID), s.memberKey(record.MemberID)).Result()
		return nil, models.ErrChallengeExpired
	}
	return record, nil
}

// Delete removes the challenge and the member index entry.
func (s *Store) Delete(ctx context.Context, challengeID, memberID string) error {
	if _, err := s.redis.Del(ctx, s.key(challengeID), s.memberKey(memberID)).Result(); err != nil {
		return fmt.Errorf("%w: %v", models.ErrChallengeBackend, err)
	}
	return nil
}

// RecordFailure atomically increments the attempt counter and returns the
// new count. It returns exceeded=true when the counter reaches maxAttempts,
// in which case the challenge is deleted; the caller decides what the overrun
// costs the member. Concurrent verifications race on the WATCHed key, so
// exactly one caller observes each counter value.
func (s *Store) RecordFailure(ctx context.Context, challengeID string, maxAttempts int) (int, bool, error) {
	const maxRetries = 4
	key := s.key(challengeID)

	for i := 0; i < maxRetries; i++ {
		var attempts int
		var exceeded bool
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record := &Challenge{}
			if err := json.Unmarshal(data, record); err != nil {
				return err
			}

			ttl := time.Until(time.Unix(record.ExpiresAt, 0))
			if ttl <= 0 {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key, s.memberKey(record.MemberID))
					return nil
				})
				if err != nil {
					return err
				}
				return models.ErrChallengeExpired
			}

			record.Attempts++
			attempts = int(record.Attempts)
			if int(record.Attempts) >= maxAttempts {
				exceeded = true
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key, s.memberKey(record.MemberID))
					return nil
				})
				return err
			}

			updated, err := json.Marshal(record)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, ttl)
				return nil
			})
			return err
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return 0, false, models.ErrChallengeNotFound
			}
			if errors.Is(err, models.ErrChallengeExpired) {
				return 0, false, err
			}
			return 0, false, fmt.Errorf("%w: %v", models.ErrChallengeBackend, err)
		}
		return attempts, exceeded, nil
	}

	return 0, false, models.ErrChallengeNotFound
}
