package repositories

import (
	"context"
	"time"

	"memberauth/internal/database"
	"memberauth/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const sessionColumns = `id, member_id, session_token, ip_address, user_agent,
	created_at, last_activity_at, expires_at, is_active`

// SessionRepository handles session ledger data access
type SessionRepository struct {
	db *database.DB
}

func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func scanSessionRow(scanner rowScanner) (*models.Session, error) {
	var session models.Session

	err := scanner.Scan(
		&session.ID, &session.MemberID, &session.Token,
		&session.IPAddress, &session.UserAgent,
		&session.CreatedAt, &session.LastActivityAt, &session.ExpiresAt,
		&session.Active,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &session, nil
}

// Create inserts a new session and makes it the member's only active one. The
// deactivation of prior sessions, the insert and the member pointer update
// commit together or not at all.
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) (*models.Session, error) {
	session.ID = uuid.New().String()

	now := time.Now()
	session.CreatedAt = now
	session.LastActivityAt = now
	session.Active = true

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		deactivate := `
			UPDATE sessions SET is_active = false
			WHERE member_id = $1 AND is_active
		`
		if _, err := tx.Exec(ctx, deactivate, session.MemberID); err != nil {
			return database.MapPostgresError(err)
		}

		insert := `
			INSERT INTO sessions (id, member_id, session_token, ip_address, user_agent, created_at, last_activity_at, expires_at, is_active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, true)
		`
		if _, err := tx.Exec(ctx, insert,
			session.ID, session.MemberID, session.Token,
			session.IPAddress, session.UserAgent,
			session.CreatedAt, session.LastActivityAt, session.ExpiresAt,
		); err != nil {
			return database.MapPostgresError(err)
		}

		pointer := `
			UPDATE members
			SET current_session_token = $2, session_created_at = $3, updated_at = now()
			WHERE id = $1
		`
		tag, err := tx.Exec(ctx, pointer, session.MemberID, session.Token, session.CreatedAt)
		if err != nil {
			return database.MapPostgresError(err)
		}
		if tag.RowsAffected() == 0 {
			return models.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return session, nil
}

// Slide validates a token and extends its expiry in one statement: the row
// must be active, unexpired, and still be the member's current session. On a
// miss the expired row, if any, is lazily deactivated.
func (r *SessionRepository) Slide(ctx context.Context, token string, idle time.Duration) (*models.Session, error) {
	query := `
		UPDATE sessions s
		SET last_activity_at = now(), expires_at = now() + $2
		FROM members m
		WHERE s.session_token = $1
		  AND s.is_active
		  AND s.expires_at > now()
		  AND m.id = s.member_id
		  AND m.current_session_token = s.session_token
		RETURNING s.id, s.member_id, s.session_token, s.ip_address, s.user_agent,
		          s.created_at, s.last_activity_at, s.expires_at, s.is_active
	`

	session, err := scanSessionRow(r.db.Pool.QueryRow(ctx, query, token, idle))
	if err == models.ErrNotFound {
		r.deactivateIfExpired(ctx, token)
		return nil, models.ErrSessionInvalid
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (r *SessionRepository) deactivateIfExpired(ctx context.Context, token string) {
	query := `
		UPDATE sessions SET is_active = false
		WHERE session_token = $1 AND is_active AND expires_at <= now()
	`
	_, _ = r.db.Pool.Exec(ctx, query, token)
}

// Invalidate retires a session and clears the member's pointer when it still
// references the retired token.
func (r *SessionRepository) Invalidate(ctx context.Context, token string) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		retire := `
			UPDATE sessions SET is_active = false
			WHERE session_token = $1 AND is_active
			RETURNING member_id
		`
		var memberID string
		if err := tx.QueryRow(ctx, retire, token).Scan(&memberID); err != nil {
			return database.MapPostgresError(err)
		}

		pointer := `
			UPDATE members
			SET current_session_token = NULL, session_created_at = NULL, updated_at = now()
			WHERE id = $1 AND current_session_token = $2
		`
		_, err := tx.Exec(ctx, pointer, memberID, token)
		return database.MapPostgresError(err)
	})
}

// InvalidateAllForMember retires every active session the member has and
// clears the pointer. Used on second-factor lockout and password reset.
func (r *SessionRepository) InvalidateAllForMember(ctx context.Context, memberID string) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		return invalidateAllForMemberTx(ctx, tx, memberID)
	})
}

// InvalidateAllForMemberTx is the same operation inside an open transaction.
func (r *SessionRepository) InvalidateAllForMemberTx(ctx context.Context, tx pgx.Tx, memberID string) error {
	return invalidateAllForMemberTx(ctx, tx, memberID)
}

func invalidateAllForMemberTx(ctx context.Context, tx pgx.Tx, memberID string) error {
	retire := `
		UPDATE sessions SET is_active = false
		WHERE member_id = $1 AND is_active
	`
	if _, err := tx.Exec(ctx, retire, memberID); err != nil {
		return database.MapPostgresError(err)
	}

	pointer := `
		UPDATE members
		SET current_session_token = NULL, session_created_at = NULL, updated_at = now()
		WHERE id = $1
	`
	_, err := tx.Exec(ctx, pointer, memberID)
	return database.MapPostgresError(err)
}

// DeactivateExpired retires sessions past their expiry. Validation never
// depends on this running; it only keeps the ledger tidy.
func (r *SessionRepository) DeactivateExpired(ctx context.Context) (int64, error) {
	query := `
		UPDATE sessions SET is_active = false
		WHERE is_active AND expires_at <= now()
	`

	tag, err := r.db.Pool.Exec(ctx, query)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}
