package repositories

import (
	"context"
	"strings"
	"time"

	"memberauth/internal/database"
	"memberauth/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const memberColumns = `id, email, password_hash, first_name, last_name,
	failed_login_attempts, locked_until, last_password_change,
	current_session_token, session_created_at, reset_token, reset_token_expiry,
	created_at, updated_at`

// MemberRepository handles member account data access
type MemberRepository struct {
	db *database.DB
}

func NewMemberRepository(db *database.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

// rowScanner interface for scanning rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanMemberRow handles nullable fields and populates a Member model from a database row
func scanMemberRow(scanner rowScanner) (*models.Member, error) {
	var member models.Member

	err := scanner.Scan(
		&member.ID, &member.Email, &member.PasswordHash,
		&member.FirstName, &member.LastName,
		&member.FailedLoginAttempts, &member.LockedUntil, &member.LastPasswordChange,
		&member.CurrentSessionToken, &member.SessionCreatedAt,
		&member.ResetToken, &member.ResetTokenExpiry,
		&member.CreatedAt, &member.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &member, nil
}

func (r *MemberRepository) GetByID(ctx context.Context, id string) (*models.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE id = $1`
	return scanMemberRow(r.db.Pool.QueryRow(ctx, query, id))
}

// GetByEmail looks a member up case-insensitively.
func (r *MemberRepository) GetByEmail(ctx context.Context, email string) (*models.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE lower(email) = lower($1)`
	return scanMemberRow(r.db.Pool.QueryRow(ctx, query, strings.TrimSpace(email)))
}

func (r *MemberRepository) GetByResetToken(ctx context.Context, token string) (*models.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE reset_token = $1`
	return scanMemberRow(r.db.Pool.QueryRow(ctx, query, token))
}

func (r *MemberRepository) Create(ctx context.Context, member *models.Member) (*models.Member, error) {
	member.ID = uuid.New().String()

	now := time.Now()
	member.CreatedAt = now
	member.UpdatedAt = now

	query := `
		INSERT INTO members (id, email, password_hash, first_name, last_name, last_password_change, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + memberColumns

	return scanMemberRow(r.db.Pool.QueryRow(ctx, query,
		member.ID, strings.TrimSpace(member.Email), member.PasswordHash,
		member.FirstName, member.LastName, member.LastPasswordChange,
		member.CreatedAt, member.UpdatedAt,
	))
}

// IncrementFailedLogins bumps the failed-attempt counter and returns the new
// value. The increment happens in the database so concurrent failures each
// observe a distinct count and exactly one of them crosses the threshold.
func (r *MemberRepository) IncrementFailedLogins(ctx context.Context, id string) (int, error) {
	query := `
		UPDATE members
		SET failed_login_attempts = failed_login_attempts + 1, updated_at = now()
		WHERE id = $1
		RETURNING failed_login_attempts
	`

	var count int
	if err := r.db.Pool.QueryRow(ctx, query, id).Scan(&count); err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}

// ApplyLockout opens a lockout window and resets the failure counter, so the
// count starts fresh once the window lapses.
func (r *MemberRepository) ApplyLockout(ctx context.Context, id string, until time.Time) error {
	query := `
		UPDATE members
		SET locked_until = $2, failed_login_attempts = 0, updated_at = now()
		WHERE id = $1
	`

	tag, err := r.db.Pool.Exec(ctx, query, id, until)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ClearLockout wipes the lockout window and failure counter together.
func (r *MemberRepository) ClearLockout(ctx context.Context, id string) error {
	query := `
		UPDATE members
		SET locked_until = NULL, failed_login_attempts = 0, updated_at = now()
		WHERE id = $1
	`

	tag, err := r.db.Pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *MemberRepository) SetResetToken(ctx context.Context, id, token string, expiry time.Time) error {
	query := `
		UPDATE members
		SET reset_token = $2, reset_token_expiry = $3, updated_at = now()
		WHERE id = $1
	`

	tag, err := r.db.Pool.Exec(ctx, query, id, token, expiry)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// RotatePassword swaps the live hash for a new one, appending the superseded
// hash to the history in the same transaction. Any outstanding reset token is
// cleared so it cannot be redeemed after the rotation.
func (r *MemberRepository) RotatePassword(ctx context.Context, id, oldHash, newHash string, changedAt time.Time) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		history := `
			INSERT INTO password_history (id, member_id, password_hash, changed_at)
			VALUES ($1, $2, $3, $4)
		`
		if _, err := tx.Exec(ctx, history, uuid.New().String(), id, oldHash, changedAt); err != nil {
			return database.MapPostgresError(err)
		}

		swap := `
			UPDATE members
			SET password_hash = $2, last_password_change = $3,
			    reset_token = NULL, reset_token_expiry = NULL, updated_at = now()
			WHERE id = $1
		`
		tag, err := tx.Exec(ctx, swap, id, newHash, changedAt)
		if err != nil {
			return database.MapPostgresError(err)
		}
		if tag.RowsAffected() == 0 {
			return models.ErrNotFound
		}
		return nil
	})
}
