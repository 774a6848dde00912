package repositories

import (
	"context"
	"fmt"
	"time"

	"memberauth/internal/database"
	"memberauth/internal/models"

	"github.com/google/uuid"
)

// PasswordHistoryRepository handles the append-only record of superseded
// password hashes.
type PasswordHistoryRepository struct {
	db *database.DB
}

func NewPasswordHistoryRepository(db *database.DB) *PasswordHistoryRepository {
	return &PasswordHistoryRepository{db: db}
}

// Append records a hash outside any transaction. Registration uses this to
// seed the history with the initial hash; rotation appends inside its own
// transaction in the member repository.
func (r *PasswordHistoryRepository) Append(ctx context.Context, memberID, passwordHash string, changedAt time.Time) error {
	query := `
		INSERT INTO password_history (id, member_id, password_hash, changed_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.db.Pool.Exec(ctx, query, uuid.New().String(), memberID, passwordHash, changedAt)
	return database.MapPostgresError(err)
}

// Latest returns up to limit entries, most recent first.
func (r *PasswordHistoryRepository) Latest(ctx context.Context, memberID string, limit int) ([]*models.PasswordHistoryEntry, error) {
	query := `
		SELECT id, member_id, password_hash, changed_at
		FROM password_history
		WHERE member_id = $1
		ORDER BY changed_at DESC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, memberID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query password history: %w", err)
	}
	defer rows.Close()

	entries := make([]*models.PasswordHistoryEntry, 0, limit)
	for rows.Next() {
		var entry models.PasswordHistoryEntry
		if err := rows.Scan(&entry.ID, &entry.MemberID, &entry.PasswordHash, &entry.ChangedAt); err != nil {
			return nil, fmt.Errorf("failed to scan password history entry: %w", err)
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating password history rows: %w", err)
	}

	return entries, nil
}
