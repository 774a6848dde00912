package repositories

import (
	"context"
	"fmt"

	"memberauth/internal/database"
	"memberauth/internal/models"

	"github.com/google/uuid"
)

// AuditRepository handles the append-only audit trail
type AuditRepository struct {
	db *database.DB
}

func NewAuditRepository(db *database.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create appends an audit event. There is no update or delete path.
func (r *AuditRepository) Create(ctx context.Context, event *models.AuditEvent) (*models.AuditEvent, error) {
	event.ID = uuid.New().String()

	query := `
		INSERT INTO audit_log (id, member_id, action, detail, ip_address)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		event.ID, event.MemberID, event.Action, event.Detail, event.IPAddress,
	).Scan(&event.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit event: %w", database.MapPostgresError(err))
	}

	return event, nil
}

// ListForMember returns recent events for one member, newest first.
func (r *AuditRepository) ListForMember(ctx context.Context, memberID string, limit int) ([]*models.AuditEvent, error) {
	query := `
		SELECT id, member_id, action, detail, ip_address, created_at
		FROM audit_log
		WHERE member_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, memberID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	events := make([]*models.AuditEvent, 0, limit)
	for rows.Next() {
		var event models.AuditEvent
		if err := rows.Scan(&event.ID, &event.MemberID, &event.Action, &event.Detail, &event.IPAddress, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit rows: %w", err)
	}

	return events, nil
}
