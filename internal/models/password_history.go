package models

import "time"

// PasswordHistoryEntry records a superseded password hash. Append-only: the
// history always trails one version behind the live hash on the member row.
type PasswordHistoryEntry struct {
	ID           string
	MemberID     string
	PasswordHash string
	ChangedAt    time.Time
}
