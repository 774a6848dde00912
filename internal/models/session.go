package models

import "time"

// Session is one row per login, active or historical. Rows are deactivated,
// never deleted, so the ledger doubles as login history.
type Session struct {
	ID             string
	MemberID       string
	Token          string
	IPAddress      string
	UserAgent      string
	CreatedAt      time.Time
	LastActivityAt time.Time
	ExpiresAt      time.Time
	Active         bool
}

// Expired reports whether the session's sliding expiry has passed.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
