package models

import "time"

// Member is the identity record for a portal account. Lockout counters, the
// denormalized session pointer and the reset-token fields all live here so a
// single row update covers each authentication event.
type Member struct {
	ID                  string
	Email               string
	PasswordHash        string
	FirstName           string
	LastName            string
	FailedLoginAttempts int
	LockedUntil         *time.Time
	LastPasswordChange  *time.Time
	CurrentSessionToken *string
	SessionCreatedAt    *time.Time
	ResetToken          *string
	ResetTokenExpiry    *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Locked reports whether the account is inside an active lockout window.
func (m *Member) Locked(now time.Time) bool {
	return m.LockedUntil != nil && now.Before(*m.LockedUntil)
}

// PasswordExpired reports whether the password is older than maxAge. A member
// with no recorded change is treated as expired.
func (m *Member) PasswordExpired(now time.Time, maxAge time.Duration) bool {
	if m.LastPasswordChange == nil {
		return true
	}
	return now.Sub(*m.LastPasswordChange) > maxAge
}
