package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Credential gate
	ErrInvalidCredentials = errors.New("invalid email or password")

	// Second-factor challenge
	ErrChallengeExpired   = errors.New("verification code expired")
	ErrChallengeNotFound  = errors.New("no pending verification")
	ErrChallengeLockedOut = errors.New("too many failed verification attempts")
	ErrChallengeBackend   = errors.New("verification backend unavailable")

	// Password policy
	ErrWrongCurrentPassword  = errors.New("current password is incorrect")
	ErrPasswordSameAsCurrent = errors.New("new password matches current password")
	ErrPasswordReused        = errors.New("new password matches a recent password")
	ErrWeakPassword          = errors.New("password does not meet strength requirements")

	// Reset token flow
	ErrResetTokenInvalid = errors.New("reset token is invalid or expired")

	// Session ledger
	ErrSessionInvalid = errors.New("session is invalid or expired")

	// Outbound collaborators
	ErrEmailDelivery = errors.New("email delivery failed")
	ErrCaptchaFailed = errors.New("captcha verification failed")
)

// LockedError reports an active lockout window. It is returned without any
// credential evaluation having taken place.
type LockedError struct {
	RemainingMinutes int
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account is locked, try again in %d minutes", e.RemainingMinutes)
}

// ChallengeInvalidError reports a wrong second-factor code with attempts left.
type ChallengeInvalidError struct {
	Remaining int
}

func (e *ChallengeInvalidError) Error() string {
	return fmt.Sprintf("invalid verification code, %d attempts remaining", e.Remaining)
}

// CooldownError reports a password change rejected by the change cooldown.
type CooldownError struct {
	MinutesLeft int
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("password was changed recently, wait %d more minutes", e.MinutesLeft)
}
