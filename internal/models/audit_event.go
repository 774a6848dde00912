package models

import "time"

// Audit action codes written by the authentication flows.
const (
	AuditFailedLoginUnknownEmail = "Failed Login - Invalid Email"
	AuditFailedLoginWrongPass    = "Failed Login - Wrong Password"
	AuditAccountLocked           = "Account Locked"
	AuditTwoFactorSent           = "2FA Code Sent"
	AuditTwoFactorExpired        = "2FA Code Expired"
	AuditTwoFactorFailed         = "Failed 2FA Attempt"
	AuditTwoFactorSuccess        = "Successful 2FA Verification"
	AuditRegistration            = "Registration"
	AuditPasswordChanged         = "Password Changed"
	AuditPasswordReset           = "Password Reset"
	AuditResetLinkSent           = "Reset Link Sent"
	AuditLogout                  = "Logout"
)

// AuditEvent is an append-only trail entry. MemberID is nil when the identity
// could not be resolved (for example a login with an unknown email).
type AuditEvent struct {
	ID        string
	MemberID  *string
	Action    string
	Detail    string
	IPAddress string
	CreatedAt time.Time
}
