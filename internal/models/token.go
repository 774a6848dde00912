package models

import "github.com/golang-jwt/jwt/v5"

// PendingTokenType marks a token that bridges the password check and the
// emailed-code verification. It grants nothing else.
const PendingTokenType = "pending_2fa"

// PendingClaims binds a pending login to one member and one challenge.
type PendingClaims struct {
	Type        string `json:"type"`
	MemberID    string `json:"member_id"`
	ChallengeID string `json:"challenge_id"`
	jwt.RegisteredClaims
}
