package auth

import (
	"fmt"
	"time"

	"memberauth/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// PendingTokenManager issues and validates the short-lived handle a client
// holds between a correct password and a verified email code. The handle is
// a signed JWT rather than server state; the challenge itself lives in redis
// and expires on its own schedule.
type PendingTokenManager struct {
	secret string
	expiry time.Duration
}

func NewPendingTokenManager(secret string, expiry time.Duration) *PendingTokenManager {
	return &PendingTokenManager{
		secret: secret,
		expiry: expiry,
	}
}

// Generate creates a pending token bound to one member and one challenge.
func (pm *PendingTokenManager) Generate(memberID, challengeID string) (string, error) {
	now := time.Now()
	claims := &models.PendingClaims{
		Type:        models.PendingTokenType,
		MemberID:    memberID,
		ChallengeID: challengeID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(pm.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(pm.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign pending token: %w", err)
	}

	return tokenString, nil
}

// Validate verifies signature, expiry and token type.
func (pm *PendingTokenManager) Validate(tokenString string) (*models.PendingClaims, error) {
	claims := &models.PendingClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(pm.secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse pending token: %w", err)
	}

	if !token.Valid {
		return nil, models.ErrUnauthorized
	}

	if claims.Type != models.PendingTokenType {
		return nil, fmt.Errorf("invalid token: wrong type")
	}
	if claims.MemberID == "" || claims.ChallengeID == "" {
		return nil, fmt.Errorf("invalid token: missing bindings")
	}

	return claims, nil
}
