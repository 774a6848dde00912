package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	BcryptCost         = 14 // OWASP 2026 recommendation - stronger than cost 12 (Feb 2026)
	SessionTokenLength = 32 // 256 bits
	MinPasswordLen     = 12
	MaxPasswordLen     = 128

	// AllowedSymbols is the fixed set the strength policy accepts as the
	// required special character.
	AllowedSymbols = "@$!%*?&"
)

// PasswordValidationError holds validation error details (internal use only)
type PasswordValidationError struct {
	Errors []string
}

func (e *PasswordValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "password validation failed"
	}
	// Generic message to users - specific requirements only reach logs
	return "invalid password"
}

func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// ComparePassword checks a plaintext password against a bcrypt hash. The
// comparison is constant-time with respect to the hash contents.
func ComparePassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

var (
	decoyHashOnce sync.Once
	decoyHash     []byte
)

// CompareDummyPassword burns the same bcrypt work as a real comparison and
// always mismatches. Callers that found no account run this instead of
// returning early; otherwise response time tells the caller which emails
// have accounts. The decoy hash is generated once per process at full cost.
func CompareDummyPassword(password string) {
	decoyHashOnce.Do(func() {
		decoyHash, _ = bcrypt.GenerateFromPassword([]byte("decoy equalizer, never a real credential"), BcryptCost)
	})
	_ = bcrypt.CompareHashAndPassword(decoyHash, []byte(password))
}

// GenerateSessionToken returns a 256-bit random token from a CSPRNG,
// URL-safe encoded. Tokens are opaque and never derived from prior tokens.
func GenerateSessionToken() (string, error) {
	bytes := make([]byte, SessionTokenLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

// ValidatePassword enforces the strength policy: length, one uppercase, one
// lowercase, one digit, and one symbol from AllowedSymbols.
func ValidatePassword(password string) error {
	errs := make([]string, 0)

	if len(password) < MinPasswordLen {
		errs = append(errs, fmt.Sprintf("must be at least %d characters", MinPasswordLen))
	}
	if len(password) > MaxPasswordLen {
		errs = append(errs, fmt.Sprintf("must be at most %d characters", MaxPasswordLen))
	}

	hasUpper := false
	hasLower := false
	hasDigit := false
	hasSymbol := false

	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(AllowedSymbols, r):
			hasSymbol = true
		}
	}

	if !hasUpper {
		errs = append(errs, "must contain at least one uppercase letter")
	}
	if !hasLower {
		errs = append(errs, "must contain at least one lowercase letter")
	}
	if !hasDigit {
		errs = append(errs, "must contain at least one digit")
	}
	if !hasSymbol {
		errs = append(errs, fmt.Sprintf("must contain at least one of %s", AllowedSymbols))
	}

	if len(errs) > 0 {
		return &PasswordValidationError{Errors: errs}
	}

	return nil
}
