package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("PENDING_TOKEN_SECRET", "a-sufficiently-long-signing-secret")
	t.Setenv("DB_PASSWORD", "postgres")
	t.Setenv("EMAIL_FROM_ADDRESS", "noreply@portal.example.com")
	t.Setenv("RESET_URL_BASE", "https://portal.example.com/reset-password")
	t.Setenv("RECAPTCHA_SECRET_KEY", "captcha-secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Auth.MaxPasswordFailures)
	assert.Equal(t, 15*time.Minute, cfg.Auth.PasswordLockout)
	assert.Equal(t, 5*time.Minute, cfg.Auth.ChallengeLockout)
	assert.Equal(t, 5*time.Minute, cfg.Auth.ChallengeExpiry)
	assert.Equal(t, 20*time.Minute, cfg.Auth.SessionIdle)
	assert.Equal(t, 5*time.Minute, cfg.Auth.ChangeCooldown)
	assert.Equal(t, time.Hour, cfg.Auth.ResetTokenTTL)
	assert.Equal(t, 0.5, cfg.Captcha.Threshold)
	assert.Equal(t, "smtp", cfg.Email.Provider)
}

func TestLoad_MissingSecret(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PENDING_TOKEN_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_WeakSecretRejected(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PENDING_TOKEN_SECRET", "short")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_ProductionRequiresLongerSecret(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ENV", "production")
	t.Setenv("PENDING_TOKEN_SECRET", "only-twenty-chars-xx")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_InvalidResetURLBase(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("RESET_URL_BASE", "not-a-url")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_InvalidEmailProvider(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("EMAIL_PROVIDER", "carrier-pigeon")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_CaptchaDisabledForbiddenInProduction(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ENV", "production")
	t.Setenv("PENDING_TOKEN_SECRET", "a-sufficiently-long-production-secret")
	t.Setenv("RECAPTCHA_DISABLED", "true")

	_, err := Load()
	assert.Error(t, err)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host: "db", Port: 5433, User: "u", Password: "p", Name: "n", SSLMode: "require",
	}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=n sslmode=require", cfg.DSN())
}
