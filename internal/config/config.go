package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Server   ServerConfig
	Auth     AuthConfig
	Email    EmailConfig
	Captcha  CaptchaConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

type ServerConfig struct {
	Port           string
	Env            string
	AllowedOrigins []string
	TrustedProxies []string
}

type AuthConfig struct {
	PendingTokenSecret string
	PendingTokenExpiry time.Duration

	MaxPasswordFailures int
	PasswordLockout     time.Duration
	MaxChallengeTries   int
	ChallengeLockout    time.Duration
	ChallengeExpiry     time.Duration

	SessionIdle    time.Duration
	SweepInterval  time.Duration
	ChangeCooldown time.Duration
	ResetTokenTTL  time.Duration
	PasswordMaxAge time.Duration
}

type EmailConfig struct {
	Provider     string // "ses" or "smtp"
	FromAddress  string
	FromName     string
	AWSRegion    string
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	// ResetURLBase is the trusted origin reset links must point at.
	ResetURLBase string
}

type CaptchaConfig struct {
	SecretKey string
	Threshold float64
	// Disabled skips verification, for local development only.
	Disabled bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("ENV", "development")

	secret := getEnv("PENDING_TOKEN_SECRET", "")
	if secret == "" {
		return nil, fmt.Errorf("PENDING_TOKEN_SECRET is required")
	}
	if err := validateSecret(secret, env); err != nil {
		return nil, err
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "memberauth"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", "localhost:6379"),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvAsInt("REDIS_DB", 0),
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "ma"),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			AllowedOrigins: parseAllowedOrigins(env),
			TrustedProxies: splitAndTrim(getEnv("TRUSTED_PROXIES", "")),
		},
		Auth: AuthConfig{
			PendingTokenSecret: secret,
			PendingTokenExpiry: getEnvAsDuration("PENDING_TOKEN_EXPIRY", 5*time.Minute),

			MaxPasswordFailures: getEnvAsInt("MAX_PASSWORD_FAILURES", 3),
			PasswordLockout:     getEnvAsDuration("PASSWORD_LOCKOUT", 15*time.Minute),
			MaxChallengeTries:   getEnvAsInt("MAX_CHALLENGE_TRIES", 3),
			ChallengeLockout:    getEnvAsDuration("CHALLENGE_LOCKOUT", 5*time.Minute),
			ChallengeExpiry:     getEnvAsDuration("CHALLENGE_EXPIRY", 5*time.Minute),

			SessionIdle:    getEnvAsDuration("SESSION_IDLE", 20*time.Minute),
			SweepInterval:  getEnvAsDuration("SESSION_SWEEP_INTERVAL", 10*time.Minute),
			ChangeCooldown: getEnvAsDuration("PASSWORD_CHANGE_COOLDOWN", 5*time.Minute),
			ResetTokenTTL:  getEnvAsDuration("RESET_TOKEN_TTL", 1*time.Hour),
			PasswordMaxAge: getEnvAsDuration("PASSWORD_MAX_AGE", 90*24*time.Hour),
		},
		Email: EmailConfig{
			Provider:     getEnv("EMAIL_PROVIDER", "smtp"),
			FromAddress:  getEnv("EMAIL_FROM_ADDRESS", ""),
			FromName:     getEnv("EMAIL_FROM_NAME", "Member Portal"),
			AWSRegion:    getEnv("AWS_REGION", "us-east-1"),
			SMTPHost:     getEnv("SMTP_HOST", "smtp.gmail.com"),
			SMTPPort:     getEnvAsInt("SMTP_PORT", 587),
			SMTPUser:     getEnv("SMTP_USER", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),
			ResetURLBase: getEnv("RESET_URL_BASE", ""),
		},
		Captcha: CaptchaConfig{
			SecretKey: getEnv("RECAPTCHA_SECRET_KEY", ""),
			Threshold: getEnvAsFloat("RECAPTCHA_THRESHOLD", 0.5),
			Disabled:  getEnvAsBool("RECAPTCHA_DISABLED", false),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}
	if cfg.Email.FromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required")
	}
	if cfg.Email.ResetURLBase == "" {
		return nil, fmt.Errorf("RESET_URL_BASE is required")
	}
	if u, err := url.Parse(cfg.Email.ResetURLBase); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("RESET_URL_BASE must be an absolute URL")
	}
	switch cfg.Email.Provider {
	case "ses", "smtp":
	default:
		return nil, fmt.Errorf("EMAIL_PROVIDER must be 'ses' or 'smtp', got %q", cfg.Email.Provider)
	}
	if env == "production" && cfg.Captcha.Disabled {
		return nil, fmt.Errorf("RECAPTCHA_DISABLED cannot be set in production")
	}
	if !cfg.Captcha.Disabled && cfg.Captcha.SecretKey == "" {
		return nil, fmt.Errorf("RECAPTCHA_SECRET_KEY is required unless RECAPTCHA_DISABLED is set")
	}

	return cfg, nil
}

// validateSecret enforces minimum strength for the pending-token signing key
func validateSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("PENDING_TOKEN_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}
	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("PENDING_TOKEN_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i, part := range parts {
		parts[i] = strings.TrimSpace(part)
	}
	return parts
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		originsStr := getEnv("ALLOWED_ORIGINS", "")
		if originsStr == "" {
			return []string{}
		}
		origins := strings.Split(originsStr, ",")
		for i, origin := range origins {
			origins[i] = strings.TrimSpace(origin)
		}
		return origins
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:8080",
		"http://localhost:5173",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:8080",
		"http://127.0.0.1:5173",
	}
}
