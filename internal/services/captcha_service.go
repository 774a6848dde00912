package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"memberauth/internal/config"
	"memberauth/internal/models"
)

const siteVerifyURL = "https://www.google.com/recaptcha/api/siteverify"

// CaptchaVerifier checks a client-supplied captcha token
type CaptchaVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

// RecaptchaService verifies reCAPTCHA v3 tokens against the siteverify API.
// Tokens scoring below the threshold are treated as failures.
type RecaptchaService struct {
	secretKey string
	threshold float64
	disabled  bool
	client    *http.Client
	logger    *slog.Logger
}

func NewRecaptchaService(cfg config.CaptchaConfig, logger *slog.Logger) *RecaptchaService {
	return &RecaptchaService{
		secretKey: cfg.SecretKey,
		threshold: cfg.Threshold,
		disabled:  cfg.Disabled,
		client:    &http.Client{Timeout: 10 * time.Second},
		logger:    logger,
	}
}

type siteVerifyResponse struct {
	Success    bool     `json:"success"`
	Score      float64  `json:"score"`
	Action     string   `json:"action"`
	ErrorCodes []string `json:"error-codes"`
}

func (s *RecaptchaService) Verify(ctx context.Context, token, remoteIP string) error {
	if s.disabled {
		return nil
	}
	if token == "" {
		return models.ErrCaptchaFailed
	}

	form := url.Values{}
	form.Set("secret", s.secretKey)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, siteVerifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build captcha request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.ErrorContext(ctx, "captcha verification unreachable", slog.Any("error", err))
		return models.ErrInternalServer
	}
	defer resp.Body.Close()

	var result siteVerifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		s.logger.ErrorContext(ctx, "captcha response malformed", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if !result.Success || result.Score < s.threshold {
		s.logger.InfoContext(ctx, "captcha rejected",
			slog.Bool("success", result.Success),
			slog.Float64("score", result.Score),
			slog.Any("error_codes", result.ErrorCodes),
		)
		return models.ErrCaptchaFailed
	}

	return nil
}
