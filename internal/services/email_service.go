package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"memberauth/internal/config"
	"memberauth/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"gopkg.in/gomail.v2"
)

// EmailSender defines the interface for outbound member email
type EmailSender interface {
	SendTwoFactorCode(ctx context.Context, email, code string, expiresAt time.Time) error
	SendResetLink(ctx context.Context, email, link string) error
}

// NewEmailSender picks the provider configured in EmailConfig.
func NewEmailSender(cfg config.EmailConfig, logger *slog.Logger) (EmailSender, error) {
	switch cfg.Provider {
	case "ses":
		return NewSESEmailSender(cfg, logger)
	case "smtp":
		return NewSMTPEmailSender(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}
}

// ValidateResetLink confirms the link points at the trusted reset origin.
// Anything else is refused before a message leaves the building.
func ValidateResetLink(link, trustedBase string) error {
	linkURL, err := url.Parse(link)
	if err != nil {
		return fmt.Errorf("malformed reset link: %w", err)
	}
	baseURL, err := url.Parse(trustedBase)
	if err != nil {
		return fmt.Errorf("malformed reset base: %w", err)
	}
	if linkURL.Scheme != baseURL.Scheme || linkURL.Host != baseURL.Host {
		return fmt.Errorf("reset link origin %q does not match trusted origin %q", linkURL.Host, baseURL.Host)
	}
	return nil
}

func twoFactorBodies(code string, expiresAt time.Time) (html, text string) {
	minutes := int(time.Until(expiresAt).Minutes())
	if minutes < 1 {
		minutes = 1
	}

	html = fmt.Sprintf(`
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
    <h2>Your verification code</h2>
    <p>Enter this code to finish signing in:</p>
    <p style="font-size: 28px; letter-spacing: 6px; font-weight: bold;">%s</p>
    <p>The code expires in %d minutes and can only be used once.</p>
    <p>If you did not try to sign in, change your password now.</p>
</body>
</html>`, code, minutes)

	text = fmt.Sprintf(`Your verification code

Enter this code to finish signing in: %s

The code expires in %d minutes and can only be used once.
If you did not try to sign in, change your password now.
`, code, minutes)

	return html, text
}

func resetBodies(link string) (html, text string) {
	html = fmt.Sprintf(`
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
    <h2>Password reset requested</h2>
    <p>We received a request to reset the password for your account.</p>
    <p><a href="%s">Reset your password</a></p>
    <p>Or copy and paste this link in your browser:<br><code>%s</code></p>
    <p>The link expires in 1 hour and works once.</p>
    <p>If you did not request this change, you can ignore this email.</p>
</body>
</html>`, link, link)

	text = fmt.Sprintf(`Password reset requested

We received a request to reset the password for your account.

%s

The link expires in 1 hour and works once.
If you did not request this change, you can ignore this email.
`, link)

	return html, text
}

// SESEmailSender sends email through AWS SES
type SESEmailSender struct {
	sesClient   *ses.Client
	fromAddress string
	fromName    string
	logger      *slog.Logger
}

func NewSESEmailSender(cfg config.EmailConfig, logger *slog.Logger) (*SESEmailSender, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &SESEmailSender{
		sesClient:   ses.NewFromConfig(awsCfg),
		fromAddress: cfg.FromAddress,
		fromName:    cfg.FromName,
		logger:      logger,
	}, nil
}

func (s *SESEmailSender) send(ctx context.Context, email, subject, htmlBody, textBody string) error {
	input := &ses.SendEmailInput{
		Source: aws.String(fmt.Sprintf("%s <%s>", s.fromName, s.fromAddress)),
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(subject),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data: aws.String(htmlBody),
				},
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	if _, err := s.sesClient.SendEmail(ctx, input); err != nil {
		s.logger.ErrorContext(ctx, "ses send failed", slog.Any("error", err))
		return fmt.Errorf("%w: %v", models.ErrEmailDelivery, err)
	}
	return nil
}

func (s *SESEmailSender) SendTwoFactorCode(ctx context.Context, email, code string, expiresAt time.Time) error {
	html, text := twoFactorBodies(code, expiresAt)
	return s.send(ctx, email, "Your verification code", html, text)
}

func (s *SESEmailSender) SendResetLink(ctx context.Context, email, link string) error {
	html, text := resetBodies(link)
	return s.send(ctx, email, "Password reset request", html, text)
}

// SMTPEmailSender sends email through a plain SMTP relay
type SMTPEmailSender struct {
	dialer      *gomail.Dialer
	fromAddress string
	fromName    string
	logger      *slog.Logger
}

func NewSMTPEmailSender(cfg config.EmailConfig, logger *slog.Logger) *SMTPEmailSender {
	return &SMTPEmailSender{
		dialer:      gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword),
		fromAddress: cfg.FromAddress,
		fromName:    cfg.FromName,
		logger:      logger,
	}
}

func (s *SMTPEmailSender) send(ctx context.Context, email, subject, htmlBody, textBody string) error {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.fromAddress, s.fromName)
	m.SetHeader("To", email)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", strings.TrimSpace(textBody))
	m.AddAlternative("text/html", htmlBody)

	if err := s.dialer.DialAndSend(m); err != nil {
		s.logger.ErrorContext(ctx, "smtp send failed", slog.Any("error", err))
		return fmt.Errorf("%w: %v", models.ErrEmailDelivery, err)
	}
	return nil
}

func (s *SMTPEmailSender) SendTwoFactorCode(ctx context.Context, email, code string, expiresAt time.Time) error {
	html, text := twoFactorBodies(code, expiresAt)
	return s.send(ctx, email, "Your verification code", html, text)
}

func (s *SMTPEmailSender) SendResetLink(ctx context.Context, email, link string) error {
	html, text := resetBodies(link)
	return s.send(ctx, email, "Password reset request", html, text)
}
