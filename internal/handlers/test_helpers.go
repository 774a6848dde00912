package handlers

import (
	"context"

	"memberauth/internal/models"
	"memberauth/internal/services"
)

// MockCredentialService implements CredentialServiceInterface for testing
type MockCredentialService struct {
	LoginFunc func(ctx context.Context, email, password, ipAddress string) (*services.PendingLogin, error)
}

func (m *MockCredentialService) Login(ctx context.Context, email, password, ipAddress string) (*services.PendingLogin, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, email, password, ipAddress)
	}
	return nil, models.ErrInternalServer
}

// MockTwoFactorService implements TwoFactorServiceInterface for testing
type MockTwoFactorService struct {
	VerifyFunc func(ctx context.Context, pendingToken, code, ipAddress, userAgent string) (*services.VerifiedLogin, error)
}

func (m *MockTwoFactorService) Verify(ctx context.Context, pendingToken, code, ipAddress, userAgent string) (*services.VerifiedLogin, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, pendingToken, code, ipAddress, userAgent)
	}
	return nil, models.ErrInternalServer
}

// MockAccountService implements AccountServiceInterface for testing
type MockAccountService struct {
	RegisterFunc func(ctx context.Context, email, password, firstName, lastName, ipAddress string) (*models.Member, error)
}

func (m *MockAccountService) Register(ctx context.Context, email, password, firstName, lastName, ipAddress string) (*models.Member, error) {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, email, password, firstName, lastName, ipAddress)
	}
	return nil, models.ErrInternalServer
}

// MockSessionService implements SessionServiceInterface for testing
type MockSessionService struct {
	LogoutFunc func(ctx context.Context, member *models.Member, token, ipAddress string) error
}

func (m *MockSessionService) Logout(ctx context.Context, member *models.Member, token, ipAddress string) error {
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx, member, token, ipAddress)
	}
	return nil
}

// MockAuditHistory implements AuditHistoryInterface for testing
type MockAuditHistory struct {
	HistoryFunc func(ctx context.Context, memberID string, limit int) ([]*models.AuditEvent, error)
}

func (m *MockAuditHistory) History(ctx context.Context, memberID string, limit int) ([]*models.AuditEvent, error) {
	if m.HistoryFunc != nil {
		return m.HistoryFunc(ctx, memberID, limit)
	}
	return []*models.AuditEvent{}, nil
}

// MockPasswordAgeChecker implements PasswordAgeChecker for testing
type MockPasswordAgeChecker struct {
	Required bool
}

func (m *MockPasswordAgeChecker) ChangeRequired(member *models.Member) bool {
	return m.Required
}

// MockCaptchaVerifier implements services.CaptchaVerifier for testing
type MockCaptchaVerifier struct {
	VerifyFunc func(ctx context.Context, token, remoteIP string) error
}

func (m *MockCaptchaVerifier) Verify(ctx context.Context, token, remoteIP string) error {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, token, remoteIP)
	}
	return nil
}

// MockPasswordService implements PasswordServiceInterface for testing
type MockPasswordService struct {
	ChangeFunc func(ctx context.Context, member *models.Member, currentPassword, newPassword, ipAddress string) error
}

func (m *MockPasswordService) Change(ctx context.Context, member *models.Member, currentPassword, newPassword, ipAddress string) error {
	if m.ChangeFunc != nil {
		return m.ChangeFunc(ctx, member, currentPassword, newPassword, ipAddress)
	}
	return nil
}

// MockResetService implements ResetServiceInterface for testing
type MockResetService struct {
	RequestResetFunc func(ctx context.Context, email, ipAddress string) error
	RedeemResetFunc  func(ctx context.Context, token, newPassword, ipAddress string) error
}

func (m *MockResetService) RequestReset(ctx context.Context, email, ipAddress string) error {
	if m.RequestResetFunc != nil {
		return m.RequestResetFunc(ctx, email, ipAddress)
	}
	return nil
}

func (m *MockResetService) RedeemReset(ctx context.Context, token, newPassword, ipAddress string) error {
	if m.RedeemResetFunc != nil {
		return m.RedeemResetFunc(ctx, token, newPassword, ipAddress)
	}
	return nil
}
