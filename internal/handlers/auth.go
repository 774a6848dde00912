package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"memberauth/internal/auth"
	"memberauth/internal/models"
	"memberauth/internal/services"
	pkghttp "memberauth/pkg/http"
)

// CredentialServiceInterface defines the interface for the password step
type CredentialServiceInterface interface {
	Login(ctx context.Context, email, password, ipAddress string) (*services.PendingLogin, error)
}

// TwoFactorServiceInterface defines the interface for the code step
type TwoFactorServiceInterface interface {
	Verify(ctx context.Context, pendingToken, code, ipAddress, userAgent string) (*services.VerifiedLogin, error)
}

// AccountServiceInterface defines the interface for registration
type AccountServiceInterface interface {
	Register(ctx context.Context, email, password, firstName, lastName, ipAddress string) (*models.Member, error)
}

// SessionServiceInterface defines the interface for session operations
type SessionServiceInterface interface {
	Logout(ctx context.Context, member *models.Member, token, ipAddress string) error
}

// AuditHistoryInterface defines the interface for the member activity view
type AuditHistoryInterface interface {
	History(ctx context.Context, memberID string, limit int) ([]*models.AuditEvent, error)
}

// PasswordAgeChecker reports whether a member is past the password-age nudge
type PasswordAgeChecker interface {
	ChangeRequired(member *models.Member) bool
}

// AuthHandler handles registration, the two-step login, and sessions
type AuthHandler struct {
	credentials CredentialServiceInterface
	twoFactor   TwoFactorServiceInterface
	accounts    AccountServiceInterface
	sessions    SessionServiceInterface
	activity    AuditHistoryInterface
	passwordAge PasswordAgeChecker
	captcha     services.CaptchaVerifier
	ipConfig    *pkghttp.IPConfig
}

func NewAuthHandler(
	credentials CredentialServiceInterface,
	twoFactor TwoFactorServiceInterface,
	accounts AccountServiceInterface,
	sessions SessionServiceInterface,
	activity AuditHistoryInterface,
	passwordAge PasswordAgeChecker,
	captcha services.CaptchaVerifier,
	ipConfig *pkghttp.IPConfig,
) *AuthHandler {
	return &AuthHandler{
		credentials: credentials,
		twoFactor:   twoFactor,
		accounts:    accounts,
		sessions:    sessions,
		activity:    activity,
		passwordAge: passwordAge,
		captcha:     captcha,
		ipConfig:    ipConfig,
	}
}

// Request DTOs

// RegisterRequest represents the request body for registration
type RegisterRequest struct {
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required"`
	FirstName    string `json:"first_name" validate:"required,min=1,max=100"`
	LastName     string `json:"last_name" validate:"required,min=1,max=100"`
	CaptchaToken string `json:"captcha_token"`
}

// LoginRequest represents the request body for the password step
type LoginRequest struct {
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required"`
	CaptchaToken string `json:"captcha_token"`
}

// VerifyRequest represents the request body for the code step
type VerifyRequest struct {
	PendingToken string `json:"pending_token" validate:"required"`
	Code         string `json:"code" validate:"required,len=6,numeric"`
}

// Response DTOs

// MemberResponse represents a member in HTTP responses
type MemberResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	CreatedAt string `json:"created_at"`
}

func toMemberResponse(member *models.Member) *MemberResponse {
	return &MemberResponse{
		ID:        member.ID,
		Email:     member.Email,
		FirstName: member.FirstName,
		LastName:  member.LastName,
		CreatedAt: member.CreatedAt.Format(time.RFC3339),
	}
}

// SessionStatusResponse represents the authenticated session view
type SessionStatusResponse struct {
	Member                 *MemberResponse `json:"member"`
	ExpiresAt              string          `json:"expires_at"`
	MinutesRemaining       int             `json:"minutes_remaining"`
	PasswordChangeRequired bool            `json:"password_change_required"`
}

// AuditEventResponse represents one audit trail entry in HTTP responses
type AuditEventResponse struct {
	Action    string `json:"action"`
	Detail    string `json:"detail,omitempty"`
	IPAddress string `json:"ip_address"`
	CreatedAt string `json:"created_at"`
}

func toAuditEventResponses(events []*models.AuditEvent) []*AuditEventResponse {
	responses := make([]*AuditEventResponse, 0, len(events))
	for _, event := range events {
		responses = append(responses, &AuditEventResponse{
			Action:    event.Action,
			Detail:    event.Detail,
			IPAddress: event.IPAddress,
			CreatedAt: event.CreatedAt.Format(time.RFC3339),
		})
	}
	return responses
}

// Register handles member registration
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)

	if err := h.captcha.Verify(r.Context(), req.CaptchaToken, ipAddress); err != nil {
		writeAuthError(w, err)
		return
	}

	member, err := h.accounts.Register(r.Context(), req.Email, req.Password, req.FirstName, req.LastName, ipAddress)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			pkghttp.WriteConflict(w, "An account with this email already exists")
			return
		}
		writeAuthError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, toMemberResponse(member))
}

// Login handles the password step. Success returns a pending token, never a
// session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)

	if err := h.captcha.Verify(r.Context(), req.CaptchaToken, ipAddress); err != nil {
		writeAuthError(w, err)
		return
	}

	pending, err := h.credentials.Login(r.Context(), req.Email, req.Password, ipAddress)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, pending)
}

// Verify handles the code step and issues the session.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)
	userAgent := r.Header.Get("User-Agent")

	result, err := h.twoFactor.Verify(r.Context(), req.PendingToken, req.Code, ipAddress, userAgent)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, result)
}

// Logout retires the presented session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	member := auth.MemberFromContext(r)
	session := auth.SessionFromContext(r)
	if member == nil || session == nil {
		pkghttp.WriteUnauthorized(w, "session is invalid or expired")
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)
	if err := h.sessions.Logout(r.Context(), member, session.Token, ipAddress); err != nil {
		writeAuthError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Session returns the authenticated member and the (already slid) expiry.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	member := auth.MemberFromContext(r)
	session := auth.SessionFromContext(r)
	if member == nil || session == nil {
		pkghttp.WriteUnauthorized(w, "session is invalid or expired")
		return
	}

	remaining := int(time.Until(session.ExpiresAt).Minutes())
	if remaining < 0 {
		remaining = 0
	}

	pkghttp.WriteJSON(w, http.StatusOK, &SessionStatusResponse{
		Member:                 toMemberResponse(member),
		ExpiresAt:              session.ExpiresAt.Format(time.RFC3339),
		MinutesRemaining:       remaining,
		PasswordChangeRequired: h.passwordAge.ChangeRequired(member),
	})
}

// Activity returns the authenticated member's recent audit trail, newest
// first. Members only ever see their own entries.
func (h *AuthHandler) Activity(w http.ResponseWriter, r *http.Request) {
	member := auth.MemberFromContext(r)
	if member == nil {
		pkghttp.WriteUnauthorized(w, "session is invalid or expired")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	events, err := h.activity.History(r.Context(), member.ID, limit)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{
		"events": toAuditEventResponses(events),
	})
}

// writeAuthError maps service errors onto the HTTP surface. Lockouts and
// cooldowns carry their wait time; credential failures stay generic.
func writeAuthError(w http.ResponseWriter, err error) {
	var locked *models.LockedError
	var invalidCode *models.ChallengeInvalidError
	var cooldown *models.CooldownError

	switch {
	case errors.As(err, &locked):
		pkghttp.WriteTooManyRequests(w, "account_locked", locked.Error())
	case errors.As(err, &invalidCode):
		pkghttp.WriteError(w, http.StatusUnauthorized, "invalid_code", invalidCode.Error())
	case errors.As(err, &cooldown):
		pkghttp.WriteTooManyRequests(w, "change_cooldown", cooldown.Error())
	case errors.Is(err, models.ErrInvalidCredentials):
		pkghttp.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
	case errors.Is(err, models.ErrCaptchaFailed):
		pkghttp.WriteError(w, http.StatusBadRequest, "captcha_failed", "Captcha verification failed")
	case errors.Is(err, models.ErrChallengeExpired):
		pkghttp.WriteError(w, http.StatusUnauthorized, "code_expired", "Verification code expired, sign in again")
	case errors.Is(err, models.ErrChallengeNotFound):
		pkghttp.WriteError(w, http.StatusUnauthorized, "no_pending_verification", "No pending verification, sign in again")
	case errors.Is(err, models.ErrChallengeLockedOut):
		pkghttp.WriteTooManyRequests(w, "too_many_codes", "Too many failed verification attempts")
	case errors.Is(err, models.ErrWeakPassword):
		pkghttp.WriteError(w, http.StatusBadRequest, "weak_password", "Password does not meet strength requirements")
	case errors.Is(err, models.ErrWrongCurrentPassword):
		pkghttp.WriteError(w, http.StatusForbidden, "wrong_current_password", "Current password is incorrect")
	case errors.Is(err, models.ErrPasswordSameAsCurrent), errors.Is(err, models.ErrPasswordReused):
		pkghttp.WriteError(w, http.StatusBadRequest, "password_reused", "New password matches a recent password")
	case errors.Is(err, models.ErrResetTokenInvalid):
		pkghttp.WriteError(w, http.StatusBadRequest, "invalid_reset_token", "Reset token is invalid or expired")
	case errors.Is(err, models.ErrSessionInvalid), errors.Is(err, models.ErrUnauthorized):
		pkghttp.WriteUnauthorized(w, "Authentication failed")
	case errors.Is(err, models.ErrEmailDelivery):
		pkghttp.WriteServiceUnavailable(w, "Unable to send email, try again later")
	case errors.Is(err, models.ErrConflict):
		pkghttp.WriteConflict(w, "Resource already exists")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}
