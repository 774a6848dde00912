package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"memberauth/internal/auth"
	"memberauth/internal/models"
	pkghttp "memberauth/pkg/http"
)

// PasswordServiceInterface defines the interface for the change policy
type PasswordServiceInterface interface {
	Change(ctx context.Context, member *models.Member, currentPassword, newPassword, ipAddress string) error
}

// ResetServiceInterface defines the interface for the forgot-password flow
type ResetServiceInterface interface {
	RequestReset(ctx context.Context, email, ipAddress string) error
	RedeemReset(ctx context.Context, token, newPassword, ipAddress string) error
}

// PasswordHandler handles password change and reset endpoints
type PasswordHandler struct {
	passwords PasswordServiceInterface
	resets    ResetServiceInterface
	ipConfig  *pkghttp.IPConfig
}

func NewPasswordHandler(passwords PasswordServiceInterface, resets ResetServiceInterface, ipConfig *pkghttp.IPConfig) *PasswordHandler {
	return &PasswordHandler{
		passwords: passwords,
		resets:    resets,
		ipConfig:  ipConfig,
	}
}

// ChangePasswordRequest represents the request body for a password change
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

// ForgotPasswordRequest represents the request body for a reset link
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest represents the request body for redeeming a reset link
type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

// Change rotates the authenticated member's password.
func (h *PasswordHandler) Change(w http.ResponseWriter, r *http.Request) {
	member := auth.MemberFromContext(r)
	if member == nil {
		pkghttp.WriteUnauthorized(w, "session is invalid or expired")
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)
	if err := h.passwords.Change(r.Context(), member, req.CurrentPassword, req.NewPassword, ipAddress); err != nil {
		writeAuthError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "password changed"})
}

// Forgot issues a reset link. The response never reveals whether the email
// maps to an account.
func (h *PasswordHandler) Forgot(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)
	if err := h.resets.RequestReset(r.Context(), req.Email, ipAddress); err != nil {
		writeAuthError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "if the email maps to an account, a reset link has been sent",
	})
}

// Reset redeems a reset link for a new password.
func (h *PasswordHandler) Reset(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)
	if err := h.resets.RedeemReset(r.Context(), req.Token, req.NewPassword, ipAddress); err != nil {
		writeAuthError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "password reset"})
}
