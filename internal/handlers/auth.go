package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/inkwell-blog/inkwell/internal/auth"
	"github.com/inkwell-blog/inkwell/internal/models"
	"github.com/inkwell-blog/inkwell/internal/services"
	pkgauth "github.com/inkwell-blog/inkwell/pkg/auth"
	pkghttp "github.com/inkwell-blog/inkwell/pkg/http"
)

// AuthServiceInterface defines the interface for authentication business logic
type AuthServiceInterface interface {
	Login(ctx context.Context, input services.LoginInput) (*services.LoginResult, error)
	Register(ctx context.Context, input services.RegisterInput) (*models.User, error)
	VerifyEmail(ctx context.Context, plainToken string) (*models.User, error)
	ResendVerification(ctx context.Context, email, ipAddress string) error
}

// PasswordServiceInterface defines the interface for the password lifecycle
type PasswordServiceInterface interface {
	Change(ctx context.Context, userID, currentPassword, newPassword, ipAddress string) (*models.User, error)
	RequestReset(ctx context.Context, email, ipAddress string) error
	CompleteReset(ctx context.Context, plainToken, newPassword, ipAddress string) (*models.User, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service   AuthServiceInterface
	passwords PasswordServiceInterface
	ipConfig  *pkghttp.IPConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, passwords PasswordServiceInterface, ipConfig *pkghttp.IPConfig) *AuthHandler {
	return &AuthHandler{
		service:   service,
		passwords: passwords,
		ipConfig:  ipConfig,
	}
}

// Request DTOs

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	MFACode  string `json:"mfa_code,omitempty" validate:"omitempty,len=6,numeric"`
}

// RegisterRequest represents the request body for registration
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=1,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// VerifyEmailRequest represents the request body for email verification
type VerifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

// ResendVerificationRequest represents the request body for resending verification email
type ResendVerificationRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ChangePasswordRequest represents the request body for a password change
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

// RequestResetRequest represents the request body for starting a password reset
type RequestResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// CompleteResetRequest represents the request body for finishing a password reset
type CompleteResetRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

// LoginResponse represents a terminal login outcome
type LoginResponse struct {
	Status     models.LoginStatus `json:"status"`
	Token      string             `json:"token,omitempty"`
	SetupToken string             `json:"setup_token,omitempty"`
	User       *UserResponse      `json:"user,omitempty"`
}

// Login handles a login attempt, including the optional TOTP code
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

	result, err := h.service.Login(r.Context(), services.LoginInput{
		Email:     req.Email,
		Password:  req.Password,
		MFACode:   req.MFACode,
		IPAddress: pkghttp.ExtractClientIP(r, h.ipConfig),
		UserAgent: r.Header.Get("User-Agent"),
	})
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	switch result.Status {
	case models.LoginStatusSuccess:
		user := toUserResponse(result.User)
		pkghttp.WriteJSON(w, http.StatusOK, LoginResponse{
			Status: result.Status,
			Token:  result.Token,
			User:   &user,
		})

	case models.LoginStatusMFARequired:
		pkghttp.WriteJSON(w, http.StatusOK, LoginResponse{Status: result.Status})

	case models.LoginStatusMFASetupRequired:
		pkghttp.WriteJSON(w, http.StatusOK, LoginResponse{
			Status:     result.Status,
			SetupToken: result.SetupToken,
		})

	case models.LoginStatusLocked:
		pkghttp.WriteLocked(w, "Account is locked", int(result.RetryAfter.Seconds()))

	case models.LoginStatusEmailUnverified:
		pkghttp.WriteForbidden(w, "Email address not verified")

	case models.LoginStatusPasswordExpired:
		pkghttp.WriteError(w, http.StatusForbidden, "password_expired",
			"Password has expired and must be changed")

	case models.LoginStatusRateLimited:
		pkghttp.WriteTooManyRequests(w, "Too many login attempts. Please try again later.",
			int(result.RetryAfter.Seconds()))

	default:
		pkghttp.WriteUnauthorized(w, "Invalid email or password")
	}
}

// Register handles user registration
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

	user, err := h.service.Register(r.Context(), services.RegisterInput{
		Name:      req.Name,
		Email:     req.Email,
		Password:  req.Password,
		IPAddress: pkghttp.ExtractClientIP(r, h.ipConfig),
		UserAgent: r.Header.Get("User-Agent"),
	})
	if err != nil {
		var pv *pkgauth.PasswordValidationError
		switch {
		case errors.As(err, &pv):
			pkghttp.WriteErrorWithDetails(w, http.StatusBadRequest, "weak_password",
				"Password does not meet the complexity requirements", pv.Error())
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "An account with this email already exists")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Registration successful. Please check your email to verify your account.",
		"user":    toUserResponse(user),
	})
}

// VerifyEmail consumes an email verification token
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req VerifyEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if _, err := h.service.VerifyEmail(r.Context(), req.Token); err != nil {
		if errors.Is(err, models.ErrTokenExpired) {
			pkghttp.WriteBadRequest(w, "Verification link is invalid or has expired")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Email verified successfully",
	})
}

// ResendVerification issues a fresh verification email
func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req ResendVerificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.ResendVerification(r.Context(), req.Email, pkghttp.ExtractClientIP(r, h.ipConfig)); err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "No account found for this email")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Email is already verified")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Verification email sent",
	})
}

// ChangePassword rotates the authenticated user's password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
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

	_, err := h.passwords.Change(r.Context(), claims.UserID, req.CurrentPassword, req.NewPassword,
		pkghttp.ExtractClientIP(r, h.ipConfig))
	if err != nil {
		h.writePasswordError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Password changed successfully",
	})
}

// RequestPasswordReset starts the email reset flow
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req RequestResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.passwords.RequestReset(r.Context(), req.Email, pkghttp.ExtractClientIP(r, h.ipConfig)); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "No account found for this email")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Password reset email sent",
	})
}

// CompletePasswordReset consumes a reset token and installs the new password
func (h *AuthHandler) CompletePasswordReset(w http.ResponseWriter, r *http.Request) {
	var req CompleteResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	_, err := h.passwords.CompleteReset(r.Context(), req.Token, req.NewPassword,
		pkghttp.ExtractClientIP(r, h.ipConfig))
	if err != nil {
		if errors.Is(err, models.ErrTokenExpired) {
			pkghttp.WriteBadRequest(w, "Reset link is invalid or has expired")
			return
		}
		h.writePasswordError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Password reset successfully",
	})
}

func (h *AuthHandler) writePasswordError(w http.ResponseWriter, err error) {
	var pv *pkgauth.PasswordValidationError
	switch {
	case errors.As(err, &pv):
		pkghttp.WriteErrorWithDetails(w, http.StatusBadRequest, "weak_password",
			"Password does not meet the complexity requirements", pv.Error())
	case errors.Is(err, models.ErrPasswordReused):
		pkghttp.WriteBadRequest(w, "New password must not match any recently used password")
	case errors.Is(err, models.ErrUnauthorized):
		pkghttp.WriteUnauthorized(w, "Current password is incorrect")
	case errors.Is(err, models.ErrConflict):
		pkghttp.WriteConflict(w, "Password was changed concurrently. Please retry.")
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "User not found")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}
