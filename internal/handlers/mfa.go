package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/inkwell-blog/inkwell/internal/auth"
	"github.com/inkwell-blog/inkwell/internal/models"
	"github.com/inkwell-blog/inkwell/internal/services"
	pkghttp "github.com/inkwell-blog/inkwell/pkg/http"
)

// MFAServiceInterface defines the interface for TOTP enrollment
type MFAServiceInterface interface {
	BeginEnrollment(ctx context.Context, userID, ipAddress string) (*services.MFAEnrollment, error)
	ConfirmEnrollment(ctx context.Context, userID, code, ipAddress string) (*models.User, string, error)
}

// MFAHandler handles TOTP enrollment HTTP requests
type MFAHandler struct {
	service  MFAServiceInterface
	ipConfig *pkghttp.IPConfig
}

// NewMFAHandler creates a new MFAHandler
func NewMFAHandler(service MFAServiceInterface, ipConfig *pkghttp.IPConfig) *MFAHandler {
	return &MFAHandler{service: service, ipConfig: ipConfig}
}

// ConfirmEnrollmentRequest represents the request body for confirming enrollment
type ConfirmEnrollmentRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

// EnrollmentResponse represents the provisioning material for an authenticator app
type EnrollmentResponse struct {
	Secret          string `json:"secret"`
	ProvisioningURL string `json:"provisioning_url"`
	QRCode          string `json:"qr_code"`
}

// BeginEnrollment generates a pending TOTP secret and returns the QR code
func (h *MFAHandler) BeginEnrollment(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	enrollment, err := h.service.BeginEnrollment(r.Context(), claims.UserID,
		pkghttp.ExtractClientIP(r, h.ipConfig))
	if err != nil {
		switch {
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "MFA is already enabled for this account")
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "User not found")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, EnrollmentResponse{
		Secret:          enrollment.Secret,
		ProvisioningURL: enrollment.ProvisioningURL,
		QRCode:          enrollment.QRCodeDataURL,
	})
}

// ConfirmEnrollment verifies a code against the pending secret, enables
// MFA, and returns a fresh session token
func (h *MFAHandler) ConfirmEnrollment(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req ConfirmEnrollmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	user, token, err := h.service.ConfirmEnrollment(r.Context(), claims.UserID, req.Code,
		pkghttp.ExtractClientIP(r, h.ipConfig))
	if err != nil {
		switch {
		case errors.Is(err, models.ErrMFAInvalidCode):
			pkghttp.WriteUnauthorized(w, "Invalid verification code")
		case errors.Is(err, models.ErrMFANotEnrolled):
			pkghttp.WriteBadRequest(w, "No pending MFA enrollment. Start setup first.")
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "MFA is already enabled for this account")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	userResp := toUserResponse(user)
	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message": "MFA enabled successfully",
		"token":   token,
		"user":    userResp,
	})
}
