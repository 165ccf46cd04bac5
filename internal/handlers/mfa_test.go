package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/inkwell-blog/inkwell/internal/models"
	"github.com/inkwell-blog/inkwell/internal/services"
	pkghttp "github.com/inkwell-blog/inkwell/pkg/http"
)

func TestMFAHandler_BeginEnrollment(t *testing.T) {
	mock := &MockMFAService{
		BeginEnrollmentFunc: func(ctx context.Context, userID, ipAddress string) (*services.MFAEnrollment, error) {
			assert.Equal(t, testTargetID, userID)
			return &services.MFAEnrollment{
				Secret:          "JBSWY3DPEHPK3PXP",
				ProvisioningURL: "otpauth://totp/Inkwell:writer@example.com?secret=JBSWY3DPEHPK3PXP",
				QRCodeDataURL:   "data:image/png;base64,iVBOR",
			}, nil
		},
	}
	handler := NewMFAHandler(mock, &pkghttp.IPConfig{})

	req := NewTestRequest(t, "POST", "/api/auth/mfa/setup", nil)
	req = WithAuthContext(req, testTargetID)
	w := httptest.NewRecorder()
	handler.BeginEnrollment(w, req)

	var resp EnrollmentResponse
	AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", resp.Secret)
	assert.Contains(t, resp.ProvisioningURL, "otpauth://totp/")
	assert.Contains(t, resp.QRCode, "data:image/png;base64,")
}

func TestMFAHandler_BeginEnrollment_AlreadyEnabled(t *testing.T) {
	mock := &MockMFAService{
		BeginEnrollmentFunc: func(ctx context.Context, userID, ipAddress string) (*services.MFAEnrollment, error) {
			return nil, models.ErrConflict
		},
	}
	handler := NewMFAHandler(mock, &pkghttp.IPConfig{})

	req := NewTestRequest(t, "POST", "/api/auth/mfa/setup", nil)
	req = WithAuthContext(req, testTargetID)
	w := httptest.NewRecorder()
	handler.BeginEnrollment(w, req)

	AssertErrorResponse(t, w, http.StatusConflict, "conflict")
}

func TestMFAHandler_BeginEnrollment_RequiresAuth(t *testing.T) {
	handler := NewMFAHandler(&MockMFAService{}, &pkghttp.IPConfig{})

	req := NewTestRequest(t, "POST", "/api/auth/mfa/setup", nil)
	w := httptest.NewRecorder()
	handler.BeginEnrollment(w, req)

	AssertErrorResponse(t, w, http.StatusUnauthorized, "unauthorized")
}

func TestMFAHandler_ConfirmEnrollment(t *testing.T) {
	mock := &MockMFAService{
		ConfirmEnrollmentFunc: func(ctx context.Context, userID, code, ipAddress string) (*models.User, string, error) {
			assert.Equal(t, "123456", code)
			return &models.User{ID: userID, MFAEnabled: true}, "fresh-session-token", nil
		},
	}
	handler := NewMFAHandler(mock, &pkghttp.IPConfig{})

	req := NewTestRequest(t, "POST", "/api/auth/mfa/verify", ConfirmEnrollmentRequest{Code: "123456"})
	req = WithAuthContext(req, testTargetID)
	w := httptest.NewRecorder()
	handler.ConfirmEnrollment(w, req)

	var resp map[string]json.RawMessage
	AssertJSONResponse(t, w, http.StatusOK, &resp)
	var token string
	assert.NoError(t, json.Unmarshal(resp["token"], &token))
	assert.Equal(t, "fresh-session-token", token)
}

func TestMFAHandler_ConfirmEnrollment_InvalidCode(t *testing.T) {
	mock := &MockMFAService{
		ConfirmEnrollmentFunc: func(ctx context.Context, userID, code, ipAddress string) (*models.User, string, error) {
			return nil, "", models.ErrMFAInvalidCode
		},
	}
	handler := NewMFAHandler(mock, &pkghttp.IPConfig{})

	req := NewTestRequest(t, "POST", "/api/auth/mfa/verify", ConfirmEnrollmentRequest{Code: "000000"})
	req = WithAuthContext(req, testTargetID)
	w := httptest.NewRecorder()
	handler.ConfirmEnrollment(w, req)

	AssertErrorResponse(t, w, http.StatusUnauthorized, "unauthorized")
}

func TestMFAHandler_ConfirmEnrollment_NoPendingSecret(t *testing.T) {
	mock := &MockMFAService{
		ConfirmEnrollmentFunc: func(ctx context.Context, userID, code, ipAddress string) (*models.User, string, error) {
			return nil, "", models.ErrMFANotEnrolled
		},
	}
	handler := NewMFAHandler(mock, &pkghttp.IPConfig{})

	req := NewTestRequest(t, "POST", "/api/auth/mfa/verify", ConfirmEnrollmentRequest{Code: "123456"})
	req = WithAuthContext(req, testTargetID)
	w := httptest.NewRecorder()
	handler.ConfirmEnrollment(w, req)

	AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
}

func TestMFAHandler_ConfirmEnrollment_MalformedCode(t *testing.T) {
	handler := NewMFAHandler(&MockMFAService{}, &pkghttp.IPConfig{})

	req := NewTestRequest(t, "POST", "/api/auth/mfa/verify", ConfirmEnrollmentRequest{Code: "12-456"})
	req = WithAuthContext(req, testTargetID)
	w := httptest.NewRecorder()
	handler.ConfirmEnrollment(w, req)

	AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
}
