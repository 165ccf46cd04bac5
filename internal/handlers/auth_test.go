package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-blog/inkwell/internal/models"
	"github.com/inkwell-blog/inkwell/internal/services"
	pkgauth "github.com/inkwell-blog/inkwell/pkg/auth"
	pkghttp "github.com/inkwell-blog/inkwell/pkg/http"
)

func newAuthHandler(authSvc AuthServiceInterface, pwSvc PasswordServiceInterface) *AuthHandler {
	return NewAuthHandler(authSvc, pwSvc, &pkghttp.IPConfig{})
}

func TestAuthHandler_Login_Success(t *testing.T) {
	user := &models.User{
		ID:    "11111111-1111-1111-1111-111111111111",
		Email: "writer@example.com",
		Role:  models.RoleUser,
	}
	mock := &MockAuthService{
		LoginFunc: func(ctx context.Context, input services.LoginInput) (*services.LoginResult, error) {
			assert.Equal(t, "writer@example.com", input.Email)
			return &services.LoginResult{
				Status: models.LoginStatusSuccess,
				User:   user,
				Token:  "session-token",
			}, nil
		},
	}
	handler := newAuthHandler(mock, &MockPasswordService{})

	req := NewTestRequest(t, "POST", "/api/auth/login", LoginRequest{
		Email:    "writer@example.com",
		Password: "Sufficient1!",
	})
	w := httptest.NewRecorder()
	handler.Login(w, req)

	var resp LoginResponse
	AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, models.LoginStatusSuccess, resp.Status)
	assert.Equal(t, "session-token", resp.Token)
	require.NotNil(t, resp.User)
	assert.Equal(t, "writer@example.com", resp.User.Email)
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	mock := &MockAuthService{
		LoginFunc: func(ctx context.Context, input services.LoginInput) (*services.LoginResult, error) {
			return &services.LoginResult{Status: models.LoginStatusInvalidCredentials}, nil
		},
	}
	handler := newAuthHandler(mock, &MockPasswordService{})

	req := NewTestRequest(t, "POST", "/api/auth/login", LoginRequest{
		Email:    "writer@example.com",
		Password: "wrong",
	})
	w := httptest.NewRecorder()
	handler.Login(w, req)

	AssertErrorResponse(t, w, http.StatusUnauthorized, "unauthorized")
}

func TestAuthHandler_Login_LockedSetsRetryAfter(t *testing.T) {
	mock := &MockAuthService{
		LoginFunc: func(ctx context.Context, input services.LoginInput) (*services.LoginResult, error) {
			return &services.LoginResult{
				Status:     models.LoginStatusLocked,
				RetryAfter: 10 * time.Minute,
			}, nil
		},
	}
	handler := newAuthHandler(mock, &MockPasswordService{})

	req := NewTestRequest(t, "POST", "/api/auth/login", LoginRequest{
		Email:    "writer@example.com",
		Password: "Sufficient1!",
	})
	w := httptest.NewRecorder()
	handler.Login(w, req)

	AssertErrorResponse(t, w, http.StatusLocked, "account_locked")
	assert.Equal(t, "600", w.Header().Get("Retry-After"))
}

func TestAuthHandler_Login_MFARequired(t *testing.T) {
	mock := &MockAuthService{
		LoginFunc: func(ctx context.Context, input services.LoginInput) (*services.LoginResult, error) {
			return &services.LoginResult{Status: models.LoginStatusMFARequired}, nil
		},
	}
	handler := newAuthHandler(mock, &MockPasswordService{})

	req := NewTestRequest(t, "POST", "/api/auth/login", LoginRequest{
		Email:    "writer@example.com",
		Password: "Sufficient1!",
	})
	w := httptest.NewRecorder()
	handler.Login(w, req)

	var resp LoginResponse
	AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, models.LoginStatusMFARequired, resp.Status)
	assert.Empty(t, resp.Token)
}

func TestAuthHandler_Login_MFASetupRequired(t *testing.T) {
	mock := &MockAuthService{
		LoginFunc: func(ctx context.Context, input services.LoginInput) (*services.LoginResult, error) {
			return &services.LoginResult{
				Status:     models.LoginStatusMFASetupRequired,
				SetupToken: "setup-token",
			}, nil
		},
	}
	handler := newAuthHandler(mock, &MockPasswordService{})

	req := NewTestRequest(t, "POST", "/api/auth/login", LoginRequest{
		Email:    "admin@example.com",
		Password: "Sufficient1!",
	})
	w := httptest.NewRecorder()
	handler.Login(w, req)

	var resp LoginResponse
	AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, models.LoginStatusMFASetupRequired, resp.Status)
	assert.Equal(t, "setup-token", resp.SetupToken)
	assert.Empty(t, resp.Token)
}

func TestAuthHandler_Login_RateLimited(t *testing.T) {
	mock := &MockAuthService{
		LoginFunc: func(ctx context.Context, input services.LoginInput) (*services.LoginResult, error) {
			return &services.LoginResult{
				Status:     models.LoginStatusRateLimited,
				RetryAfter: 42 * time.Second,
			}, nil
		},
	}
	handler := newAuthHandler(mock, &MockPasswordService{})

	req := NewTestRequest(t, "POST", "/api/auth/login", LoginRequest{
		Email:    "writer@example.com",
		Password: "Sufficient1!",
	})
	w := httptest.NewRecorder()
	handler.Login(w, req)

	AssertErrorResponse(t, w, http.StatusTooManyRequests, "rate_limit_exceeded")
	assert.Equal(t, "42", w.Header().Get("Retry-After"))
}

func TestAuthHandler_Login_PasswordExpired(t *testing.T) {
	mock := &MockAuthService{
		LoginFunc: func(ctx context.Context, input services.LoginInput) (*services.LoginResult, error) {
			return &services.LoginResult{Status: models.LoginStatusPasswordExpired}, nil
		},
	}
	handler := newAuthHandler(mock, &MockPasswordService{})

	req := NewTestRequest(t, "POST", "/api/auth/login", LoginRequest{
		Email:    "writer@example.com",
		Password: "Sufficient1!",
	})
	w := httptest.NewRecorder()
	handler.Login(w, req)

	AssertErrorResponse(t, w, http.StatusForbidden, "password_expired")
}

func TestAuthHandler_Login_RejectsMalformedMFACode(t *testing.T) {
	handler := newAuthHandler(&MockAuthService{}, &MockPasswordService{})

	req := NewTestRequest(t, "POST", "/api/auth/login", LoginRequest{
		Email:    "writer@example.com",
		Password: "Sufficient1!",
		MFACode:  "12ab56",
	})
	w := httptest.NewRecorder()
	handler.Login(w, req)

	AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
}

func TestAuthHandler_Register_WeakPassword(t *testing.T) {
	mock := &MockAuthService{
		RegisterFunc: func(ctx context.Context, input services.RegisterInput) (*models.User, error) {
			return nil, &pkgauth.PasswordValidationError{
				Violations: []string{"must be at least 12 characters long"},
			}
		},
	}
	handler := newAuthHandler(mock, &MockPasswordService{})

	req := NewTestRequest(t, "POST", "/api/auth/register", RegisterRequest{
		Name:     "Writer",
		Email:    "writer@example.com",
		Password: "short",
	})
	w := httptest.NewRecorder()
	handler.Register(w, req)

	AssertErrorResponse(t, w, http.StatusBadRequest, "weak_password")
}

func TestAuthHandler_Register_DuplicateEmail(t *testing.T) {
	mock := &MockAuthService{
		RegisterFunc: func(ctx context.Context, input services.RegisterInput) (*models.User, error) {
			return nil, models.ErrConflict
		},
	}
	handler := newAuthHandler(mock, &MockPasswordService{})

	req := NewTestRequest(t, "POST", "/api/auth/register", RegisterRequest{
		Name:     "Writer",
		Email:    "writer@example.com",
		Password: "Sufficient1!",
	})
	w := httptest.NewRecorder()
	handler.Register(w, req)

	AssertErrorResponse(t, w, http.StatusConflict, "conflict")
}

func TestAuthHandler_ChangePassword_RequiresAuth(t *testing.T) {
	handler := newAuthHandler(&MockAuthService{}, &MockPasswordService{})

	req := NewTestRequest(t, "POST", "/api/auth/password", ChangePasswordRequest{
		CurrentPassword: "Sufficient1!",
		NewPassword:     "Different2@",
	})
	w := httptest.NewRecorder()
	handler.ChangePassword(w, req)

	AssertErrorResponse(t, w, http.StatusUnauthorized, "unauthorized")
}

func TestAuthHandler_ChangePassword_ReusedPassword(t *testing.T) {
	mock := &MockPasswordService{
		ChangeFunc: func(ctx context.Context, userID, currentPassword, newPassword, ipAddress string) (*models.User, error) {
			return nil, models.ErrPasswordReused
		},
	}
	handler := newAuthHandler(&MockAuthService{}, mock)

	req := NewTestRequest(t, "POST", "/api/auth/password", ChangePasswordRequest{
		CurrentPassword: "Sufficient1!",
		NewPassword:     "Sufficient1!",
	})
	req = WithAuthContext(req, "11111111-1111-1111-1111-111111111111")
	w := httptest.NewRecorder()
	handler.ChangePassword(w, req)

	AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
}

func TestAuthHandler_ChangePassword_ConcurrentUpdate(t *testing.T) {
	mock := &MockPasswordService{
		ChangeFunc: func(ctx context.Context, userID, currentPassword, newPassword, ipAddress string) (*models.User, error) {
			return nil, models.ErrConflict
		},
	}
	handler := newAuthHandler(&MockAuthService{}, mock)

	req := NewTestRequest(t, "POST", "/api/auth/password", ChangePasswordRequest{
		CurrentPassword: "Sufficient1!",
		NewPassword:     "Different2@",
	})
	req = WithAuthContext(req, "11111111-1111-1111-1111-111111111111")
	w := httptest.NewRecorder()
	handler.ChangePassword(w, req)

	AssertErrorResponse(t, w, http.StatusConflict, "conflict")
}

func TestAuthHandler_CompletePasswordReset_ExpiredToken(t *testing.T) {
	mock := &MockPasswordService{
		CompleteResetFunc: func(ctx context.Context, plainToken, newPassword, ipAddress string) (*models.User, error) {
			return nil, models.ErrTokenExpired
		},
	}
	handler := newAuthHandler(&MockAuthService{}, mock)

	req := NewTestRequest(t, "POST", "/api/auth/password-reset/complete", CompleteResetRequest{
		Token:       "stale-token",
		NewPassword: "Different2@",
	})
	w := httptest.NewRecorder()
	handler.CompletePasswordReset(w, req)

	AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
}

func TestAuthHandler_VerifyEmail_Success(t *testing.T) {
	mock := &MockAuthService{
		VerifyEmailFunc: func(ctx context.Context, plainToken string) (*models.User, error) {
			assert.Equal(t, "fresh-token", plainToken)
			return &models.User{ID: "11111111-1111-1111-1111-111111111111", EmailVerified: true}, nil
		},
	}
	handler := newAuthHandler(mock, &MockPasswordService{})

	req := NewTestRequest(t, "POST", "/api/auth/verify-email", VerifyEmailRequest{Token: "fresh-token"})
	w := httptest.NewRecorder()
	handler.VerifyEmail(w, req)

	AssertJSONResponse(t, w, http.StatusOK, nil)
}
