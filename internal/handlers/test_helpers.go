package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/inkwell-blog/inkwell/internal/auth"
	"github.com/inkwell-blog/inkwell/internal/models"
	"github.com/inkwell-blog/inkwell/internal/services"
	pkghttp "github.com/inkwell-blog/inkwell/pkg/http"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAuthContext adds session claims to the request context for testing
// authenticated endpoints
func WithAuthContext(req *http.Request, userID string) *http.Request {
	claims := &models.TokenClaims{
		Type:   models.TokenTypeSession,
		UserID: userID,
		Role:   models.RoleUser,
	}
	return req.WithContext(auth.ContextWithClaims(req.Context(), claims))
}

// WithAdminContext adds admin session claims to the request context
func WithAdminContext(req *http.Request, userID string) *http.Request {
	claims := &models.TokenClaims{
		Type:        models.TokenTypeSession,
		UserID:      userID,
		Role:        models.RoleAdmin,
		Permissions: models.AllPermissions,
		MFAVerified: true,
	}
	return req.WithContext(auth.ContextWithClaims(req.Context(), claims))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// WithChiRouteContext adds chi URL parameters to request context for testing
func WithChiRouteContext(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc              func(ctx context.Context, input services.LoginInput) (*services.LoginResult, error)
	RegisterFunc           func(ctx context.Context, input services.RegisterInput) (*models.User, error)
	VerifyEmailFunc        func(ctx context.Context, plainToken string) (*models.User, error)
	ResendVerificationFunc func(ctx context.Context, email, ipAddress string) error
}

func (m *MockAuthService) Login(ctx context.Context, input services.LoginInput) (*services.LoginResult, error) {
	if m.LoginFunc == nil {
		return nil, models.ErrInternalServer
	}
	return m.LoginFunc(ctx, input)
}

func (m *MockAuthService) Register(ctx context.Context, input services.RegisterInput) (*models.User, error) {
	if m.RegisterFunc == nil {
		return nil, models.ErrConflict
	}
	return m.RegisterFunc(ctx, input)
}

func (m *MockAuthService) VerifyEmail(ctx context.Context, plainToken string) (*models.User, error) {
	if m.VerifyEmailFunc == nil {
		return nil, models.ErrTokenExpired
	}
	return m.VerifyEmailFunc(ctx, plainToken)
}

func (m *MockAuthService) ResendVerification(ctx context.Context, email, ipAddress string) error {
	if m.ResendVerificationFunc == nil {
		return nil
	}
	return m.ResendVerificationFunc(ctx, email, ipAddress)
}

// MockPasswordService implements PasswordServiceInterface for testing
type MockPasswordService struct {
	ChangeFunc        func(ctx context.Context, userID, currentPassword, newPassword, ipAddress string) (*models.User, error)
	RequestResetFunc  func(ctx context.Context, email, ipAddress string) error
	CompleteResetFunc func(ctx context.Context, plainToken, newPassword, ipAddress string) (*models.User, error)
}

func (m *MockPasswordService) Change(ctx context.Context, userID, currentPassword, newPassword, ipAddress string) (*models.User, error) {
	if m.ChangeFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.ChangeFunc(ctx, userID, currentPassword, newPassword, ipAddress)
}

func (m *MockPasswordService) RequestReset(ctx context.Context, email, ipAddress string) error {
	if m.RequestResetFunc == nil {
		return nil
	}
	return m.RequestResetFunc(ctx, email, ipAddress)
}

func (m *MockPasswordService) CompleteReset(ctx context.Context, plainToken, newPassword, ipAddress string) (*models.User, error) {
	if m.CompleteResetFunc == nil {
		return nil, models.ErrTokenExpired
	}
	return m.CompleteResetFunc(ctx, plainToken, newPassword, ipAddress)
}

// MockMFAService implements MFAServiceInterface for testing
type MockMFAService struct {
	BeginEnrollmentFunc   func(ctx context.Context, userID, ipAddress string) (*services.MFAEnrollment, error)
	ConfirmEnrollmentFunc func(ctx context.Context, userID, code, ipAddress string) (*models.User, string, error)
}

func (m *MockMFAService) BeginEnrollment(ctx context.Context, userID, ipAddress string) (*services.MFAEnrollment, error) {
	if m.BeginEnrollmentFunc == nil {
		return nil, models.ErrInternalServer
	}
	return m.BeginEnrollmentFunc(ctx, userID, ipAddress)
}

func (m *MockMFAService) ConfirmEnrollment(ctx context.Context, userID, code, ipAddress string) (*models.User, string, error) {
	if m.ConfirmEnrollmentFunc == nil {
		return nil, "", models.ErrMFAInvalidCode
	}
	return m.ConfirmEnrollmentFunc(ctx, userID, code, ipAddress)
}

// MockAdminService implements AdminServiceInterface for testing
type MockAdminService struct {
	ListUsersFunc     func(ctx context.Context, limit, offset int) ([]*models.User, error)
	GetUserFunc       func(ctx context.Context, id string) (*models.User, error)
	LockUserFunc      func(ctx context.Context, input services.LockUserInput) (*models.User, error)
	UnlockUserFunc    func(ctx context.Context, targetID, actorID, ipAddress string) (*models.User, error)
	ResetUserMFAFunc  func(ctx context.Context, targetID, actorID, ipAddress string) error
	DeleteUserFunc    func(ctx context.Context, targetID, actorID, ipAddress string) error
	QueryAuditLogFunc   func(ctx context.Context, query services.AuditQuery) ([]*models.AuditLog, error)
	SecuritySummaryFunc func(ctx context.Context, window time.Duration) (*services.SecuritySummary, error)
}

func (m *MockAdminService) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	if m.ListUsersFunc == nil {
		return []*models.User{}, nil
	}
	return m.ListUsersFunc(ctx, limit, offset)
}

func (m *MockAdminService) GetUser(ctx context.Context, id string) (*models.User, error) {
	if m.GetUserFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetUserFunc(ctx, id)
}

func (m *MockAdminService) LockUser(ctx context.Context, input services.LockUserInput) (*models.User, error) {
	if m.LockUserFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.LockUserFunc(ctx, input)
}

func (m *MockAdminService) UnlockUser(ctx context.Context, targetID, actorID, ipAddress string) (*models.User, error) {
	if m.UnlockUserFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.UnlockUserFunc(ctx, targetID, actorID, ipAddress)
}

func (m *MockAdminService) ResetUserMFA(ctx context.Context, targetID, actorID, ipAddress string) error {
	if m.ResetUserMFAFunc == nil {
		return nil
	}
	return m.ResetUserMFAFunc(ctx, targetID, actorID, ipAddress)
}

func (m *MockAdminService) DeleteUser(ctx context.Context, targetID, actorID, ipAddress string) error {
	if m.DeleteUserFunc == nil {
		return nil
	}
	return m.DeleteUserFunc(ctx, targetID, actorID, ipAddress)
}

func (m *MockAdminService) QueryAuditLog(ctx context.Context, query services.AuditQuery) ([]*models.AuditLog, error) {
	if m.QueryAuditLogFunc == nil {
		return []*models.AuditLog{}, nil
	}
	return m.QueryAuditLogFunc(ctx, query)
}

func (m *MockAdminService) SecuritySummary(ctx context.Context, window time.Duration) (*services.SecuritySummary, error) {
	if m.SecuritySummaryFunc == nil {
		return &services.SecuritySummary{Window: window}, nil
	}
	return m.SecuritySummaryFunc(ctx, window)
}

// MockPolicyService implements PolicyServiceInterface for testing
type MockPolicyService struct {
	CurrentFunc func(ctx context.Context) *models.SecurityPolicy
	UpdateFunc  func(ctx context.Context, policy *models.SecurityPolicy) (*models.SecurityPolicy, error)
}

func (m *MockPolicyService) Current(ctx context.Context) *models.SecurityPolicy {
	if m.CurrentFunc == nil {
		return models.DefaultSecurityPolicy()
	}
	return m.CurrentFunc(ctx)
}

func (m *MockPolicyService) Update(ctx context.Context, policy *models.SecurityPolicy) (*models.SecurityPolicy, error) {
	if m.UpdateFunc == nil {
		return policy, nil
	}
	return m.UpdateFunc(ctx, policy)
}

// MockProfileService implements UserServiceInterface for testing
type MockProfileService struct {
	GetProfileFunc    func(ctx context.Context, id string) (*models.User, error)
	UpdateProfileFunc func(ctx context.Context, id string, update services.ProfileUpdate) (*models.User, error)
}

func (m *MockProfileService) GetProfile(ctx context.Context, id string) (*models.User, error) {
	if m.GetProfileFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetProfileFunc(ctx, id)
}

func (m *MockProfileService) UpdateProfile(ctx context.Context, id string, update services.ProfileUpdate) (*models.User, error) {
	if m.UpdateProfileFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.UpdateProfileFunc(ctx, id, update)
}
