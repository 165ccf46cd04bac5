package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-blog/inkwell/internal/models"
)

type stubUserFetcher struct {
	user *models.User
	err  error
}

func (s *stubUserFetcher) GetByID(ctx context.Context, id string) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.user, nil
}

type stubPolicyReader struct{}

func (s *stubPolicyReader) Current(ctx context.Context) *models.SecurityPolicy {
	return models.DefaultSecurityPolicy()
}

func TestCheckAccountUsable(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	soon := now.Add(10 * time.Minute)
	past := now.Add(-10 * time.Minute)

	tests := []struct {
		name     string
		mutate   func(u *models.User)
		expected error
	}{
		{
			name:   "healthy account",
			mutate: func(u *models.User) {},
		},
		{
			name:     "permanent lock",
			mutate:   func(u *models.User) { u.PermanentlyLocked = true },
			expected: models.ErrAccountPermanentlyLocked,
		},
		{
			name:     "temporary lock",
			mutate:   func(u *models.User) { u.LockedUntil = &soon },
			expected: models.ErrAccountLocked,
		},
		{
			name:   "elapsed lock",
			mutate: func(u *models.User) { u.LockedUntil = &past },
		},
		{
			name:     "expired password",
			mutate:   func(u *models.User) { u.PasswordChangedAt = now.Add(-91 * 24 * time.Hour) },
			expected: models.ErrPasswordExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user := testUser()
			user.PasswordChangedAt = now.Add(-time.Hour)
			tt.mutate(user)

			err := CheckAccountUsable(user, now, 90)
			if tt.expected == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.expected)
			}
		})
	}
}

func TestCheckAccountUsable_ZeroExpirySkipsPasswordCheck(t *testing.T) {
	user := testUser()
	user.PasswordChangedAt = time.Now().Add(-400 * 24 * time.Hour)

	assert.NoError(t, CheckAccountUsable(user, time.Now(), 0))
}

func TestRequireSession_LockedAccountRefused(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Hour, 15*time.Minute)
	user := testUser()
	token, err := tm.GenerateSessionToken(user, true)
	require.NoError(t, err)

	// Locked after issuance; the still-valid token must stop working
	until := time.Now().Add(10 * time.Minute)
	user.LockedUntil = &until

	handler := RequireSession(tm, &stubUserFetcher{user: user}, &stubPolicyReader{})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("locked account must not reach the handler")
		}))

	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireSession_ExpiredPasswordRefused(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Hour, 15*time.Minute)
	user := testUser()
	user.PasswordChangedAt = time.Now().Add(-100 * 24 * time.Hour)
	token, err := tm.GenerateSessionToken(user, true)
	require.NoError(t, err)

	handler := RequireSession(tm, &stubUserFetcher{user: user}, &stubPolicyReader{})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("expired password must not reach the handler")
		}))

	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireSession_ValidSessionPassesThrough(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Hour, 15*time.Minute)
	user := testUser()
	token, err := tm.GenerateSessionToken(user, true)
	require.NoError(t, err)

	var seen *models.User
	handler := RequireSession(tm, &stubUserFetcher{user: user}, &stubPolicyReader{})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen, _ = UserFromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, user.ID, seen.ID)
}
