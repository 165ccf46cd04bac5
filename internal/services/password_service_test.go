package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-blog/inkwell/internal/models"
	pkgauth "github.com/inkwell-blog/inkwell/pkg/auth"
)

func newPasswordFixture(store *MockUserStore) (*PasswordService, *RecordingAuditSink, *MockEmailService) {
	sink := &RecordingAuditSink{}
	emails := &MockEmailService{}
	service := NewPasswordService(store, emails, sink, discardLogger(), 30*time.Minute)
	return service, sink, emails
}

func userWithHistory(t *testing.T, passwords ...string) *models.User {
	t.Helper()
	history := make([]models.PasswordHistoryEntry, 0, len(passwords))
	for _, p := range passwords {
		hash, err := pkgauth.HashPassword(p)
		require.NoError(t, err)
		history = append(history, models.PasswordHistoryEntry{Hash: hash, CreatedAt: time.Now()})
	}
	user := verifiedUser(t)
	if len(history) > 0 {
		user.PasswordHash = history[len(history)-1].Hash
		user.PasswordHistory = history
	}
	return user
}

func TestPasswordService_Change_Success(t *testing.T) {
	user := userWithHistory(t, testPassword)

	var savedHash string
	var savedHistory []models.PasswordHistoryEntry
	store := &MockUserStore{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return user, nil
		},
		UpdatePasswordFunc: func(ctx context.Context, id string, version int, newHash string, history []models.PasswordHistoryEntry) (*models.User, error) {
			assert.Equal(t, user.Version, version)
			savedHash = newHash
			savedHistory = history
			updated := *user
			updated.PasswordHash = newHash
			updated.Version = version + 1
			return &updated, nil
		},
	}
	service, sink, _ := newPasswordFixture(store)

	_, err := service.Change(context.Background(), user.ID, testPassword, "BrandNewPass2!", "203.0.113.7")
	require.NoError(t, err)

	assert.NoError(t, pkgauth.ComparePassword(savedHash, "BrandNewPass2!"))
	assert.Len(t, savedHistory, 2)
	assert.True(t, sink.HasAction(models.AuditActionPasswordChanged))
}

func TestPasswordService_Change_WrongCurrentPassword(t *testing.T) {
	user := userWithHistory(t, testPassword)
	store := &MockUserStore{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return user, nil
		},
	}
	service, sink, _ := newPasswordFixture(store)

	_, err := service.Change(context.Background(), user.ID, "NotTheCurrent1!", "BrandNewPass2!", "")
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	events := sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, models.AuditStatusFailure, events[0].Status)
}

func TestPasswordService_Change_RejectsReusedPassword(t *testing.T) {
	// Current password plus an older one, both retained in history
	user := userWithHistory(t, "OlderPassword9!", testPassword)
	store := &MockUserStore{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return user, nil
		},
	}
	service, _, _ := newPasswordFixture(store)

	_, err := service.Change(context.Background(), user.ID, testPassword, "OlderPassword9!", "")
	assert.ErrorIs(t, err, models.ErrPasswordReused)

	_, err = service.Change(context.Background(), user.ID, testPassword, testPassword, "")
	assert.ErrorIs(t, err, models.ErrPasswordReused)
}

func TestPasswordService_Change_HistoryCappedAtLimit(t *testing.T) {
	user := userWithHistory(t,
		"RotatedPass1!", "RotatedPass2!", "RotatedPass3!", "RotatedPass4!", testPassword)

	var savedHistory []models.PasswordHistoryEntry
	store := &MockUserStore{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return user, nil
		},
		UpdatePasswordFunc: func(ctx context.Context, id string, version int, newHash string, history []models.PasswordHistoryEntry) (*models.User, error) {
			savedHistory = history
			return user, nil
		},
	}
	service, _, _ := newPasswordFixture(store)

	_, err := service.Change(context.Background(), user.ID, testPassword, "BrandNewPass2!", "")
	require.NoError(t, err)

	require.Len(t, savedHistory, models.PasswordHistoryLimit)
	// The oldest entry fell off; the newest entry matches the new password
	assert.NoError(t, pkgauth.ComparePassword(savedHistory[len(savedHistory)-1].Hash, "BrandNewPass2!"))
	assert.True(t, pkgauth.IsPasswordReused("RotatedPass2!", historyHashes(savedHistory)))
	assert.False(t, pkgauth.IsPasswordReused("RotatedPass1!", historyHashes(savedHistory)))
}

func historyHashes(history []models.PasswordHistoryEntry) []string {
	out := make([]string, 0, len(history))
	for _, entry := range history {
		out = append(out, entry.Hash)
	}
	return out
}

func TestPasswordService_Change_RetriesOnVersionConflict(t *testing.T) {
	user := userWithHistory(t, testPassword)

	attempts := 0
	store := &MockUserStore{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return user, nil
		},
		UpdatePasswordFunc: func(ctx context.Context, id string, version int, newHash string, history []models.PasswordHistoryEntry) (*models.User, error) {
			attempts++
			if attempts == 1 {
				return nil, models.ErrConflict
			}
			return user, nil
		},
	}
	service, _, _ := newPasswordFixture(store)

	_, err := service.Change(context.Background(), user.ID, testPassword, "BrandNewPass2!", "")
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestPasswordService_RequestReset_SendsToken(t *testing.T) {
	user := userWithHistory(t, testPassword)

	var storedHash, mailedToken string
	store := &MockUserStore{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return user, nil
		},
		SetPasswordResetTokenFunc: func(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
			storedHash = tokenHash
			assert.WithinDuration(t, time.Now().Add(30*time.Minute), expiresAt, 5*time.Second)
			return nil
		},
	}
	service, sink, emails := newPasswordFixture(store)
	emails.SendPasswordResetEmailFunc = func(ctx context.Context, email, token string, expiresAt time.Time) error {
		mailedToken = token
		return nil
	}

	err := service.RequestReset(context.Background(), user.Email, "203.0.113.7")
	require.NoError(t, err)

	// Only the hash is stored; the plain token travels in the email
	assert.NotEqual(t, mailedToken, storedHash)
	assert.Equal(t, pkgauth.HashToken(mailedToken), storedHash)
	assert.True(t, sink.HasAction(models.AuditActionPasswordResetRequested))
}

func TestPasswordService_RequestReset_UnknownEmail(t *testing.T) {
	service, _, _ := newPasswordFixture(&MockUserStore{})

	err := service.RequestReset(context.Background(), "nobody@example.com", "")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestPasswordService_CompleteReset_Success(t *testing.T) {
	user := userWithHistory(t, testPassword)

	store := &MockUserStore{
		GetByResetTokenHashFunc: func(ctx context.Context, tokenHash string) (*models.User, error) {
			assert.Equal(t, pkgauth.HashToken("reset-token"), tokenHash)
			return user, nil
		},
		UpdatePasswordFunc: func(ctx context.Context, id string, version int, newHash string, history []models.PasswordHistoryEntry) (*models.User, error) {
			updated := *user
			updated.PasswordHash = newHash
			return &updated, nil
		},
	}
	service, sink, _ := newPasswordFixture(store)

	updated, err := service.CompleteReset(context.Background(), "reset-token", "BrandNewPass2!", "")
	require.NoError(t, err)

	assert.NoError(t, pkgauth.ComparePassword(updated.PasswordHash, "BrandNewPass2!"))
	assert.True(t, sink.HasAction(models.AuditActionPasswordResetCompleted))
}

func TestPasswordService_CompleteReset_ExpiredToken(t *testing.T) {
	service, _, _ := newPasswordFixture(&MockUserStore{})

	_, err := service.CompleteReset(context.Background(), "stale-token", "BrandNewPass2!", "")
	assert.ErrorIs(t, err, models.ErrTokenExpired)
}
