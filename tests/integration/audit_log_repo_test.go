package integration

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-blog/inkwell/internal/models"
	"github.com/inkwell-blog/inkwell/internal/repositories"
)

func seedAuditEntry(t *testing.T, repo *repositories.AuditLogRepository, action, status string, userID *uuid.UUID, ip string) *models.AuditLog {
	t.Helper()
	entry := &models.AuditLog{
		Action:  action,
		Status:  status,
		UserID:  userID,
		Details: models.AuditDetails{"source": "integration"},
	}
	if ip != "" {
		entry.IPAddress = &ip
	}
	created, err := repo.Create(context.Background(), entry)
	require.NoError(t, err)
	return created
}

func TestAuditLogRepository_CreateAndList(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	repo := repositories.NewAuditLogRepository(testDB.DB)

	user, err := SeedUser(ctx, testDB.DB, "writer@example.com", seedPassword, true)
	require.NoError(t, err)
	userID := uuid.MustParse(user.ID)

	seedAuditEntry(t, repo, models.AuditActionLoginFailure, models.AuditStatusFailure, &userID, "203.0.113.7")
	seedAuditEntry(t, repo, models.AuditActionLoginSuccess, models.AuditStatusSuccess, &userID, "203.0.113.7")
	seedAuditEntry(t, repo, models.AuditActionUserLocked, models.AuditStatusSuccess, nil, "")

	entries, err := repo.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	// Newest first
	assert.Equal(t, models.AuditActionUserLocked, entries[0].Action)
	assert.Equal(t, "integration", entries[0].Details["source"])
}

func TestAuditLogRepository_Filters(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	repo := repositories.NewAuditLogRepository(testDB.DB)

	user, err := SeedUser(ctx, testDB.DB, "writer@example.com", seedPassword, true)
	require.NoError(t, err)
	userID := uuid.MustParse(user.ID)

	seedAuditEntry(t, repo, models.AuditActionLoginFailure, models.AuditStatusFailure, &userID, "203.0.113.7")
	seedAuditEntry(t, repo, models.AuditActionLoginFailure, models.AuditStatusFailure, nil, "198.51.100.4")
	seedAuditEntry(t, repo, models.AuditActionPasswordChanged, models.AuditStatusSuccess, &userID, "203.0.113.7")

	byUser, err := repo.GetByUserID(ctx, user.ID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, byUser, 2)

	byAction, err := repo.GetByAction(ctx, models.AuditActionLoginFailure, 10, 0)
	require.NoError(t, err)
	assert.Len(t, byAction, 2)

	byIP, err := repo.GetByIP(ctx, "198.51.100.4", 10, 0)
	require.NoError(t, err)
	require.Len(t, byIP, 1)
	assert.Equal(t, models.AuditActionLoginFailure, byIP[0].Action)

	byBadID, err := repo.GetByUserID(ctx, "not-a-uuid", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, byBadID)
}

func TestAuditLogRepository_CountSince(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	repo := repositories.NewAuditLogRepository(testDB.DB)

	seedAuditEntry(t, repo, models.AuditActionLoginFailure, models.AuditStatusFailure, nil, "")
	seedAuditEntry(t, repo, models.AuditActionLoginFailure, models.AuditStatusFailure, nil, "")

	count, err := repo.CountSince(ctx, models.AuditActionLoginFailure, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = repo.CountSince(ctx, models.AuditActionLoginFailure, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
