package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-blog/inkwell/internal/models"
	"github.com/inkwell-blog/inkwell/internal/repositories"
)

func TestSecurityPolicyRepository_GetEmpty(t *testing.T) {
	resetTables(t)
	repo := repositories.NewSecurityPolicyRepository(testDB.DB)

	_, err := repo.Get(context.Background())
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestSecurityPolicyRepository_UpsertRoundtrip(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	repo := repositories.NewSecurityPolicyRepository(testDB.DB)

	policy := models.DefaultSecurityPolicy()
	policy.MaxLoginAttempts = 3
	policy.LockoutDuration = 45 * time.Minute

	saved, err := repo.Upsert(ctx, policy)
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)

	found, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, found.MaxLoginAttempts)
	assert.Equal(t, 45*time.Minute, found.LockoutDuration)
	assert.True(t, found.RequireAdminMFA)
	require.Contains(t, found.RateLimits, models.RateLimitClassAuth)
	assert.Equal(t, 5, found.RateLimits[models.RateLimitClassAuth].MaxRequests)
	assert.Equal(t, 15*time.Minute, found.RateLimits[models.RateLimitClassAuth].Window)
}

func TestSecurityPolicyRepository_UpsertIsSingleton(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	repo := repositories.NewSecurityPolicyRepository(testDB.DB)

	first := models.DefaultSecurityPolicy()
	saved, err := repo.Upsert(ctx, first)
	require.NoError(t, err)

	// A second writer with a different candidate id converges on the same row
	second := models.DefaultSecurityPolicy()
	second.MaxLoginAttempts = 10
	updated, err := repo.Upsert(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, updated.ID)

	var count int
	require.NoError(t, testDB.Pool.QueryRow(ctx, `SELECT count(*) FROM security_policy`).Scan(&count))
	assert.Equal(t, 1, count)

	found, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, found.MaxLoginAttempts)
}
