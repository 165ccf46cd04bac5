package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/inkwell-blog/inkwell/internal/models"
)

func newLimiterFixture(policy *models.SecurityPolicy) (*RateLimitService, *time.Time) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewRateLimitService(&StaticPolicyProvider{Policy: policy})
	limiter.now = func() time.Time { return now }
	return limiter, &now
}

func TestRateLimitService_AllowsUpToBudget(t *testing.T) {
	policy := models.DefaultSecurityPolicy()
	limiter, _ := newLimiterFixture(policy)

	ctx := context.Background()
	budget := policy.RuleFor(models.RateLimitClassAuth).MaxRequests

	for i := 0; i < budget; i++ {
		decision := limiter.Allow(ctx, models.RateLimitClassAuth, "203.0.113.7")
		assert.True(t, decision.Allowed, "request %d should be admitted", i+1)
		assert.Equal(t, budget-i-1, decision.Remaining)
	}

	// Request budget+1 in the same window is rejected with a retry hint
	decision := limiter.Allow(ctx, models.RateLimitClassAuth, "203.0.113.7")
	assert.False(t, decision.Allowed)
	assert.Equal(t, 15*time.Minute, decision.RetryAfter)
}

func TestRateLimitService_WindowRollsOverLazily(t *testing.T) {
	policy := models.DefaultSecurityPolicy()
	limiter, now := newLimiterFixture(policy)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		limiter.Allow(ctx, models.RateLimitClassAuth, "203.0.113.7")
	}
	assert.False(t, limiter.Allow(ctx, models.RateLimitClassAuth, "203.0.113.7").Allowed)

	// Once the window has elapsed the next check starts a fresh one
	*now = now.Add(15*time.Minute + time.Second)
	decision := limiter.Allow(ctx, models.RateLimitClassAuth, "203.0.113.7")
	assert.True(t, decision.Allowed)
}

func TestRateLimitService_KeysAreIndependent(t *testing.T) {
	policy := models.DefaultSecurityPolicy()
	limiter, _ := newLimiterFixture(policy)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		limiter.Allow(ctx, models.RateLimitClassAuth, "203.0.113.7")
	}
	assert.False(t, limiter.Allow(ctx, models.RateLimitClassAuth, "203.0.113.7").Allowed)

	// A different caller has its own window
	assert.True(t, limiter.Allow(ctx, models.RateLimitClassAuth, "198.51.100.4").Allowed)

	// The same caller under another class has its own budget too
	assert.True(t, limiter.Allow(ctx, models.RateLimitClassAPI, "203.0.113.7").Allowed)
}

func TestRateLimitService_UnknownClassFallsBackToDefault(t *testing.T) {
	policy := models.DefaultSecurityPolicy()
	limiter, _ := newLimiterFixture(policy)

	decision := limiter.Allow(context.Background(), "export", "203.0.113.7")
	assert.True(t, decision.Allowed)
	assert.Equal(t, policy.RuleFor(models.RateLimitClassDefault).MaxRequests-1, decision.Remaining)
}

func TestRateLimitService_PolicyChangeAppliesAtNextWindow(t *testing.T) {
	policy := models.DefaultSecurityPolicy()
	limiter, now := newLimiterFixture(policy)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		limiter.Allow(ctx, models.RateLimitClassAuth, "203.0.113.7")
	}
	assert.False(t, limiter.Allow(ctx, models.RateLimitClassAuth, "203.0.113.7").Allowed)

	// An admin raising the budget does not reopen the window in flight
	policy.RateLimits[models.RateLimitClassAuth] = models.RateLimitRule{
		Window:      5 * time.Minute,
		MaxRequests: 10,
	}
	assert.False(t, limiter.Allow(ctx, models.RateLimitClassAuth, "203.0.113.7").Allowed)

	// The current window still runs to its original length
	*now = now.Add(10 * time.Minute)
	assert.False(t, limiter.Allow(ctx, models.RateLimitClassAuth, "203.0.113.7").Allowed)

	// At rollover the new rule is snapshotted for the fresh window
	*now = now.Add(5*time.Minute + time.Second)
	decision := limiter.Allow(ctx, models.RateLimitClassAuth, "203.0.113.7")
	assert.True(t, decision.Allowed)
	assert.Equal(t, 9, decision.Remaining)
}

func TestRateLimitService_ShrunkBudgetNotRetroactive(t *testing.T) {
	policy := models.DefaultSecurityPolicy()
	limiter, now := newLimiterFixture(policy)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow(ctx, models.RateLimitClassAuth, "203.0.113.7").Allowed)
	}

	// Shrinking the budget below the in-flight count does not reject
	// requests the open window already budgeted for
	policy.RateLimits[models.RateLimitClassAuth] = models.RateLimitRule{
		Window:      15 * time.Minute,
		MaxRequests: 2,
	}
	assert.True(t, limiter.Allow(ctx, models.RateLimitClassAuth, "203.0.113.7").Allowed)
	assert.True(t, limiter.Allow(ctx, models.RateLimitClassAuth, "203.0.113.7").Allowed)

	// After rollover the shrunk budget binds
	*now = now.Add(15*time.Minute + time.Second)
	assert.True(t, limiter.Allow(ctx, models.RateLimitClassAuth, "203.0.113.7").Allowed)
	assert.True(t, limiter.Allow(ctx, models.RateLimitClassAuth, "203.0.113.7").Allowed)
	assert.False(t, limiter.Allow(ctx, models.RateLimitClassAuth, "203.0.113.7").Allowed)
}

func TestRateLimitService_ResetClearsWindow(t *testing.T) {
	policy := models.DefaultSecurityPolicy()
	limiter, _ := newLimiterFixture(policy)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		limiter.Allow(ctx, models.RateLimitClassAuth, "203.0.113.7")
	}
	assert.False(t, limiter.Allow(ctx, models.RateLimitClassAuth, "203.0.113.7").Allowed)

	limiter.Reset(models.RateLimitClassAuth, "203.0.113.7")
	assert.True(t, limiter.Allow(ctx, models.RateLimitClassAuth, "203.0.113.7").Allowed)
}
