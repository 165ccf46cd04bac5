package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/inkwell-blog/inkwell/internal/models"
)

// SecurityPolicyRepository defines the interface for policy persistence
type SecurityPolicyRepository interface {
	Get(ctx context.Context) (*models.SecurityPolicy, error)
	Upsert(ctx context.Context, policy *models.SecurityPolicy) (*models.SecurityPolicy, error)
}

// PolicyService serves the singleton security policy from a short-lived
// cache so the hot login path never waits on the database. A missing row
// or a slow read falls back to the built-in defaults.
type PolicyService struct {
	repo        SecurityPolicyRepository
	logger      *slog.Logger
	cacheTTL    time.Duration
	readTimeout time.Duration

	mu        sync.RWMutex
	cached    *models.SecurityPolicy
	fetchedAt time.Time
}

// NewPolicyService creates a policy service with the given cache TTL and
// per-read timeout
func NewPolicyService(repo SecurityPolicyRepository, logger *slog.Logger, cacheTTL, readTimeout time.Duration) *PolicyService {
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	if readTimeout <= 0 {
		readTimeout = 500 * time.Millisecond
	}
	return &PolicyService{
		repo:        repo,
		logger:      logger,
		cacheTTL:    cacheTTL,
		readTimeout: readTimeout,
	}
}

// Current returns the effective security policy. Callers always get a
// usable policy: cached when fresh, freshly loaded otherwise, and the
// defaults when the store is unavailable.
func (s *PolicyService) Current(ctx context.Context) *models.SecurityPolicy {
	s.mu.RLock()
	if s.cached != nil && time.Since(s.fetchedAt) < s.cacheTTL {
		policy := s.cached
		s.mu.RUnlock()
		return policy
	}
	s.mu.RUnlock()

	readCtx, cancel := context.WithTimeout(ctx, s.readTimeout)
	defer cancel()

	policy, err := s.repo.Get(readCtx)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.logger.Warn("security policy read failed, applying defaults",
				slog.Any("error", err))
		}
		policy = models.DefaultSecurityPolicy()
	}

	s.mu.Lock()
	s.cached = policy
	s.fetchedAt = time.Now()
	s.mu.Unlock()

	return policy
}

// Update persists an admin-supplied policy, replacing the singleton row,
// and invalidates the cache so the change takes effect on the next read
func (s *PolicyService) Update(ctx context.Context, policy *models.SecurityPolicy) (*models.SecurityPolicy, error) {
	if err := validatePolicy(policy); err != nil {
		return nil, err
	}

	updated, err := s.repo.Upsert(ctx, policy)
	if err != nil {
		return nil, fmt.Errorf("failed to update security policy: %w", err)
	}

	s.mu.Lock()
	s.cached = updated
	s.fetchedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("security policy updated",
		slog.Int("max_login_attempts", updated.MaxLoginAttempts),
		slog.Duration("lockout_duration", updated.LockoutDuration),
		slog.Int("password_expiry_days", updated.PasswordExpiryDays),
		slog.Bool("require_admin_mfa", updated.RequireAdminMFA))

	return updated, nil
}

// Invalidate discards the cached policy so the next read hits the store
func (s *PolicyService) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}

func validatePolicy(policy *models.SecurityPolicy) error {
	if policy.MaxLoginAttempts < 1 {
		return fmt.Errorf("%w: max login attempts must be at least 1", models.ErrBadRequest)
	}
	if policy.LockoutDuration <= 0 {
		return fmt.Errorf("%w: lockout duration must be positive", models.ErrBadRequest)
	}
	if policy.PasswordExpiryDays < 0 {
		return fmt.Errorf("%w: password expiry days cannot be negative", models.ErrBadRequest)
	}
	if policy.SessionIdleTimeout < 0 {
		return fmt.Errorf("%w: session idle timeout cannot be negative", models.ErrBadRequest)
	}
	for class, rule := range policy.RateLimits {
		if rule.Window <= 0 || rule.MaxRequests < 1 {
			return fmt.Errorf("%w: invalid rate limit rule for class %q", models.ErrBadRequest, class)
		}
	}
	return nil
}
