package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/inkwell-blog/inkwell/internal/database"
	"github.com/inkwell-blog/inkwell/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SecurityPolicyRepository persists the singleton security policy document
type SecurityPolicyRepository struct {
	pool *pgxpool.Pool
}

func NewSecurityPolicyRepository(db *database.DB) *SecurityPolicyRepository {
	return &SecurityPolicyRepository{pool: db.Pool}
}

// storedRateLimit is the JSONB shape of one rate-limit rule
type storedRateLimit struct {
	WindowMs    int64 `json:"window_ms"`
	MaxRequests int   `json:"max_requests"`
}

func encodeRateLimits(rules map[string]models.RateLimitRule) ([]byte, error) {
	stored := make(map[string]storedRateLimit, len(rules))
	for class, rule := range rules {
		stored[class] = storedRateLimit{
			WindowMs:    rule.Window.Milliseconds(),
			MaxRequests: rule.MaxRequests,
		}
	}
	return json.Marshal(stored)
}

func decodeRateLimits(raw []byte) (map[string]models.RateLimitRule, error) {
	var stored map[string]storedRateLimit
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, err
	}
	rules := make(map[string]models.RateLimitRule, len(stored))
	for class, s := range stored {
		rules[class] = models.RateLimitRule{
			Window:      time.Duration(s.WindowMs) * time.Millisecond,
			MaxRequests: s.MaxRequests,
		}
	}
	return rules, nil
}

// Get returns the active policy. models.ErrNotFound means no policy row
// exists and the hard-coded defaults apply.
func (r *SecurityPolicyRepository) Get(ctx context.Context) (*models.SecurityPolicy, error) {
	query := `
		SELECT id, require_admin_mfa, password_expiry_days, max_login_attempts,
			lockout_duration_ms, session_idle_timeout_ms, rate_limits, created_at, updated_at
		FROM security_policy
		LIMIT 1`

	var policy models.SecurityPolicy
	var lockoutMs, idleMs int64
	var rawLimits []byte

	err := r.pool.QueryRow(ctx, query).Scan(
		&policy.ID, &policy.RequireAdminMFA, &policy.PasswordExpiryDays, &policy.MaxLoginAttempts,
		&lockoutMs, &idleMs, &rawLimits, &policy.CreatedAt, &policy.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	policy.LockoutDuration = time.Duration(lockoutMs) * time.Millisecond
	policy.SessionIdleTimeout = time.Duration(idleMs) * time.Millisecond

	policy.RateLimits, err = decodeRateLimits(rawLimits)
	if err != nil {
		return nil, fmt.Errorf("failed to decode rate limits: %w", err)
	}

	return &policy, nil
}

// Upsert writes the policy, creating the singleton row on first use
func (r *SecurityPolicyRepository) Upsert(ctx context.Context, policy *models.SecurityPolicy) (*models.SecurityPolicy, error) {
	rawLimits, err := encodeRateLimits(policy.RateLimits)
	if err != nil {
		return nil, fmt.Errorf("failed to encode rate limits: %w", err)
	}

	if policy.ID == "" {
		policy.ID = uuid.New().String()
	}

	// singleton_key = true on every row; the unique constraint makes
	// concurrent first writes converge on one document
	query := `
		INSERT INTO security_policy (id, singleton_key, require_admin_mfa, password_expiry_days,
			max_login_attempts, lockout_duration_ms, session_idle_timeout_ms, rate_limits,
			created_at, updated_at)
		VALUES ($1, true, $2, $3, $4, $5, $6, $7, now(), now())
		ON CONFLICT (singleton_key) DO UPDATE SET
			require_admin_mfa = EXCLUDED.require_admin_mfa,
			password_expiry_days = EXCLUDED.password_expiry_days,
			max_login_attempts = EXCLUDED.max_login_attempts,
			lockout_duration_ms = EXCLUDED.lockout_duration_ms,
			session_idle_timeout_ms = EXCLUDED.session_idle_timeout_ms,
			rate_limits = EXCLUDED.rate_limits,
			updated_at = now()
		RETURNING id, created_at, updated_at`

	err = r.pool.QueryRow(ctx, query,
		policy.ID, policy.RequireAdminMFA, policy.PasswordExpiryDays,
		policy.MaxLoginAttempts, policy.LockoutDuration.Milliseconds(),
		policy.SessionIdleTimeout.Milliseconds(), rawLimits,
	).Scan(&policy.ID, &policy.CreatedAt, &policy.UpdatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return policy, nil
}
