package services

import (
	"context"
	"sync"
	"time"

	"github.com/inkwell-blog/inkwell/internal/models"
)

// MockUserStore implements every user repository interface for testing
type MockUserStore struct {
	GetByIDFunc                    func(ctx context.Context, id string) (*models.User, error)
	GetByEmailFunc                 func(ctx context.Context, email string) (*models.User, error)
	ListFunc                       func(ctx context.Context, limit, offset int) ([]*models.User, error)
	CreateFunc                     func(ctx context.Context, user *models.User) (*models.User, error)
	UpdateProfileFunc              func(ctx context.Context, id string, user *models.User) (*models.User, error)
	RecordLoginFailureFunc         func(ctx context.Context, id string, maxAttempts int, lockoutDuration time.Duration) (*models.User, error)
	RecordLoginSuccessFunc         func(ctx context.Context, id, ipAddress string) (*models.User, error)
	UpdatePasswordFunc             func(ctx context.Context, id string, expectedVersion int, newHash string, history []models.PasswordHistoryEntry) (*models.User, error)
	SetEmailVerificationTokenFunc  func(ctx context.Context, id, tokenHash string, expiresAt time.Time) error
	GetByVerificationTokenHashFunc func(ctx context.Context, tokenHash string) (*models.User, error)
	MarkEmailVerifiedFunc          func(ctx context.Context, id string) (*models.User, error)
	SetPasswordResetTokenFunc      func(ctx context.Context, id, tokenHash string, expiresAt time.Time) error
	GetByResetTokenHashFunc        func(ctx context.Context, tokenHash string) (*models.User, error)
	SetMFASecretFunc               func(ctx context.Context, id, secret string) error
	EnableMFAFunc                  func(ctx context.Context, id string) (*models.User, error)
	ResetMFAFunc                   func(ctx context.Context, id string) error
	LockFunc                       func(ctx context.Context, id string, permanent bool, until *time.Time, reason string) (*models.User, error)
	UnlockFunc                     func(ctx context.Context, id string) (*models.User, error)
	DeleteFunc                     func(ctx context.Context, id string) error
}

func (m *MockUserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserStore) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	return []*models.User{}, nil
}

func (m *MockUserStore) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserStore) UpdateProfile(ctx context.Context, id string, user *models.User) (*models.User, error) {
	if m.UpdateProfileFunc != nil {
		return m.UpdateProfileFunc(ctx, id, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserStore) RecordLoginFailure(ctx context.Context, id string, maxAttempts int, lockoutDuration time.Duration) (*models.User, error) {
	if m.RecordLoginFailureFunc != nil {
		return m.RecordLoginFailureFunc(ctx, id, maxAttempts, lockoutDuration)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserStore) RecordLoginSuccess(ctx context.Context, id, ipAddress string) (*models.User, error) {
	if m.RecordLoginSuccessFunc != nil {
		return m.RecordLoginSuccessFunc(ctx, id, ipAddress)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserStore) UpdatePassword(ctx context.Context, id string, expectedVersion int, newHash string, history []models.PasswordHistoryEntry) (*models.User, error) {
	if m.UpdatePasswordFunc != nil {
		return m.UpdatePasswordFunc(ctx, id, expectedVersion, newHash, history)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserStore) SetEmailVerificationToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	if m.SetEmailVerificationTokenFunc != nil {
		return m.SetEmailVerificationTokenFunc(ctx, id, tokenHash, expiresAt)
	}
	return nil
}

func (m *MockUserStore) GetByVerificationTokenHash(ctx context.Context, tokenHash string) (*models.User, error) {
	if m.GetByVerificationTokenHashFunc != nil {
		return m.GetByVerificationTokenHashFunc(ctx, tokenHash)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserStore) MarkEmailVerified(ctx context.Context, id string) (*models.User, error) {
	if m.MarkEmailVerifiedFunc != nil {
		return m.MarkEmailVerifiedFunc(ctx, id)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserStore) SetPasswordResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	if m.SetPasswordResetTokenFunc != nil {
		return m.SetPasswordResetTokenFunc(ctx, id, tokenHash, expiresAt)
	}
	return nil
}

func (m *MockUserStore) GetByResetTokenHash(ctx context.Context, tokenHash string) (*models.User, error) {
	if m.GetByResetTokenHashFunc != nil {
		return m.GetByResetTokenHashFunc(ctx, tokenHash)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserStore) SetMFASecret(ctx context.Context, id, secret string) error {
	if m.SetMFASecretFunc != nil {
		return m.SetMFASecretFunc(ctx, id, secret)
	}
	return nil
}

func (m *MockUserStore) EnableMFA(ctx context.Context, id string) (*models.User, error) {
	if m.EnableMFAFunc != nil {
		return m.EnableMFAFunc(ctx, id)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserStore) ResetMFA(ctx context.Context, id string) error {
	if m.ResetMFAFunc != nil {
		return m.ResetMFAFunc(ctx, id)
	}
	return nil
}

func (m *MockUserStore) Lock(ctx context.Context, id string, permanent bool, until *time.Time, reason string) (*models.User, error) {
	if m.LockFunc != nil {
		return m.LockFunc(ctx, id, permanent, until, reason)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserStore) Unlock(ctx context.Context, id string) (*models.User, error) {
	if m.UnlockFunc != nil {
		return m.UnlockFunc(ctx, id)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserStore) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

// MockEmailService implements EmailService for testing
type MockEmailService struct {
	SendVerificationEmailFunc  func(ctx context.Context, email, token string, expiresAt time.Time) error
	SendPasswordResetEmailFunc func(ctx context.Context, email, token string, expiresAt time.Time) error
}

func (m *MockEmailService) SendVerificationEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	if m.SendVerificationEmailFunc != nil {
		return m.SendVerificationEmailFunc(ctx, email, token, expiresAt)
	}
	return nil
}

func (m *MockEmailService) SendPasswordResetEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	if m.SendPasswordResetEmailFunc != nil {
		return m.SendPasswordResetEmailFunc(ctx, email, token, expiresAt)
	}
	return nil
}

// RecordingAuditSink captures audit events synchronously for assertions
type RecordingAuditSink struct {
	mu     sync.Mutex
	events []AuditEvent
}

func (r *RecordingAuditSink) Record(event AuditEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a copy of everything recorded so far
func (r *RecordingAuditSink) Events() []AuditEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]AuditEvent, len(r.events))
	copy(out, r.events)
	return out
}

// HasAction reports whether an event with the given action was recorded
func (r *RecordingAuditSink) HasAction(action string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.Action == action {
			return true
		}
	}
	return false
}

// StaticPolicyProvider serves a fixed policy
type StaticPolicyProvider struct {
	Policy *models.SecurityPolicy
}

func (p *StaticPolicyProvider) Current(ctx context.Context) *models.SecurityPolicy {
	if p.Policy != nil {
		return p.Policy
	}
	return models.DefaultSecurityPolicy()
}

// MockRateLimiter implements RateLimiter for testing
type MockRateLimiter struct {
	AllowFunc  func(ctx context.Context, class, key string) RateLimitDecision
	ResetFunc  func(class, key string)
	ResetCalls int
}

func (m *MockRateLimiter) Allow(ctx context.Context, class, key string) RateLimitDecision {
	if m.AllowFunc != nil {
		return m.AllowFunc(ctx, class, key)
	}
	return RateLimitDecision{Allowed: true, Remaining: 1}
}

func (m *MockRateLimiter) Reset(class, key string) {
	m.ResetCalls++
	if m.ResetFunc != nil {
		m.ResetFunc(class, key)
	}
}

// MockPolicyRepository implements SecurityPolicyRepository for testing
type MockPolicyRepository struct {
	GetFunc    func(ctx context.Context) (*models.SecurityPolicy, error)
	UpsertFunc func(ctx context.Context, policy *models.SecurityPolicy) (*models.SecurityPolicy, error)
}

func (m *MockPolicyRepository) Get(ctx context.Context) (*models.SecurityPolicy, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx)
	}
	return nil, models.ErrNotFound
}

func (m *MockPolicyRepository) Upsert(ctx context.Context, policy *models.SecurityPolicy) (*models.SecurityPolicy, error) {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, policy)
	}
	return policy, nil
}

// MockAuditLogRepository implements AuditRepository and AuditQueryRepository
type MockAuditLogRepository struct {
	CreateFunc      func(ctx context.Context, log *models.AuditLog) (*models.AuditLog, error)
	ListFunc        func(ctx context.Context, limit, offset int) ([]*models.AuditLog, error)
	GetByUserIDFunc func(ctx context.Context, userID string, limit, offset int) ([]*models.AuditLog, error)
	GetByActionFunc func(ctx context.Context, action string, limit, offset int) ([]*models.AuditLog, error)
	GetByIPFunc     func(ctx context.Context, ipAddress string, limit, offset int) ([]*models.AuditLog, error)
	CountSinceFunc  func(ctx context.Context, action string, since time.Time) (int, error)
}

func (m *MockAuditLogRepository) Create(ctx context.Context, log *models.AuditLog) (*models.AuditLog, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, log)
	}
	return log, nil
}

func (m *MockAuditLogRepository) List(ctx context.Context, limit, offset int) ([]*models.AuditLog, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	return []*models.AuditLog{}, nil
}

func (m *MockAuditLogRepository) GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*models.AuditLog, error) {
	if m.GetByUserIDFunc != nil {
		return m.GetByUserIDFunc(ctx, userID, limit, offset)
	}
	return []*models.AuditLog{}, nil
}

func (m *MockAuditLogRepository) GetByAction(ctx context.Context, action string, limit, offset int) ([]*models.AuditLog, error) {
	if m.GetByActionFunc != nil {
		return m.GetByActionFunc(ctx, action, limit, offset)
	}
	return []*models.AuditLog{}, nil
}

func (m *MockAuditLogRepository) GetByIP(ctx context.Context, ipAddress string, limit, offset int) ([]*models.AuditLog, error) {
	if m.GetByIPFunc != nil {
		return m.GetByIPFunc(ctx, ipAddress, limit, offset)
	}
	return []*models.AuditLog{}, nil
}

func (m *MockAuditLogRepository) CountSince(ctx context.Context, action string, since time.Time) (int, error) {
	if m.CountSinceFunc != nil {
		return m.CountSinceFunc(ctx, action, since)
	}
	return 0, nil
}
