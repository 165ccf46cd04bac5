package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/inkwell-blog/inkwell/internal/auth"
	"github.com/inkwell-blog/inkwell/internal/models"
	pkgauth "github.com/inkwell-blog/inkwell/pkg/auth"
	pkglogger "github.com/inkwell-blog/inkwell/pkg/logger"
	"github.com/inkwell-blog/inkwell/pkg/metrics"
)

// AuthUserRepository defines the user persistence operations the
// authentication flow depends on
type AuthUserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	RecordLoginFailure(ctx context.Context, id string, maxAttempts int, lockoutDuration time.Duration) (*models.User, error)
	RecordLoginSuccess(ctx context.Context, id, ipAddress string) (*models.User, error)
	SetEmailVerificationToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error
	GetByVerificationTokenHash(ctx context.Context, tokenHash string) (*models.User, error)
	MarkEmailVerified(ctx context.Context, id string) (*models.User, error)
}

// AuditRecorder accepts security events for asynchronous persistence
type AuditRecorder interface {
	Record(event AuditEvent)
}

// RateLimiter admits or rejects requests against per-class budgets
type RateLimiter interface {
	Allow(ctx context.Context, class, key string) RateLimitDecision
	Reset(class, key string)
}

// LoginInput carries one authentication attempt
type LoginInput struct {
	Email     string
	Password  string
	MFACode   string
	IPAddress string
	UserAgent string
}

// LoginResult is the terminal outcome of a login attempt. Exactly one
// status applies; Token is set only on success, SetupToken only when MFA
// enrollment is being forced.
type LoginResult struct {
	Status     models.LoginStatus
	Reason     string
	User       *models.User
	Token      string
	SetupToken string
	RetryAfter time.Duration
}

// RegisterInput carries a new account request
type RegisterInput struct {
	Name      string
	Email     string
	Password  string
	IPAddress string
	UserAgent string
}

// AuthService orchestrates registration, login, and email verification
type AuthService struct {
	users    AuthUserRepository
	policies PolicyProvider
	limiter  RateLimiter
	tokens   *auth.TokenManager
	totp     *auth.TOTPManager
	emails   EmailService
	audit    AuditRecorder
	logger   *slog.Logger

	verifyExpiry time.Duration
	now          func() time.Time
}

// NewAuthService creates an auth service
func NewAuthService(
	users AuthUserRepository,
	policies PolicyProvider,
	limiter RateLimiter,
	tokens *auth.TokenManager,
	totp *auth.TOTPManager,
	emails EmailService,
	audit AuditRecorder,
	logger *slog.Logger,
	verifyExpiry time.Duration,
) *AuthService {
	return &AuthService{
		users:        users,
		policies:     policies,
		limiter:      limiter,
		tokens:       tokens,
		totp:         totp,
		emails:       emails,
		audit:        audit,
		logger:       logger,
		verifyExpiry: verifyExpiry,
		now:          time.Now,
	}
}

// Register creates an unverified account and emails a verification link.
// The password must satisfy every complexity rule; violations are reported
// together in a single error.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	email := normalizeEmail(input.Email)

	if err := pkgauth.ValidatePassword(input.Password); err != nil {
		return nil, err
	}

	hash, err := pkgauth.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.users.Create(ctx, &models.User{
		Name:         input.Name,
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleUser,
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(AuditEvent{
		Action:    models.AuditActionUserRegistered,
		Status:    models.AuditStatusSuccess,
		UserID:    user.ID,
		IPAddress: input.IPAddress,
		UserAgent: input.UserAgent,
		Details:   map[string]interface{}{"email": user.Email},
	})

	if err := s.issueVerification(ctx, user, input.IPAddress); err != nil {
		// Registration stands; the user can request a fresh link
		s.logger.Error("failed to send verification email after registration",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
	}

	s.logger.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("email", pkglogger.SanitizedEmail(user.Email)))

	return user, nil
}

// Login runs an attempt through every gate in order: rate limit, lookup,
// permanent lock, email verification, temporary lock, password, password
// expiry, MFA. The first failing gate decides the outcome; later gates are
// never evaluated.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	email := normalizeEmail(input.Email)
	policy := s.policies.Current(ctx)
	limiterKey := input.IPAddress + "|" + email

	if decision := s.limiter.Allow(ctx, models.RateLimitClassAuth, limiterKey); !decision.Allowed {
		metrics.LoginAttempts.WithLabelValues("rate_limited").Inc()
		s.audit.Record(AuditEvent{
			Action:    models.AuditActionRateLimitExceeded,
			Status:    models.AuditStatusFailure,
			IPAddress: input.IPAddress,
			UserAgent: input.UserAgent,
			Details:   map[string]interface{}{"email": email, "class": models.RateLimitClassAuth},
		})
		return &LoginResult{Status: models.LoginStatusRateLimited, RetryAfter: decision.RetryAfter}, nil
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if err == models.ErrNotFound {
			metrics.LoginAttempts.WithLabelValues("failure").Inc()
			s.recordLoginFailureAudit(input, "", "unknown_email")
			return &LoginResult{Status: models.LoginStatusInvalidCredentials}, nil
		}
		return nil, err
	}

	if user.PermanentlyLocked {
		metrics.LoginAttempts.WithLabelValues("locked").Inc()
		s.recordLoginFailureAudit(input, user.ID, "permanently_locked")
		return &LoginResult{Status: models.LoginStatusLocked, Reason: user.LockReason, User: user}, nil
	}

	if !user.EmailVerified {
		metrics.LoginAttempts.WithLabelValues("unverified").Inc()
		s.recordLoginFailureAudit(input, user.ID, "email_unverified")
		return &LoginResult{Status: models.LoginStatusEmailUnverified, User: user}, nil
	}

	now := s.now()
	if user.IsTemporarilyLocked(now) {
		// Attempts against a locked account do not extend the lock
		metrics.LoginAttempts.WithLabelValues("locked").Inc()
		s.recordLoginFailureAudit(input, user.ID, "temporarily_locked")
		return &LoginResult{
			Status:     models.LoginStatusLocked,
			Reason:     user.LockReason,
			User:       user,
			RetryAfter: user.LockRemaining(now),
		}, nil
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, input.Password); err != nil {
		return s.handleCredentialFailure(ctx, input, user, policy, "invalid_password")
	}

	if user.PasswordIsExpired(now, policy.PasswordExpiryDays) {
		metrics.LoginAttempts.WithLabelValues("password_expired").Inc()
		s.audit.Record(AuditEvent{
			Action:    models.AuditActionPasswordExpired,
			Status:    models.AuditStatusFailure,
			UserID:    user.ID,
			IPAddress: input.IPAddress,
			UserAgent: input.UserAgent,
		})
		return &LoginResult{Status: models.LoginStatusPasswordExpired, User: user}, nil
	}

	if !user.MFAEnabled {
		// No session until enrollment completes; the setup token only
		// opens the enrollment endpoints
		setupToken, err := s.tokens.GenerateSetupToken(user)
		if err != nil {
			return nil, fmt.Errorf("failed to generate setup token: %w", err)
		}
		metrics.LoginAttempts.WithLabelValues("mfa_setup_required").Inc()
		s.audit.Record(AuditEvent{
			Action:    models.AuditActionMFASetup,
			Status:    models.AuditStatusSuccess,
			UserID:    user.ID,
			IPAddress: input.IPAddress,
			UserAgent: input.UserAgent,
			Details:   map[string]interface{}{"reason": "mfa_enrollment_required"},
		})
		return &LoginResult{
			Status:     models.LoginStatusMFASetupRequired,
			User:       user,
			SetupToken: setupToken,
		}, nil
	}

	if input.MFACode == "" {
		metrics.LoginAttempts.WithLabelValues("mfa_required").Inc()
		s.recordLoginFailureAudit(input, user.ID, "mfa_required")
		return &LoginResult{Status: models.LoginStatusMFARequired, User: user}, nil
	}

	valid, err := s.totp.ValidateCode(user.MFASecret, input.MFACode)
	if err != nil || !valid {
		// An invalid code does not count toward the lockout threshold;
		// only the rate limiter bounds code guessing
		metrics.MFAVerifications.WithLabelValues("failure").Inc()
		metrics.LoginAttempts.WithLabelValues("failure").Inc()
		s.audit.Record(AuditEvent{
			Action:    models.AuditActionMFAFailure,
			Status:    models.AuditStatusFailure,
			UserID:    user.ID,
			IPAddress: input.IPAddress,
			UserAgent: input.UserAgent,
		})
		s.recordLoginFailureAudit(input, user.ID, "invalid_mfa_code")
		return &LoginResult{
			Status: models.LoginStatusInvalidCredentials,
			Reason: "invalid_mfa_code",
			User:   user,
		}, nil
	}

	metrics.MFAVerifications.WithLabelValues("success").Inc()
	s.audit.Record(AuditEvent{
		Action:    models.AuditActionMFASuccess,
		Status:    models.AuditStatusSuccess,
		UserID:    user.ID,
		IPAddress: input.IPAddress,
		UserAgent: input.UserAgent,
	})

	updated, err := s.users.RecordLoginSuccess(ctx, user.ID, input.IPAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}

	token, err := s.tokens.GenerateSessionToken(updated, true)
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	s.limiter.Reset(models.RateLimitClassAuth, limiterKey)
	metrics.LoginAttempts.WithLabelValues("success").Inc()
	s.audit.Record(AuditEvent{
		Action:    models.AuditActionLoginSuccess,
		Status:    models.AuditStatusSuccess,
		UserID:    updated.ID,
		IPAddress: input.IPAddress,
		UserAgent: input.UserAgent,
		Details:   map[string]interface{}{"mfa_verified": true},
	})

	s.logger.Info("login succeeded", slog.String("user_id", updated.ID))

	return &LoginResult{Status: models.LoginStatusSuccess, User: updated, Token: token}, nil
}

// handleCredentialFailure atomically bumps the failure counter, which may
// trip the lockout threshold, and reports lock state when it does
func (s *AuthService) handleCredentialFailure(ctx context.Context, input LoginInput, user *models.User, policy *models.SecurityPolicy, reason string) (*LoginResult, error) {
	updated, err := s.users.RecordLoginFailure(ctx, user.ID, policy.MaxLoginAttempts, policy.LockoutDuration)
	if err != nil {
		return nil, fmt.Errorf("failed to record login failure: %w", err)
	}

	metrics.LoginAttempts.WithLabelValues("failure").Inc()
	s.recordLoginFailureAudit(input, user.ID, reason)

	now := s.now()
	if updated.IsTemporarilyLocked(now) {
		metrics.AccountLockouts.Inc()
		s.audit.Record(AuditEvent{
			Action:    models.AuditActionUserLocked,
			Status:    models.AuditStatusSuccess,
			UserID:    updated.ID,
			IPAddress: input.IPAddress,
			UserAgent: input.UserAgent,
			Details: map[string]interface{}{
				"reason":   models.LockReasonFailedAttempts,
				"attempts": updated.FailedLoginAttempts,
			},
		})
		s.logger.Warn("account locked after repeated failures",
			slog.String("user_id", updated.ID),
			slog.Int("attempts", updated.FailedLoginAttempts))
		return &LoginResult{
			Status:     models.LoginStatusLocked,
			Reason:     models.LockReasonFailedAttempts,
			User:       updated,
			RetryAfter: updated.LockRemaining(now),
		}, nil
	}

	return &LoginResult{Status: models.LoginStatusInvalidCredentials, Reason: reason, User: updated}, nil
}

// VerifyEmail consumes a verification token and marks the account verified
func (s *AuthService) VerifyEmail(ctx context.Context, plainToken string) (*models.User, error) {
	user, err := s.users.GetByVerificationTokenHash(ctx, pkgauth.HashToken(plainToken))
	if err != nil {
		if err == models.ErrNotFound {
			return nil, models.ErrTokenExpired
		}
		return nil, err
	}

	verified, err := s.users.MarkEmailVerified(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	s.audit.Record(AuditEvent{
		Action: models.AuditActionEmailVerified,
		Status: models.AuditStatusSuccess,
		UserID: verified.ID,
	})

	s.logger.Info("email verified", slog.String("user_id", verified.ID))
	return verified, nil
}

// ResendVerification issues a fresh verification token for an unverified
// account
func (s *AuthService) ResendVerification(ctx context.Context, email, ipAddress string) error {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}
	if user.EmailVerified {
		return fmt.Errorf("%w: email already verified", models.ErrBadRequest)
	}
	return s.issueVerification(ctx, user, ipAddress)
}

func (s *AuthService) issueVerification(ctx context.Context, user *models.User, ipAddress string) error {
	plainToken, err := pkgauth.GenerateSecureToken()
	if err != nil {
		return fmt.Errorf("failed to generate verification token: %w", err)
	}

	expiresAt := s.now().Add(s.verifyExpiry)
	if err := s.users.SetEmailVerificationToken(ctx, user.ID, pkgauth.HashToken(plainToken), expiresAt); err != nil {
		return err
	}

	s.audit.Record(AuditEvent{
		Action:    models.AuditActionEmailVerifyRequested,
		Status:    models.AuditStatusSuccess,
		UserID:    user.ID,
		IPAddress: ipAddress,
	})

	return s.emails.SendVerificationEmail(ctx, user.Email, plainToken, expiresAt)
}

func (s *AuthService) recordLoginFailureAudit(input LoginInput, userID, reason string) {
	s.audit.Record(AuditEvent{
		Action:    models.AuditActionLoginFailure,
		Status:    models.AuditStatusFailure,
		UserID:    userID,
		IPAddress: input.IPAddress,
		UserAgent: input.UserAgent,
		Details:   map[string]interface{}{"reason": reason},
	})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
