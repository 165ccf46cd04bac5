package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/inkwell-blog/inkwell/internal/models"
	pkgauth "github.com/inkwell-blog/inkwell/pkg/auth"
	pkglogger "github.com/inkwell-blog/inkwell/pkg/logger"
)

// passwordUpdateRetries bounds how many times a versioned password write is
// retried after losing a concurrent update race
const passwordUpdateRetries = 3

// PasswordUserRepository defines the user persistence operations the
// password lifecycle depends on
type PasswordUserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdatePassword(ctx context.Context, id string, expectedVersion int, newHash string, history []models.PasswordHistoryEntry) (*models.User, error)
	SetPasswordResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error
	GetByResetTokenHash(ctx context.Context, tokenHash string) (*models.User, error)
}

// PasswordService handles password changes, expiry-forced rotation, and the
// email reset flow
type PasswordService struct {
	users  PasswordUserRepository
	emails EmailService
	audit  AuditRecorder
	logger *slog.Logger

	resetExpiry time.Duration
	now         func() time.Time
}

// NewPasswordService creates a password service
func NewPasswordService(users PasswordUserRepository, emails EmailService, audit AuditRecorder, logger *slog.Logger, resetExpiry time.Duration) *PasswordService {
	return &PasswordService{
		users:       users,
		emails:      emails,
		audit:       audit,
		logger:      logger,
		resetExpiry: resetExpiry,
		now:         time.Now,
	}
}

// Change rotates a password after verifying the current one. The new
// password must satisfy every complexity rule and must not match any of the
// retained prior hashes.
func (s *PasswordService) Change(ctx context.Context, userID, currentPassword, newPassword, ipAddress string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, currentPassword); err != nil {
		s.audit.Record(AuditEvent{
			Action:    models.AuditActionPasswordChanged,
			Status:    models.AuditStatusFailure,
			UserID:    user.ID,
			IPAddress: ipAddress,
			Details:   map[string]interface{}{"reason": "current_password_mismatch"},
		})
		return nil, models.ErrUnauthorized
	}

	updated, err := s.applyNewPassword(ctx, user, newPassword)
	if err != nil {
		return nil, err
	}

	s.audit.Record(AuditEvent{
		Action:    models.AuditActionPasswordChanged,
		Status:    models.AuditStatusSuccess,
		UserID:    updated.ID,
		IPAddress: ipAddress,
	})
	s.logger.Info("password changed", slog.String("user_id", updated.ID))
	return updated, nil
}

// RequestReset issues a single-use reset token and emails it to the account
func (s *PasswordService) RequestReset(ctx context.Context, email, ipAddress string) error {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}

	plainToken, err := pkgauth.GenerateSecureToken()
	if err != nil {
		return fmt.Errorf("failed to generate reset token: %w", err)
	}

	expiresAt := s.now().Add(s.resetExpiry)
	if err := s.users.SetPasswordResetToken(ctx, user.ID, pkgauth.HashToken(plainToken), expiresAt); err != nil {
		return err
	}

	s.audit.Record(AuditEvent{
		Action:    models.AuditActionPasswordResetRequested,
		Status:    models.AuditStatusSuccess,
		UserID:    user.ID,
		IPAddress: ipAddress,
	})
	s.logger.Info("password reset requested",
		slog.String("user_id", user.ID),
		slog.String("email", pkglogger.SanitizedEmail(user.Email)))

	return s.emails.SendPasswordResetEmail(ctx, user.Email, plainToken, expiresAt)
}

// CompleteReset consumes a reset token and installs the new password. The
// token is invalidated by the same write that stores the hash.
func (s *PasswordService) CompleteReset(ctx context.Context, plainToken, newPassword, ipAddress string) (*models.User, error) {
	user, err := s.users.GetByResetTokenHash(ctx, pkgauth.HashToken(plainToken))
	if err != nil {
		if err == models.ErrNotFound {
			return nil, models.ErrTokenExpired
		}
		return nil, err
	}

	updated, err := s.applyNewPassword(ctx, user, newPassword)
	if err != nil {
		return nil, err
	}

	s.audit.Record(AuditEvent{
		Action:    models.AuditActionPasswordResetCompleted,
		Status:    models.AuditStatusSuccess,
		UserID:    updated.ID,
		IPAddress: ipAddress,
	})
	s.logger.Info("password reset completed", slog.String("user_id", updated.ID))
	return updated, nil
}

// applyNewPassword validates, hashes, and writes the new password with a
// versioned compare-and-swap, re-reading and retrying when a concurrent
// write got there first
func (s *PasswordService) applyNewPassword(ctx context.Context, user *models.User, newPassword string) (*models.User, error) {
	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		priorHashes := make([]string, 0, len(user.PasswordHistory))
		for _, entry := range user.PasswordHistory {
			priorHashes = append(priorHashes, entry.Hash)
		}
		if pkgauth.IsPasswordReused(newPassword, priorHashes) {
			return nil, models.ErrPasswordReused
		}

		newHash, err := pkgauth.HashPassword(newPassword)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}

		history := append(user.PasswordHistory, models.PasswordHistoryEntry{
			Hash:      newHash,
			CreatedAt: s.now(),
		})
		if len(history) > models.PasswordHistoryLimit {
			history = history[len(history)-models.PasswordHistoryLimit:]
		}

		updated, err := s.users.UpdatePassword(ctx, user.ID, user.Version, newHash, history)
		if err == nil {
			return updated, nil
		}
		if err != models.ErrConflict || attempt >= passwordUpdateRetries {
			return nil, err
		}

		user, err = s.users.GetByID(ctx, user.ID)
		if err != nil {
			return nil, err
		}
	}
}
