package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/inkwell-blog/inkwell/internal/models"
)

// AdminUserRepository defines the user persistence operations the admin
// surface depends on
type AdminUserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context, limit, offset int) ([]*models.User, error)
	Lock(ctx context.Context, id string, permanent bool, until *time.Time, reason string) (*models.User, error)
	Unlock(ctx context.Context, id string) (*models.User, error)
	ResetMFA(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// AuditQueryRepository defines the read side of the audit log
type AuditQueryRepository interface {
	List(ctx context.Context, limit, offset int) ([]*models.AuditLog, error)
	GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*models.AuditLog, error)
	GetByAction(ctx context.Context, action string, limit, offset int) ([]*models.AuditLog, error)
	GetByIP(ctx context.Context, ipAddress string, limit, offset int) ([]*models.AuditLog, error)
	CountSince(ctx context.Context, action string, since time.Time) (int, error)
}

// LockUserInput describes an administrative lock request
type LockUserInput struct {
	TargetID  string
	ActorID   string
	Permanent bool
	Duration  time.Duration
	Reason    string
	IPAddress string
}

// AuditQuery filters an audit log listing; at most one filter applies
type AuditQuery struct {
	UserID    string
	Action    string
	IPAddress string
	Limit     int
	Offset    int
}

// AdminService carries the administrative account-security operations
type AdminService struct {
	users    AdminUserRepository
	auditLog AuditQueryRepository
	audit    AuditRecorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewAdminService creates an admin service
func NewAdminService(users AdminUserRepository, auditLog AuditQueryRepository, audit AuditRecorder, logger *slog.Logger) *AdminService {
	return &AdminService{
		users:    users,
		auditLog: auditLog,
		audit:    audit,
		logger:   logger,
		now:      time.Now,
	}
}

// ListUsers returns a page of accounts
func (s *AdminService) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	return s.users.List(ctx, limit, offset)
}

// GetUser returns a single account
func (s *AdminService) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

// LockUser applies an administrative lock. Admins cannot lock their own
// account; a zero duration on a temporary lock is rejected.
func (s *AdminService) LockUser(ctx context.Context, input LockUserInput) (*models.User, error) {
	if input.TargetID == input.ActorID {
		return nil, fmt.Errorf("%w: cannot lock your own account", models.ErrBadRequest)
	}

	reason := input.Reason
	if reason == "" {
		reason = models.LockReasonAdminAction
	}
	if !models.IsValidLockReason(reason) {
		return nil, fmt.Errorf("%w: invalid lock reason %q", models.ErrBadRequest, reason)
	}

	var until *time.Time
	if !input.Permanent {
		if input.Duration <= 0 {
			return nil, fmt.Errorf("%w: lock duration must be positive", models.ErrBadRequest)
		}
		t := s.now().Add(input.Duration)
		until = &t
	}

	user, err := s.users.Lock(ctx, input.TargetID, input.Permanent, until, reason)
	if err != nil {
		return nil, err
	}

	s.audit.Record(AuditEvent{
		Action:    models.AuditActionUserLocked,
		Status:    models.AuditStatusSuccess,
		UserID:    input.ActorID,
		IPAddress: input.IPAddress,
		Details: map[string]interface{}{
			"target_user_id": user.ID,
			"permanent":      input.Permanent,
			"reason":         reason,
		},
	})
	s.logger.Warn("account locked by admin",
		slog.String("target_user_id", user.ID),
		slog.String("actor_id", input.ActorID),
		slog.Bool("permanent", input.Permanent),
		slog.String("reason", reason))

	return user, nil
}

// UnlockUser clears both lock kinds and the failure counter
func (s *AdminService) UnlockUser(ctx context.Context, targetID, actorID, ipAddress string) (*models.User, error) {
	user, err := s.users.Unlock(ctx, targetID)
	if err != nil {
		return nil, err
	}

	s.audit.Record(AuditEvent{
		Action:    models.AuditActionUserUnlocked,
		Status:    models.AuditStatusSuccess,
		UserID:    actorID,
		IPAddress: ipAddress,
		Details:   map[string]interface{}{"target_user_id": user.ID},
	})
	s.logger.Info("account unlocked by admin",
		slog.String("target_user_id", user.ID),
		slog.String("actor_id", actorID))

	return user, nil
}

// ResetUserMFA clears a user's TOTP enrollment so they can re-enroll. The
// secret and the enabled flag are cleared together.
func (s *AdminService) ResetUserMFA(ctx context.Context, targetID, actorID, ipAddress string) error {
	if err := s.users.ResetMFA(ctx, targetID); err != nil {
		return err
	}

	s.audit.Record(AuditEvent{
		Action:    models.AuditActionMFAReset,
		Status:    models.AuditStatusSuccess,
		UserID:    actorID,
		IPAddress: ipAddress,
		Details:   map[string]interface{}{"target_user_id": targetID},
	})
	s.logger.Warn("mfa reset by admin",
		slog.String("target_user_id", targetID),
		slog.String("actor_id", actorID))

	return nil
}

// DeleteUser removes an account. Admins cannot delete their own account.
func (s *AdminService) DeleteUser(ctx context.Context, targetID, actorID, ipAddress string) error {
	if targetID == actorID {
		return fmt.Errorf("%w: cannot delete your own account", models.ErrBadRequest)
	}

	if err := s.users.Delete(ctx, targetID); err != nil {
		return err
	}

	s.audit.Record(AuditEvent{
		Action:    models.AuditActionAdminAction,
		Status:    models.AuditStatusSuccess,
		UserID:    actorID,
		IPAddress: ipAddress,
		Details:   map[string]interface{}{"operation": "delete_user", "target_user_id": targetID},
	})

	return nil
}

// SecuritySummary aggregates recent security activity counts
type SecuritySummary struct {
	Window         time.Duration
	LoginFailures  int
	Lockouts       int
	MFAFailures    int
	RateLimitTrips int
}

// SecuritySummary counts security-relevant audit activity within the
// trailing window. A non-positive window defaults to 24 hours.
func (s *AdminService) SecuritySummary(ctx context.Context, window time.Duration) (*SecuritySummary, error) {
	if window <= 0 {
		window = 24 * time.Hour
	}
	since := s.now().Add(-window)

	summary := &SecuritySummary{Window: window}
	counts := []struct {
		action string
		dest   *int
	}{
		{models.AuditActionLoginFailure, &summary.LoginFailures},
		{models.AuditActionUserLocked, &summary.Lockouts},
		{models.AuditActionMFAFailure, &summary.MFAFailures},
		{models.AuditActionRateLimitExceeded, &summary.RateLimitTrips},
	}
	for _, c := range counts {
		n, err := s.auditLog.CountSince(ctx, c.action, since)
		if err != nil {
			return nil, err
		}
		*c.dest = n
	}

	return summary, nil
}

// QueryAuditLog returns a filtered page of audit entries, newest first
func (s *AdminService) QueryAuditLog(ctx context.Context, query AuditQuery) ([]*models.AuditLog, error) {
	limit := query.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := query.Offset
	if offset < 0 {
		offset = 0
	}

	switch {
	case query.UserID != "":
		return s.auditLog.GetByUserID(ctx, query.UserID, limit, offset)
	case query.Action != "":
		return s.auditLog.GetByAction(ctx, query.Action, limit, offset)
	case query.IPAddress != "":
		return s.auditLog.GetByIP(ctx, query.IPAddress, limit, offset)
	default:
		return s.auditLog.List(ctx, limit, offset)
	}
}
