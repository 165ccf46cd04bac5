package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/inkwell-blog/inkwell/internal/auth"
	"github.com/inkwell-blog/inkwell/internal/models"
	"github.com/inkwell-blog/inkwell/pkg/metrics"
)

// MFAUserRepository defines the user persistence operations TOTP
// enrollment depends on
type MFAUserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	SetMFASecret(ctx context.Context, id, secret string) error
	EnableMFA(ctx context.Context, id string) (*models.User, error)
}

// MFAEnrollment is the material handed to the user during setup
type MFAEnrollment struct {
	Secret          string
	ProvisioningURL string
	QRCodeDataURL   string
}

// MFAService handles TOTP enrollment. Enrollment is two-phase: a pending
// secret is bound to the account first, and MFA only turns on once the
// user proves possession by submitting a valid code.
type MFAService struct {
	users  MFAUserRepository
	totp   *auth.TOTPManager
	tokens *auth.TokenManager
	audit  AuditRecorder
	logger *slog.Logger
}

// NewMFAService creates an MFA service
func NewMFAService(users MFAUserRepository, totp *auth.TOTPManager, tokens *auth.TokenManager, audit AuditRecorder, logger *slog.Logger) *MFAService {
	return &MFAService{
		users:  users,
		totp:   totp,
		tokens: tokens,
		audit:  audit,
		logger: logger,
	}
}

// BeginEnrollment generates a fresh TOTP secret for the account and returns
// the provisioning material. Calling it again before confirmation replaces
// the pending secret; an account with MFA already enabled is rejected.
func (s *MFAService) BeginEnrollment(ctx context.Context, userID, ipAddress string) (*MFAEnrollment, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.MFAEnabled {
		return nil, fmt.Errorf("%w: MFA already enabled", models.ErrConflict)
	}

	secret, provisioningURL, qrDataURL, err := s.totp.GenerateSecret(user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate TOTP secret: %w", err)
	}

	if err := s.users.SetMFASecret(ctx, user.ID, secret); err != nil {
		return nil, err
	}

	s.audit.Record(AuditEvent{
		Action:    models.AuditActionMFASetup,
		Status:    models.AuditStatusSuccess,
		UserID:    user.ID,
		IPAddress: ipAddress,
	})
	s.logger.Info("mfa enrollment started", slog.String("user_id", user.ID))

	return &MFAEnrollment{
		Secret:          secret,
		ProvisioningURL: provisioningURL,
		QRCodeDataURL:   qrDataURL,
	}, nil
}

// ConfirmEnrollment verifies a code against the pending secret and turns
// MFA on. On success a fresh session token is issued so the caller's
// session reflects the verified factor.
func (s *MFAService) ConfirmEnrollment(ctx context.Context, userID, code, ipAddress string) (*models.User, string, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	if user.MFAEnabled {
		return nil, "", fmt.Errorf("%w: MFA already enabled", models.ErrConflict)
	}
	if user.MFASecret == "" {
		return nil, "", models.ErrMFANotEnrolled
	}

	valid, err := s.totp.ValidateCode(user.MFASecret, code)
	if err != nil || !valid {
		metrics.MFAVerifications.WithLabelValues("failure").Inc()
		s.audit.Record(AuditEvent{
			Action:    models.AuditActionMFAFailure,
			Status:    models.AuditStatusFailure,
			UserID:    user.ID,
			IPAddress: ipAddress,
			Details:   map[string]interface{}{"phase": "enrollment"},
		})
		return nil, "", models.ErrMFAInvalidCode
	}

	enabled, err := s.users.EnableMFA(ctx, user.ID)
	if err != nil {
		return nil, "", err
	}

	token, err := s.tokens.GenerateSessionToken(enabled, true)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate session token: %w", err)
	}

	metrics.MFAVerifications.WithLabelValues("success").Inc()
	s.audit.Record(AuditEvent{
		Action:    models.AuditActionMFAEnabled,
		Status:    models.AuditStatusSuccess,
		UserID:    enabled.ID,
		IPAddress: ipAddress,
	})
	s.logger.Info("mfa enabled", slog.String("user_id", enabled.ID))

	return enabled, token, nil
}
