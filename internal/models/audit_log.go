package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Audit actions form a closed enum; entries are immutable once written
const (
	AuditActionLoginSuccess             = "login_success"
	AuditActionLoginFailure             = "login_failure"
	AuditActionMFASuccess               = "mfa_success"
	AuditActionMFAFailure               = "mfa_failure"
	AuditActionMFASetup                 = "mfa_setup"
	AuditActionMFAEnabled               = "mfa_enabled"
	AuditActionMFAReset                 = "mfa_reset"
	AuditActionUserRegistered           = "user_registered"
	AuditActionUserLocked               = "user_locked"
	AuditActionUserUnlocked             = "user_unlocked"
	AuditActionPasswordChanged          = "password_changed"
	AuditActionPasswordResetRequested   = "password_reset_requested"
	AuditActionPasswordResetCompleted   = "password_reset_completed"
	AuditActionPasswordExpired          = "password_expired"
	AuditActionEmailVerifyRequested     = "email_verification_requested"
	AuditActionEmailVerified            = "email_verified"
	AuditActionSecuritySettingsUpdated  = "security_settings_updated"
	AuditActionRateLimitsUpdated        = "rate_limits_updated"
	AuditActionRateLimitExceeded        = "rate_limit_exceeded"
	AuditActionAdminAction              = "admin_action"
)

// Audit outcomes
const (
	AuditStatusSuccess = "success"
	AuditStatusFailure = "failure"
)

type AuditLog struct {
	ID             uuid.UUID     `db:"id"`
	Action         string        `db:"action"`
	Status         string        `db:"status"`
	UserID         *uuid.UUID    `db:"user_id"`
	IPAddress      *string       `db:"ip_address"`
	UserAgent      *string       `db:"user_agent"`
	Endpoint       *string       `db:"endpoint"`
	Method         *string       `db:"method"`
	ResponseStatus *int          `db:"response_status"`
	LatencyMs      *int64        `db:"latency_ms"`
	Details        AuditDetails  `db:"details"`
	CreatedAt      time.Time     `db:"created_at"`
}

// AuditDetails holds the free-form context payload for an audit entry
type AuditDetails map[string]interface{}

// Scan implements sql.Scanner for JSONB
func (ad *AuditDetails) Scan(value interface{}) error {
	if value == nil {
		*ad = make(AuditDetails)
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return ErrBadRequest
	}

	var m map[string]interface{}
	if err := json.Unmarshal(bytes, &m); err != nil {
		return err
	}
	*ad = AuditDetails(m)
	return nil
}

// Value implements driver.Valuer for JSONB
func (ad AuditDetails) Value() (driver.Value, error) {
	if ad == nil {
		return nil, nil
	}
	return json.Marshal(ad)
}
