package models

import (
	"time"
)

// Lock reasons recorded when an account enters a locked state
const (
	LockReasonFailedAttempts     = "failed_attempts"
	LockReasonSuspiciousActivity = "suspicious_activity"
	LockReasonAdminAction        = "admin_action"
	LockReasonPolicyViolation    = "policy_violation"
)

// IsValidLockReason reports whether reason is one of the known lock reasons
func IsValidLockReason(reason string) bool {
	switch reason {
	case LockReasonFailedAttempts, LockReasonSuspiciousActivity, LockReasonAdminAction, LockReasonPolicyViolation:
		return true
	}
	return false
}

// PasswordHistoryEntry is one prior password hash kept for reuse checks
type PasswordHistoryEntry struct {
	Hash      string    `json:"hash"`
	CreatedAt time.Time `json:"created_at"`
}

// PasswordHistoryLimit caps how many prior hashes are retained per user
const PasswordHistoryLimit = 5

type User struct {
	ID                string
	Name              string
	Email             string
	PasswordHash      string
	PasswordHistory   []PasswordHistoryEntry
	PasswordChangedAt time.Time
	Role              string // "user", "admin"
	Permissions       []string
	MFAEnabled        bool
	MFASecret         string // base32 TOTP secret, empty until enrollment begins
	EmailVerified     bool

	FailedLoginAttempts int
	PermanentlyLocked   bool
	LockedUntil         *time.Time // temporary lock expiration, lazily expired
	LockReason          string

	EmailVerificationTokenHash string
	EmailVerificationExpires   *time.Time
	PasswordResetTokenHash     string
	PasswordResetExpires       *time.Time

	LastLoginAt *time.Time
	LastLoginIP string

	Bio       string
	Location  string
	Website   string
	AvatarURL string

	Version   int // optimistic concurrency token, bumped by every write
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsTemporarilyLocked reports whether a temporary lock is still in effect.
// Expired locks are treated as cleared without requiring a background sweep.
func (u *User) IsTemporarilyLocked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}

// LockRemaining returns how long a temporary lock has left, zero when unlocked.
func (u *User) LockRemaining(now time.Time) time.Duration {
	if !u.IsTemporarilyLocked(now) {
		return 0
	}
	return u.LockedUntil.Sub(now)
}

// PasswordIsExpired reports whether the password is older than the policy allows.
func (u *User) PasswordIsExpired(now time.Time, expiryDays int) bool {
	if expiryDays <= 0 || u.PasswordChangedAt.IsZero() {
		return false
	}
	return now.Sub(u.PasswordChangedAt) > time.Duration(expiryDays)*24*time.Hour
}
