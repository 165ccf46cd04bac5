package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/inkwell-blog/inkwell/internal/database"
	"github.com/inkwell-blog/inkwell/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

const userColumns = `id, name, email, password_hash, password_history, password_changed_at,
	role, permissions, mfa_enabled, mfa_secret, email_verified,
	failed_login_attempts, permanently_locked, locked_until, lock_reason,
	email_verification_token_hash, email_verification_expires,
	password_reset_token_hash, password_reset_expires,
	last_login_at, last_login_ip, bio, location, website, avatar_url,
	version, created_at, updated_at`

// UserRepository owns all reads and writes of user documents. Per-account
// security mutations (attempt counters, lock transitions, password history)
// are single-statement updates so concurrent logins serialize in the store.
type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{pool: db.Pool}
}

// rowScanner interface for scanning user rows (single row or multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanUserRow handles nullable fields and populates a User model from a database row
func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User
	var mfaSecret, lockReason, verifyTokenHash, resetTokenHash, lastLoginIP *string
	var bio, location, website, avatarURL *string
	var lockedUntil, verifyExpires, resetExpires, lastLoginAt *time.Time

	err := scanner.Scan(
		&user.ID, &user.Name, &user.Email, &user.PasswordHash,
		&user.PasswordHistory, &user.PasswordChangedAt,
		&user.Role, pq.Array(&user.Permissions), &user.MFAEnabled, &mfaSecret, &user.EmailVerified,
		&user.FailedLoginAttempts, &user.PermanentlyLocked, &lockedUntil, &lockReason,
		&verifyTokenHash, &verifyExpires,
		&resetTokenHash, &resetExpires,
		&lastLoginAt, &lastLoginIP, &bio, &location, &website, &avatarURL,
		&user.Version, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if mfaSecret != nil {
		user.MFASecret = *mfaSecret
	}
	if lockReason != nil {
		user.LockReason = *lockReason
	}
	if verifyTokenHash != nil {
		user.EmailVerificationTokenHash = *verifyTokenHash
	}
	if resetTokenHash != nil {
		user.PasswordResetTokenHash = *resetTokenHash
	}
	if lastLoginIP != nil {
		user.LastLoginIP = *lastLoginIP
	}
	if bio != nil {
		user.Bio = *bio
	}
	if location != nil {
		user.Location = *location
	}
	if website != nil {
		user.Website = *website
	}
	if avatarURL != nil {
		user.AvatarURL = *avatarURL
	}
	user.LockedUntil = lockedUntil
	user.EmailVerificationExpires = verifyExpires
	user.PasswordResetExpires = resetExpires
	user.LastLoginAt = lastLoginAt

	return &user, nil
}

func scanUserRows(rows pgx.Rows) ([]*models.User, error) {
	defer rows.Close()

	users := make([]*models.User, 0)

	for rows.Next() {
		user, err := scanUserRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return users, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUserRow(r.pool.QueryRow(ctx, query, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUserRow(r.pool.QueryRow(ctx, query, email))
}

func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}

	return scanUserRows(rows)
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	user.ID = uuid.New().String()

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.PasswordChangedAt.IsZero() {
		user.PasswordChangedAt = now
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	if user.PasswordHistory == nil {
		user.PasswordHistory = []models.PasswordHistoryEntry{{Hash: user.PasswordHash, CreatedAt: now}}
	}
	if user.Permissions == nil {
		user.Permissions = []string{}
	}

	query := `
		INSERT INTO users (id, name, email, password_hash, password_history, password_changed_at,
			role, permissions, mfa_enabled, email_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING ` + userColumns

	return scanUserRow(r.pool.QueryRow(ctx, query,
		user.ID, user.Name, user.Email, user.PasswordHash,
		user.PasswordHistory, user.PasswordChangedAt,
		user.Role, pq.Array(user.Permissions), user.MFAEnabled, user.EmailVerified,
		user.CreatedAt, user.UpdatedAt,
	))
}

// UpdateProfile updates mutable non-security fields
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, user *models.User) (*models.User, error) {
	query := `
		UPDATE users SET name = $1, bio = $2, location = $3, website = $4, avatar_url = $5,
			version = version + 1, updated_at = now()
		WHERE id = $6
		RETURNING ` + userColumns

	return scanUserRow(r.pool.QueryRow(ctx, query,
		user.Name, user.Bio, user.Location, user.Website, user.AvatarURL, id,
	))
}

// RecordLoginFailure applies a failed-attempt increment and, when the new
// count reaches maxAttempts, the temporary-lock transition, as one atomic
// statement. An elapsed lock is discarded together with its counter, so
// the failure lands as attempt one of a fresh series rather than an
// instant re-lock. The store is the serialization point: two racing
// failures can never both decide to lock with diverging lock-until times.
// Permanently locked accounts are left untouched.
func (r *UserRepository) RecordLoginFailure(ctx context.Context, id string, maxAttempts int, lockoutDuration time.Duration) (*models.User, error) {
	query := `
		UPDATE users SET
			failed_login_attempts = CASE
				WHEN locked_until IS NOT NULL AND locked_until <= now() THEN 1
				ELSE failed_login_attempts + 1
			END,
			locked_until = CASE
				WHEN (CASE
					WHEN locked_until IS NOT NULL AND locked_until <= now() THEN 1
					ELSE failed_login_attempts + 1
				END) >= $2 THEN now() + make_interval(secs => $3)
				WHEN locked_until IS NOT NULL AND locked_until <= now() THEN NULL
				ELSE locked_until
			END,
			lock_reason = CASE
				WHEN (CASE
					WHEN locked_until IS NOT NULL AND locked_until <= now() THEN 1
					ELSE failed_login_attempts + 1
				END) >= $2 THEN $4
				WHEN locked_until IS NOT NULL AND locked_until <= now() THEN NULL
				ELSE lock_reason
			END,
			version = version + 1,
			updated_at = now()
		WHERE id = $1 AND permanently_locked = false
		RETURNING ` + userColumns

	return scanUserRow(r.pool.QueryRow(ctx, query, id, maxAttempts, lockoutDuration.Seconds(), models.LockReasonFailedAttempts))
}

// RecordLoginSuccess resets the failure counter, clears any temporary lock,
// and records the login metadata in one statement.
func (r *UserRepository) RecordLoginSuccess(ctx context.Context, id, ipAddress string) (*models.User, error) {
	query := `
		UPDATE users SET
			failed_login_attempts = 0,
			locked_until = NULL,
			lock_reason = NULL,
			last_login_at = now(),
			last_login_ip = $2,
			version = version + 1,
			updated_at = now()
		WHERE id = $1 AND permanently_locked = false
		RETURNING ` + userColumns

	return scanUserRow(r.pool.QueryRow(ctx, query, id, ipAddress))
}

// UpdatePassword replaces the password hash and history with a versioned
// compare-and-swap. ErrConflict signals a concurrent modification; callers
// re-read and retry.
func (r *UserRepository) UpdatePassword(ctx context.Context, id string, expectedVersion int, newHash string, history []models.PasswordHistoryEntry) (*models.User, error) {
	query := `
		UPDATE users SET
			password_hash = $3,
			password_history = $4,
			password_changed_at = now(),
			password_reset_token_hash = NULL,
			password_reset_expires = NULL,
			version = version + 1,
			updated_at = now()
		WHERE id = $1 AND version = $2
		RETURNING ` + userColumns

	user, err := scanUserRow(r.pool.QueryRow(ctx, query, id, expectedVersion, newHash, history))
	if err == models.ErrNotFound {
		return nil, models.ErrConflict
	}
	return user, err
}

// SetEmailVerificationToken stores the hash and expiry of a freshly issued
// verification token.
func (r *UserRepository) SetEmailVerificationToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	query := `
		UPDATE users SET email_verification_token_hash = $2, email_verification_expires = $3,
			version = version + 1, updated_at = now()
		WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id, tokenHash, expiresAt)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// GetByVerificationTokenHash resolves an unexpired verification token
func (r *UserRepository) GetByVerificationTokenHash(ctx context.Context, tokenHash string) (*models.User, error) {
	query := `SELECT ` + userColumns + `
		FROM users
		WHERE email_verification_token_hash = $1 AND email_verification_expires > now()`

	return scanUserRow(r.pool.QueryRow(ctx, query, tokenHash))
}

// MarkEmailVerified flips the verified flag and consumes the token
func (r *UserRepository) MarkEmailVerified(ctx context.Context, id string) (*models.User, error) {
	query := `
		UPDATE users SET email_verified = true,
			email_verification_token_hash = NULL, email_verification_expires = NULL,
			version = version + 1, updated_at = now()
		WHERE id = $1
		RETURNING ` + userColumns

	return scanUserRow(r.pool.QueryRow(ctx, query, id))
}

// SetPasswordResetToken stores the hash and expiry of a reset token
func (r *UserRepository) SetPasswordResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	query := `
		UPDATE users SET password_reset_token_hash = $2, password_reset_expires = $3,
			version = version + 1, updated_at = now()
		WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id, tokenHash, expiresAt)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// GetByResetTokenHash resolves an unexpired password-reset token
func (r *UserRepository) GetByResetTokenHash(ctx context.Context, tokenHash string) (*models.User, error) {
	query := `SELECT ` + userColumns + `
		FROM users
		WHERE password_reset_token_hash = $1 AND password_reset_expires > now()`

	return scanUserRow(r.pool.QueryRow(ctx, query, tokenHash))
}

// SetMFASecret binds a pending TOTP secret to the account without enabling
// MFA. Re-enrollment before verification replaces the prior secret.
func (r *UserRepository) SetMFASecret(ctx context.Context, id, secret string) error {
	query := `
		UPDATE users SET mfa_secret = $2, mfa_enabled = false,
			version = version + 1, updated_at = now()
		WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id, secret)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// EnableMFA makes the pending secret permanent
func (r *UserRepository) EnableMFA(ctx context.Context, id string) (*models.User, error) {
	query := `
		UPDATE users SET mfa_enabled = true,
			version = version + 1, updated_at = now()
		WHERE id = $1 AND mfa_secret IS NOT NULL
		RETURNING ` + userColumns

	return scanUserRow(r.pool.QueryRow(ctx, query, id))
}

// ResetMFA clears the secret and the enabled flag together, forcing
// re-enrollment.
func (r *UserRepository) ResetMFA(ctx context.Context, id string) error {
	query := `
		UPDATE users SET mfa_secret = NULL, mfa_enabled = false,
			version = version + 1, updated_at = now()
		WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Lock applies an administrative lock. A permanent lock clears any
// temporary lock window; a temporary lock is refused for permanently
// locked accounts.
func (r *UserRepository) Lock(ctx context.Context, id string, permanent bool, until *time.Time, reason string) (*models.User, error) {
	if permanent {
		query := `
			UPDATE users SET permanently_locked = true, locked_until = NULL, lock_reason = $2,
				version = version + 1, updated_at = now()
			WHERE id = $1
			RETURNING ` + userColumns
		return scanUserRow(r.pool.QueryRow(ctx, query, id, reason))
	}

	query := `
		UPDATE users SET locked_until = $2, lock_reason = $3,
			version = version + 1, updated_at = now()
		WHERE id = $1 AND permanently_locked = false
		RETURNING ` + userColumns
	return scanUserRow(r.pool.QueryRow(ctx, query, id, until, reason))
}

// Unlock clears the failure counter, both lock states, and the lock reason
// in one statement.
func (r *UserRepository) Unlock(ctx context.Context, id string) (*models.User, error) {
	query := `
		UPDATE users SET permanently_locked = false, locked_until = NULL, lock_reason = NULL,
			failed_login_attempts = 0,
			version = version + 1, updated_at = now()
		WHERE id = $1
		RETURNING ` + userColumns

	return scanUserRow(r.pool.QueryRow(ctx, query, id))
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
