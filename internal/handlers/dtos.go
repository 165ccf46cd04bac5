package handlers

import (
	"time"

	"github.com/inkwell-blog/inkwell/internal/models"
)

// UserResponse is the public account shape. Password material, token
// hashes, and the TOTP secret never leave the service boundary.
type UserResponse struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	Role          string     `json:"role"`
	Permissions   []string   `json:"permissions"`
	MFAEnabled    bool       `json:"mfa_enabled"`
	EmailVerified bool       `json:"email_verified"`
	Locked        bool       `json:"locked"`
	LockReason    string     `json:"lock_reason,omitempty"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
	Bio           string     `json:"bio,omitempty"`
	Location      string     `json:"location,omitempty"`
	Website       string     `json:"website,omitempty"`
	AvatarURL     string     `json:"avatar_url,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func toUserResponse(user *models.User) UserResponse {
	return UserResponse{
		ID:            user.ID,
		Name:          user.Name,
		Email:         user.Email,
		Role:          user.Role,
		Permissions:   models.EffectivePermissions(user.Role, user.Permissions),
		MFAEnabled:    user.MFAEnabled,
		EmailVerified: user.EmailVerified,
		Locked:        user.PermanentlyLocked || user.IsTemporarilyLocked(time.Now()),
		LockReason:    user.LockReason,
		LastLoginAt:   user.LastLoginAt,
		Bio:           user.Bio,
		Location:      user.Location,
		Website:       user.Website,
		AvatarURL:     user.AvatarURL,
		CreatedAt:     user.CreatedAt,
		UpdatedAt:     user.UpdatedAt,
	}
}

func toUserResponses(users []*models.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for _, user := range users {
		out = append(out, toUserResponse(user))
	}
	return out
}
