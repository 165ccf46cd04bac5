package services

import (
	"context"
	"log/slog"

	"github.com/inkwell-blog/inkwell/internal/models"
)

// ProfileUserRepository defines the user persistence operations the
// profile surface depends on
type ProfileUserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	UpdateProfile(ctx context.Context, id string, user *models.User) (*models.User, error)
}

// ProfileUpdate carries the editable profile fields
type ProfileUpdate struct {
	Name      string
	Bio       string
	Location  string
	Website   string
	AvatarURL string
}

// UserService handles the non-security account surface
type UserService struct {
	users  ProfileUserRepository
	logger *slog.Logger
}

// NewUserService creates a user service
func NewUserService(users ProfileUserRepository, logger *slog.Logger) *UserService {
	return &UserService{users: users, logger: logger}
}

// GetProfile returns the account for the given id
func (s *UserService) GetProfile(ctx context.Context, id string) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

// UpdateProfile applies the editable profile fields
func (s *UserService) UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	user.Name = update.Name
	user.Bio = update.Bio
	user.Location = update.Location
	user.Website = update.Website
	user.AvatarURL = update.AvatarURL

	updated, err := s.users.UpdateProfile(ctx, id, user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("profile updated", slog.String("user_id", id))
	return updated, nil
}
