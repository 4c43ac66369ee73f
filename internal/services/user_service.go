package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/inflnara/inflnara-api/internal/dto"
	"github.com/inflnara/inflnara-api/internal/repository"
)

type UserService struct {
	users repository.UserRepository
}

func NewUserService(users repository.UserRepository) *UserService {
	return &UserService{users: users}
}

// Profile returns the caller's own summary. A user deleted or deactivated
// after the access token was issued is treated as unauthenticated.
func (s *UserService) Profile(ctx context.Context, userID uint) (*dto.UserResponse, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !user.IsActive {
		return nil, ErrUnauthorized
	}
	resp := toUserResponse(user)
	return &resp, nil
}

// UpdateProfile changes the caller's display name. Email and password are not
// editable here.
func (s *UserService) UpdateProfile(ctx context.Context, userID uint, req *dto.UpdateProfileRequest) (*dto.UserResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || len(name) > maxNameLength {
		return nil, fmt.Errorf("%w: name is required (max %d characters)", ErrValidation, maxNameLength)
	}

	if _, err := s.Profile(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.users.UpdateName(ctx, userID, name); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	slog.Info("profile updated", "user_id", userID, "action", "update_profile")
	return s.Profile(ctx, userID)
}
