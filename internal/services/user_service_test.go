package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inflnara/inflnara-api/internal/dto"
	"github.com/inflnara/inflnara-api/internal/models"
	"github.com/inflnara/inflnara-api/internal/repository"
)

func TestUserService_Profile(t *testing.T) {
	ctx := context.Background()
	users := repository.NewMemoryUserRepository()
	u := &models.User{Email: "pat@example.com", Password: "hash", Name: "Pat", IsActive: true}
	require.NoError(t, users.Create(ctx, u))
	svc := NewUserService(users)

	profile, err := svc.Profile(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "pat@example.com", profile.Email)
	assert.Equal(t, "Pat", profile.Name)
	assert.Equal(t, models.RoleUser, profile.Role)

	_, err = svc.Profile(ctx, u.ID+1)
	assert.ErrorIs(t, err, ErrUnauthorized)

	users.SetActive(u.ID, false)
	_, err = svc.Profile(ctx, u.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestUserService_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	users := repository.NewMemoryUserRepository()
	u := &models.User{Email: "quinn@example.com", Password: "hash", Name: "Quinn", IsActive: true}
	require.NoError(t, users.Create(ctx, u))
	svc := NewUserService(users)

	profile, err := svc.UpdateProfile(ctx, u.ID, &dto.UpdateProfileRequest{Name: "  Quinn B  "})
	require.NoError(t, err)
	assert.Equal(t, "Quinn B", profile.Name)
	assert.Equal(t, "quinn@example.com", profile.Email)

	_, err = svc.UpdateProfile(ctx, u.ID, &dto.UpdateProfileRequest{Name: "   "})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.UpdateProfile(ctx, u.ID+1, &dto.UpdateProfileRequest{Name: "Ghost"})
	assert.ErrorIs(t, err, ErrUnauthorized)

	users.SetActive(u.ID, false)
	_, err = svc.UpdateProfile(ctx, u.ID, &dto.UpdateProfileRequest{Name: "Nope"})
	assert.ErrorIs(t, err, ErrUnauthorized)
}
