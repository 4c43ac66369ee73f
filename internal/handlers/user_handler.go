package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/inflnara/inflnara-api/internal/dto"
	"github.com/inflnara/inflnara-api/internal/middleware"
	"github.com/inflnara/inflnara-api/internal/services"
)

type UserHandler struct {
	userService *services.UserService
}

func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

func (h *UserHandler) Me(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return errorJSON(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	profile, err := h.userService.Profile(c.UserContext(), userID)
	if err != nil {
		if errors.Is(err, services.ErrUnauthorized) {
			return errorJSON(c, fiber.StatusUnauthorized, "Unauthorized")
		}
		return internalError(c, "profile", err)
	}

	return c.JSON(profile)
}

func (h *UserHandler) UpdateMe(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return errorJSON(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	var req dto.UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid request body")
	}

	profile, err := h.userService.UpdateProfile(c.UserContext(), userID, &req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrValidation):
			return errorJSON(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrUnauthorized):
			return errorJSON(c, fiber.StatusUnauthorized, "Unauthorized")
		}
		return internalError(c, "update_profile", err)
	}

	return c.JSON(profile)
}
