package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/inflnara/inflnara-api/internal/dto"
	"github.com/inflnara/inflnara-api/internal/middleware"
	"github.com/inflnara/inflnara-api/internal/services"
)

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid request body")
	}

	resp, err := h.authService.Register(c.UserContext(), &req, clientMeta(c))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrValidation):
			return errorJSON(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrConflict):
			return errorJSON(c, fiber.StatusConflict, "Email already registered")
		}
		return internalError(c, "register", err)
	}

	return c.Status(fiber.StatusCreated).JSON(resp)
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid request body")
	}

	resp, err := h.authService.Login(c.UserContext(), &req, clientMeta(c))
	if err != nil {
		if errors.Is(err, services.ErrUnauthorized) {
			return errorJSON(c, fiber.StatusUnauthorized, "Invalid email or password")
		}
		return internalError(c, "login", err)
	}

	return c.JSON(resp)
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req dto.RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid request body")
	}

	resp, err := h.authService.Refresh(c.UserContext(), &req, clientMeta(c))
	if err != nil {
		if errors.Is(err, services.ErrUnauthorized) {
			return errorJSON(c, fiber.StatusUnauthorized, "Invalid or expired refresh token")
		}
		return internalError(c, "refresh", err)
	}

	return c.JSON(resp)
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return errorJSON(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	if err := h.authService.Logout(c.UserContext(), userID); err != nil {
		return internalError(c, "logout", err)
	}

	return c.JSON(dto.MessageResponse{Message: "Logged out successfully"})
}

func (h *AuthHandler) Sessions(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return errorJSON(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	sessions, err := h.authService.Sessions(c.UserContext(), userID)
	if err != nil {
		return internalError(c, "list_sessions", err)
	}

	return c.JSON(sessions)
}

func clientMeta(c *fiber.Ctx) services.ClientMeta {
	return services.ClientMeta{
		IPAddress: c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	}
}

func errorJSON(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(dto.ErrorResponse{Error: true, Message: message})
}

// internalError logs the cause and answers with a generic 500.
func internalError(c *fiber.Ctx, action string, err error) error {
	slog.Error("request failed",
		"action", action,
		"error", err.Error(),
		"request_id", c.GetRespHeader(fiber.HeaderXRequestID),
		"path", c.Path(),
	)
	return errorJSON(c, fiber.StatusInternalServerError, "Internal server error")
}
