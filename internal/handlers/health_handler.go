package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/inflnara/inflnara-api/internal/database"
	"github.com/inflnara/inflnara-api/internal/dto"
)

type HealthHandler struct {
	db *gorm.DB
}

// NewHealthHandler takes a nil db when the in-memory store is in use.
func NewHealthHandler(db *gorm.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) Check(c *fiber.Ctx) error {
	dbStatus := "memory"
	if h.db != nil {
		dbStatus = "ok"
		if err := database.Ping(c.UserContext(), h.db); err != nil {
			dbStatus = "unhealthy: " + err.Error()
		}
	}

	return c.JSON(dto.HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		DB:        dbStatus,
	})
}
