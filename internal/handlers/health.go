package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/NavalEP/carechat-engine/internal/services"
	"github.com/NavalEP/carechat-engine/internal/storage"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	Version string
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{
		Version: version,
	}
}

// Check returns the health status of the service plus session machine stats.
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	response := fiber.Map{
		"status":  "OK",
		"service": "CareChat Engine",
		"version": h.Version,
	}

	storageOK := true
	if kv := storage.GetStore(); kv != nil {
		if _, err := kv.Keys(c.Context(), "session:"); err != nil {
			storageOK = false
		}
	}
	response["storage"] = storageOK

	if machine := services.GetSessionMachine(); machine != nil {
		response["session"] = machine.Stats()
	}

	status := fiber.StatusOK
	if !storageOK {
		status = fiber.StatusServiceUnavailable
		response["status"] = "DEGRADED"
	}
	return c.Status(status).JSON(response)
}
