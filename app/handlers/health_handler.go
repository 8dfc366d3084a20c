package handlers

import (
	"context"
	"time"

	"github.com/amirphl/iptv-reseller-automation/utils"
	"github.com/gofiber/fiber/v3"
)

// Pinger checks one backing dependency
type Pinger func(ctx context.Context) error

// HealthHandler reports liveness plus the state of each registered dependency
type HealthHandler struct {
	baseHandler
	service string
	version string
	checks  map[string]Pinger
}

func NewHealthHandler(service, version string, checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{
		baseHandler: newBaseHandler(),
		service:     service,
		version:     version,
		checks:      checks,
	}
}

func (h *HealthHandler) Health(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	status := "ok"
	deps := make(map[string]string, len(h.checks))
	for name, ping := range h.checks {
		if ping == nil {
			deps[name] = "disabled"
			continue
		}
		if err := ping(ctx); err != nil {
			deps[name] = "down: " + err.Error()
			status = "degraded"
			continue
		}
		deps[name] = "up"
	}

	data := fiber.Map{
		"status":       status,
		"timestamp":    utils.UTCNow().Unix(),
		"version":      h.version,
		"service":      h.service,
		"dependencies": deps,
	}
	if status != "ok" {
		return h.ErrorResponse(c, fiber.StatusServiceUnavailable, "Service is degraded", "DEPENDENCY_DOWN", data)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Service is healthy", data)
}
