package handlers

import (
	"database/sql"
	"time"

	"github.com/fenilmodi00/ipo-admin/database"
	"github.com/fenilmodi00/ipo-admin/services"
	"github.com/gofiber/fiber/v2"
)

type HealthHandler struct {
	DB      *sql.DB
	Backend *services.BackendClient
	Cache   *services.CachedIPOService
}

func NewHealthHandler(db *sql.DB, backend *services.BackendClient, cache *services.CachedIPOService) *HealthHandler {
	return &HealthHandler{DB: db, Backend: backend, Cache: cache}
}

// Health reports liveness plus the draft store and backend client state.
// A draft database that stops answering degrades the service to 503.
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	body := fiber.Map{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	}

	if h.DB == nil {
		body["drafts"] = "memory"
	} else {
		body["drafts"] = "postgres"
		if err := database.HealthCheck(c.UserContext(), h.DB); err != nil {
			body["status"] = "degraded"
			body["database_error"] = err.Error()
			return c.Status(fiber.StatusServiceUnavailable).JSON(body)
		}
		stats := h.DB.Stats()
		body["database_stats"] = fiber.Map{
			"open_connections": stats.OpenConnections,
			"in_use":           stats.InUse,
			"idle":             stats.Idle,
			"wait_count":       stats.WaitCount,
			"wait_duration_ms": stats.WaitDuration.Milliseconds(),
		}
	}
	if h.Backend != nil {
		body["backend"] = h.Backend.Stats()
	}
	if h.Cache != nil {
		body["cache"] = h.Cache.GetCacheStats()["size"]
	}
	return c.JSON(body)
}
