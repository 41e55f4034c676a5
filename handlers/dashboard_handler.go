package handlers

import (
	"github.com/fenilmodi00/ipo-admin/services"
	"github.com/gofiber/fiber/v2"
)

type DashboardHandler struct {
	Service *services.DashboardService
}

func NewDashboardHandler(service *services.DashboardService) *DashboardHandler {
	return &DashboardHandler{Service: service}
}

// GetStats returns IPO counts, GMP leaders and the gain chart
func (h *DashboardHandler) GetStats(c *fiber.Ctx) error {
	stats, err := h.Service.Stats(requestContext(c))
	if err != nil {
		return fail(c, err)
	}
	return success(c, fiber.StatusOK, stats)
}
