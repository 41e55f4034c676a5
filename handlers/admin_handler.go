package handlers

import (
	"time"

	"github.com/fenilmodi00/ipo-admin/services"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// AdminHandler triggers backend scrapes and manages the IPO list cache
type AdminHandler struct {
	Scraper *services.ScraperService
	IPOs    *services.CachedIPOService
}

func NewAdminHandler(scraper *services.ScraperService, ipos *services.CachedIPOService) *AdminHandler {
	return &AdminHandler{
		Scraper: scraper,
		IPOs:    ipos,
	}
}

// TriggerSync asks the backend to scrape and store current IPOs
func (h *AdminHandler) TriggerSync(c *fiber.Ctx) error {
	logrus.Info("Manual IPO sync triggered via admin endpoint")

	result, err := h.Scraper.Sync(requestContext(c), c.QueryInt("limit", 0))
	if err != nil {
		return fail(c, err)
	}
	return success(c, fiber.StatusOK, result)
}

// TriggerGMPSync asks the backend to refresh grey market premiums
func (h *AdminHandler) TriggerGMPSync(c *fiber.Ctx) error {
	logrus.Info("Manual GMP sync triggered via admin endpoint")

	result, err := h.Scraper.SyncGMP(requestContext(c))
	if err != nil {
		return fail(c, err)
	}
	return success(c, fiber.StatusOK, result)
}

// PreviewScrape returns what a sync would store, as table rows
func (h *AdminHandler) PreviewScrape(c *fiber.Ctx) error {
	result, err := h.Scraper.Preview(requestContext(c), c.QueryInt("limit", 0))
	if err != nil {
		return fail(c, err)
	}
	return success(c, fiber.StatusOK, result)
}

// GetCacheStats reports the list cache contents
func (h *AdminHandler) GetCacheStats(c *fiber.Ctx) error {
	return success(c, fiber.StatusOK, h.IPOs.GetCacheStats())
}

// ClearCache drops every cached IPO list
func (h *AdminHandler) ClearCache(c *fiber.Ctx) error {
	h.IPOs.InvalidateAllIPOCache()
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Cache cleared successfully",
	})
}

// WarmupCache pre-loads the IPO lists
func (h *AdminHandler) WarmupCache(c *fiber.Ctx) error {
	start := time.Now()
	if err := h.IPOs.WarmupCache(requestContext(c)); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"success":     true,
		"message":     "Cache warmed up successfully",
		"duration_ms": time.Since(start).Milliseconds(),
	})
}
