package handlers

import (
	"github.com/fenilmodi00/ipo-admin/shared"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
)

// Handlers groups every route handler of the service
type Handlers struct {
	Health    *HealthHandler
	IPO       *IPOHandler
	Form      *FormHandler
	Draft     *DraftHandler
	Registrar *RegistrarHandler
	User      *UserHandler
	Dashboard *DashboardHandler
	Admin     *AdminHandler
	Metrics   *shared.Metrics
}

// Register mounts the routes on app
func Register(app *fiber.App, h Handlers) {
	app.Get("/health", h.Health.Health)
	if h.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(h.Metrics.Handler()))
	}

	api := app.Group("/api/v1")

	// IPO Routes
	ipos := api.Group("/ipos")
	ipos.Get("/:category", h.IPO.GetIPOs)
	ipos.Get("/:category/export", h.IPO.ExportIPOs)
	ipos.Post("/:category/bulk-delete", h.IPO.BulkDeleteIPOs)
	ipos.Get("/:category/:id/form", h.IPO.GetIPOForm)
	ipos.Post("/:category", h.IPO.CreateIPO)
	ipos.Patch("/:category/:id", h.IPO.UpdateIPO)
	ipos.Patch("/:category/:id/sections/:section", h.IPO.UpdateIPOSection)
	ipos.Delete("/:category/:id", h.IPO.DeleteIPO)

	// Form Routes
	forms := api.Group("/forms/ipo")
	forms.Get("/new", h.Form.NewForm)
	forms.Post("/events", h.Form.ApplyEvents)
	forms.Get("/timeline", h.Form.Timeline)

	// Draft Routes
	api.Get("/drafts/:id", h.Draft.GetDraft)
	api.Post("/drafts/:id/retry", h.Draft.RetryDraft)
	api.Delete("/drafts/:id", h.Draft.DiscardDraft)

	// Registrar Routes
	api.Get("/registrars", h.Registrar.GetRegistrars)
	api.Post("/registrars", h.Registrar.CreateRegistrar)
	api.Put("/registrars/:id", h.Registrar.UpdateRegistrar)
	api.Delete("/registrars/:id", h.Registrar.DeleteRegistrar)

	// User Routes
	api.Get("/users", h.User.GetUsers)
	api.Get("/users/customers", h.User.GetCustomers)
	api.Get("/users/:id", h.User.GetUser)
	api.Put("/users/:id", h.User.UpdateUser)
	api.Put("/users/:id/pan", h.User.UpdatePAN)
	api.Delete("/users/:id", h.User.DeleteUser)

	api.Get("/dashboard/stats", h.Dashboard.GetStats)

	// Scraper Routes
	scraper := api.Group("/scraper")
	scraper.Post("/sync", h.Admin.TriggerSync)
	scraper.Post("/sync-gmp", h.Admin.TriggerGMPSync)
	scraper.Get("/preview", h.Admin.PreviewScrape)

	// Cache Routes
	cache := api.Group("/admin/cache")
	cache.Get("/stats", h.Admin.GetCacheStats)
	cache.Delete("/", h.Admin.ClearCache)
	cache.Post("/warmup", h.Admin.WarmupCache)
}
