package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fenilmodi00/ipo-admin/config"
	"github.com/fenilmodi00/ipo-admin/database"
	"github.com/fenilmodi00/ipo-admin/handlers"
	"github.com/fenilmodi00/ipo-admin/jobs"
	"github.com/fenilmodi00/ipo-admin/services"
	"github.com/fenilmodi00/ipo-admin/shared"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const cleanupInterval = time.Hour

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

// server is the wired service: the Fiber app, its scheduler and what must be closed on exit
type server struct {
	app       *fiber.App
	scheduler *jobs.Scheduler
	ipos      *services.CachedIPOService
	client    *services.BackendClient
	db        *sql.DB
}

// newServer wires configuration, services, jobs and routes. Drafts are kept in
// Postgres when DATABASE_URL is set and in memory otherwise.
func newServer(cfg *config.Config) (*server, error) {
	unified := cfg.Unified()
	metrics := shared.NewMetrics()

	var (
		db         *sql.DB
		draftStore services.DraftStore
	)
	if cfg.HasDatabase() {
		var err error
		db, err = database.ConnectWithConfig(unified.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to draft database: %w", err)
		}
		if err := database.Migrate(context.Background(), db); err != nil {
			logrus.WithError(err).Warn("Migration warning")
		}
		draftStore = database.NewPostgresDraftStore(db)
	} else {
		logrus.Warn("DATABASE_URL not set, drafts are kept in memory and lost on restart")
		draftStore = services.NewMemoryDraftStore()
	}

	client := services.NewBackendClient(unified.Service, metrics)
	cache := services.NewCacheServiceWithConfig(unified.Cache.DefaultTTL, unified.Cache.MaxSize, metrics)
	validator := services.NewValidationService(metrics)
	normalizer := services.NewNormalizer(services.NewUtilityService())

	drafts := services.NewDraftService(draftStore, unified.Drafts.TTL, metrics)
	ipoService := services.NewIPOService(client, normalizer, validator)
	ipoService.SetDraftSaver(drafts)
	cachedIPOService := services.NewCachedIPOService(ipoService, cache)

	registrarService := services.NewRegistrarService(client, validator, cache, unified.Cache.RegistrarRefreshPeriod)
	userService := services.NewUserService(client, validator)
	scraperService := services.NewScraperService(client, cachedIPOService)

	logrus.WithFields(logrus.Fields{
		"backend":          unified.Service.BaseURL,
		"http_timeout":     unified.Service.HTTPRequestTimeout,
		"rate_limit":       unified.Service.RequestRateLimit,
		"cache_ttl":        unified.Cache.DefaultTTL,
		"cache_max_size":   unified.Cache.MaxSize,
		"draft_ttl":        unified.Drafts.TTL,
		"persisted_drafts": db != nil,
	}).Info("IPO admin services initialized")

	scheduler := jobs.NewScheduler()
	if err := scheduler.Every("registrar-refresh", unified.Cache.RegistrarRefreshPeriod, jobs.NewRegistrarRefreshJob(registrarService)); err != nil {
		return nil, err
	}
	if err := scheduler.Every("cache-cleanup", cleanupInterval, jobs.NewCacheCleanupJob(cache, drafts)); err != nil {
		return nil, err
	}
	if err := scheduler.Every("scraper-sync", cfg.GetScraperSyncInterval(), jobs.NewScraperSyncJob(scraperService)); err != nil {
		return nil, err
	}

	app := fiber.New(fiber.Config{
		AppName:   "ipo-admin",
		BodyLimit: 10 << 20,
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New())

	handlers.Register(app, handlers.Handlers{
		Health:    handlers.NewHealthHandler(db, client, cachedIPOService),
		IPO:       handlers.NewIPOHandler(cachedIPOService, services.NewExportService(cachedIPOService)),
		Form:      handlers.NewFormHandler(registrarService),
		Draft:     handlers.NewDraftHandler(drafts, cachedIPOService),
		Registrar: handlers.NewRegistrarHandler(registrarService),
		User:      handlers.NewUserHandler(userService),
		Dashboard: handlers.NewDashboardHandler(services.NewDashboardService(cachedIPOService)),
		Admin:     handlers.NewAdminHandler(scraperService, cachedIPOService),
		Metrics:   metrics,
	})

	return &server{
		app:       app,
		scheduler: scheduler,
		ipos:      cachedIPOService,
		client:    client,
		db:        db,
	}, nil
}

func (s *server) close() {
	s.scheduler.Stop()
	s.client.Close()
	database.Close(s.db)
}

func runServe(ctx context.Context) error {
	srv, err := newServer(cfg)
	if err != nil {
		return err
	}
	defer srv.close()

	srv.scheduler.Start()

	// Warmup cache on startup
	go func() {
		warmCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := srv.ipos.WarmupCache(warmCtx); err != nil {
			logrus.WithError(err).Warn("Cache warmup failed")
		} else {
			logrus.Info("Cache warmed up successfully")
		}
	}()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		logrus.Info("Shutting down server")
		if err := srv.app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logrus.WithError(err).Error("Server shutdown failed")
		}
	}()

	logrus.Infof("Server starting on port %s", cfg.ServerPort)
	if err := srv.app.Listen(":" + cfg.ServerPort); err != nil {
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}
