package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/pageza/nutrisnap/backend/config"
	"github.com/pageza/nutrisnap/backend/internal/api"
	"github.com/pageza/nutrisnap/backend/internal/database"
	"github.com/pageza/nutrisnap/backend/internal/logger"
	"github.com/pageza/nutrisnap/backend/internal/middleware"
	"github.com/pageza/nutrisnap/backend/internal/router"
	"github.com/pageza/nutrisnap/backend/internal/server"
	"github.com/pageza/nutrisnap/backend/internal/service"
	"github.com/pageza/nutrisnap/backend/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "nutrisnap: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Initialize configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer log.Sync()

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing := telemetry.Init(ctx, cfg.OtelEnabled, string(config.GetEnvironment()), log)
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn("tracer shutdown failed", "error", err)
		}
	}()

	db, err := database.New(cfg, log)
	if err != nil {
		return err
	}
	if err := database.RunMigrations(db, cfg.MigrationsDir, log); err != nil {
		return err
	}

	// Redis backs the nutrition cache and rate limiting; both are skipped without it.
	rdb, err := database.NewRedisClient(cfg, log)
	if err != nil {
		log.Warn("redis unavailable, continuing without cache and rate limiting", "error", err)
		rdb = nil
	}

	vision, closeVision, err := buildVision(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeVision()

	var nutrition service.NutritionClient = service.NewCalorieNinjasClient(cfg.Nutrition, log)
	if rdb != nil {
		nutrition = service.NewCachedNutritionClient(nutrition, rdb, cfg.NutritionCacheTTL, log)
	}

	var images service.ImageArchive
	s3Config, err := config.NewS3Config(ctx, cfg)
	if err != nil {
		log.Warn("image archive disabled", "error", err)
	} else if s3Config != nil {
		images = service.NewS3ImageStore(s3Config, log)
	}

	meals := service.NewGormMealStore(db)
	profiles := service.NewProfileService(db, cfg.DefaultDailyGoal)

	council := service.NewCouncil(service.CouncilDeps{
		Vision:    vision,
		Nutrition: nutrition,
		Advisor:   service.NewChatAdvisoryClient(cfg.Advisor, log),
		Store:     meals,
		Profiles:  profiles,
		Images:    images,
	}, service.CouncilConfig{
		VisionTimeout:    cfg.Vision.Timeout,
		NutritionTimeout: cfg.Nutrition.Timeout,
		AdviceTimeout:    cfg.Advisor.Timeout,
		MaxRetries:       cfg.ProviderMaxRetries,
		MaxImageBytes:    cfg.MaxImageBytes,
		DefaultDailyGoal: cfg.DefaultDailyGoal,
		Location:         cfg.Location,
	}, log)

	var limiter *middleware.RateLimiter
	if rdb != nil {
		limiter = middleware.NewProviderRateLimiter(rdb, cfg.RateLimitPerHour)
	}

	engine := router.SetupRouter(log, cfg.CORSOrigins, router.Handlers{
		Health:    api.NewHealthHandler(db),
		Meals:     api.NewMealHandler(council, meals, cfg.MaxImageBytes, cfg.Location, limiter),
		Dashboard: api.NewDashboardHandler(service.NewDashboardService(meals, profiles, cfg.DefaultDailyGoal, cfg.Location)),
		Profiles:  api.NewProfileHandler(profiles),
	})

	srv := server.New(cfg, engine, log)
	log.Info("starting server", "environment", config.GetEnvironment(), "vision", cfg.Vision.Provider, "advisor", cfg.Advisor.Provider)
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	log.Info("server stopped")
	return nil
}

func buildVision(ctx context.Context, cfg *config.Config, log *logger.Logger) (service.VisionClient, func(), error) {
	if cfg.Vision.Provider == "gcp" {
		client, err := service.NewGCPVisionClient(ctx, cfg.Vision, cfg.MaxImageBytes, log, service.GCPClientOptionsFromEnv(os.Getenv)...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create GCP vision client: %w", err)
		}
		return client, func() { _ = client.Close() }, nil
	}
	return service.NewChatVisionClient(cfg.Vision.ProviderConfig, cfg.MaxImageBytes), func() {}, nil
}
