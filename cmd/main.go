package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sensorhub/internal/config"
	"sensorhub/internal/handlers"
	"sensorhub/internal/logger"
	"sensorhub/internal/middleware"
	"sensorhub/internal/repository"
	"sensorhub/internal/service"
	"sensorhub/pkg/database"
	"sensorhub/pkg/redis"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

func main() {
	loaded, envErr := config.LoadEnvFiles(config.EnvFiles...)

	cfg := config.Load()
	log := logger.New(cfg.Log)

	if envErr != nil {
		log.WithError(envErr).Warn("Failed to parse env file")
	}
	if len(loaded) == 0 {
		log.Debug("No env file found, using environment variables")
	}
	log.Info("=== Sensor Hub API Starting ===")

	db, err := database.Connect(cfg.DB, cfg.App.Debug)
	if err != nil {
		log.FatalWithError(err, "Failed to connect to database")
	}
	defer database.Close(db)

	if cfg.DB.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			log.FatalWithError(err, "Failed to migrate database")
		}
	}

	cacheRepo := repository.NewNoopCache()
	var redisCheck handlers.Checker
	var redisStats handlers.StatsSource
	if cfg.Redis.Enabled {
		redisClient, err := redis.Connect(cfg.Redis)
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, period cache disabled")
		} else {
			defer redisClient.Close()
			cacheRepo = repository.NewCacheRepository(redisClient)
			redisCheck = cacheRepo.Ping
			redisStats = func(ctx context.Context) (map[string]string, error) {
				return redis.GetStats(ctx, redisClient)
			}
			log.Logger.Info().Dur("ttl", cfg.Cache.TTL).Msg("Period cache enabled")
		}
	}

	readingRepo := repository.NewReadingRepository(db)
	readingService := service.NewReadingService(readingRepo, cacheRepo, cfg.Cache.TTL, log)

	if cfg.App.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog(log.WithComponent("http")))

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.App.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Rate limiting only outside debug mode
	if !cfg.App.Debug {
		limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst)
		r.Use(middleware.RateLimitMiddleware(limiter, log))
		if cfg.RateLimit.PerIP {
			r.Use(middleware.IPRateLimitMiddleware(
				middleware.NewIPRateLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst),
			))
		}
		log.Logger.Info().
			Float64("rps", cfg.RateLimit.RequestsPerSecond).
			Int("burst", cfg.RateLimit.Burst).
			Bool("per_ip", cfg.RateLimit.PerIP).
			Msg("Rate limiting enabled")
	}

	handlers.NewReadingHandler(readingService).RegisterRoutes(r)
	handlers.NewSystemHandler(
		readingService.Count,
		func(ctx context.Context) error { return database.Ping(ctx, db) },
		redisCheck,
		redisStats,
	).RegisterRoutes(r)

	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Logger.Info().Str("addr", server.Addr).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.FatalWithError(err, "Server failed to start")
		}
	}()

	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.ErrorWithError(err, "Server forced to shutdown")
		return
	}

	log.Info("Server exited properly")
}
