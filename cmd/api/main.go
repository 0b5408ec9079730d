package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/marketlens/backend/internal/api/handlers"
	"github.com/marketlens/backend/internal/cache/filecache"
	redisCache "github.com/marketlens/backend/internal/cache/redis"
	"github.com/marketlens/backend/internal/etl"
	"github.com/marketlens/backend/internal/metrics"
	"github.com/marketlens/backend/internal/middleware/ratelimit"
	"github.com/marketlens/backend/internal/middleware/security"
	"github.com/marketlens/backend/internal/middleware/validation"
	"github.com/marketlens/backend/internal/news"
	"github.com/marketlens/backend/internal/psycho"
	"github.com/marketlens/backend/internal/sidra"
	"github.com/marketlens/backend/internal/storage/sqlite"
	"github.com/marketlens/backend/internal/trends"
	"github.com/marketlens/backend/pkg/config"
	appLogger "github.com/marketlens/backend/pkg/logger"
)

func main() {
	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting MarketLens API Server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	fileCache, err := filecache.NewStore(cfg.Cache.Dir, time.Duration(cfg.Cache.TTLHours)*time.Hour)
	if err != nil {
		appLogger.Fatal("Failed to create file cache", zap.Error(err))
	}

	var outputCache etl.OutputCache
	var redisHealth *redisCache.Client
	if cfg.Redis.Enabled {
		redisClient, err := redisCache.NewClient(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
			time.Duration(cfg.Redis.TTLHours)*time.Hour,
		)
		if err != nil {
			appLogger.Warn("Redis unavailable, running without output cache", zap.Error(err))
		} else {
			defer redisClient.Close()
			outputCache = redisClient
			redisHealth = redisClient
		}
	}

	mapper := sidra.NewMapper()
	sidraClient := sidra.NewClient(
		cfg.Sidra.BaseURL,
		time.Duration(cfg.Sidra.TimeoutSec)*time.Second,
		fileCache,
		cfg.Sidra.MaxAttempts,
	)

	trendsClient := trends.NewClient(trends.Config{
		BaseURL:      cfg.Trends.BaseURL,
		Timeout:      time.Duration(cfg.Trends.TimeoutSec) * time.Second,
		MaxKeywords:  cfg.Trends.MaxKeywords,
		MinDelay:     time.Duration(cfg.Trends.MinDelayMs) * time.Millisecond,
		MaxDelay:     time.Duration(cfg.Trends.MaxDelayMs) * time.Millisecond,
		RetryMin:     time.Duration(cfg.Trends.RetryMinSec) * time.Second,
		RetryMax:     time.Duration(cfg.Trends.RetryMaxSec) * time.Second,
		MaxAttempts:  cfg.Trends.MaxAttempts,
		FailureLimit: uint32(cfg.Trends.FailureLimit),
		Cooldown:     time.Duration(cfg.Trends.CooldownSec) * time.Second,
	})

	newsScraper := news.NewScraper(
		cfg.News.Sources,
		time.Duration(cfg.News.TimeoutSec)*time.Second,
		time.Duration(cfg.News.MinDelayMs)*time.Millisecond,
	)

	pofProvider := psycho.NewPOFProvider(sidraClient, mapper, psycho.NewMemoryStore())
	analyzer := psycho.NewAnalyzer(pofProvider, psycho.NewMemoryStore())

	orchestrator := etl.NewOrchestrator(
		mapper,
		sidraClient,
		trendsClient,
		newsScraper,
		analyzer,
		outputCache,
		sqliteClient,
		etl.Options{
			Workers:    cfg.ETL.Workers,
			Timeout:    time.Duration(cfg.ETL.TimeoutSec) * time.Second,
			MarketSize: cfg.ETL.MarketSize,
			GrowthRate: cfg.ETL.GrowthRate,
		},
	)

	progressHub := handlers.NewProgressHub()
	orchestrator.Progress = progressHub.Publish

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))

	limiter := ratelimit.New(ratelimit.Config{Logger: appLogger.Log})
	defer limiter.Stop()
	app.Use(limiter.Middleware())
	app.Use(validation.Middleware(validation.Config{Logger: appLogger.Log}))

	analyzeHandler := handlers.NewAnalyzeHandler(orchestrator, sqliteClient)
	keywordsHandler := handlers.NewKeywordsHandler(trendsClient)

	api := app.Group("/api/v1")

	api.Post("/analyze", analyzeHandler.HandleAnalyze)
	api.Get("/analyses", analyzeHandler.ListAnalyses)
	api.Get("/analyses/:id", analyzeHandler.GetAnalysis)
	api.Get("/keywords/suggest", keywordsHandler.SuggestKeywords)

	api.Get("/health", func(c *fiber.Ctx) error {
		components := fiber.Map{
			"sqlite":    "up",
			"redis":     "disabled",
			"cache_dir": "up",
		}
		status := "healthy"
		if err := sqliteClient.Ping(); err != nil {
			components["sqlite"] = "down"
			status = "degraded"
		}
		if redisHealth != nil {
			components["redis"] = "up"
			if err := redisHealth.Ping(c.Context()); err != nil {
				components["redis"] = "down"
				status = "degraded"
			}
		}
		if _, err := os.Stat(cfg.Cache.Dir); err != nil {
			components["cache_dir"] = "down"
			status = "degraded"
		}
		return c.JSON(fiber.Map{
			"status":     status,
			"components": components,
			"time":       time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ready",
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/progress/:id", websocket.New(progressHub.HandleConnection))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
