package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/partslane/vendord/internal/api"
	"github.com/partslane/vendord/internal/config"
	"github.com/partslane/vendord/internal/database"
	"github.com/partslane/vendord/internal/scrape"
	"github.com/partslane/vendord/internal/search"
	"github.com/partslane/vendord/internal/vendors"
)

const (
	scrapeLockKey = "vendord:scrape:lock"
	scrapeRunsKey = "vendord:scrape:runs"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(ctx, database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: int32(cfg.Database.MaxConns),
		MinConns: int32(cfg.Database.MinConns),
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}

	engine := search.NewMeili(cfg.Search.Host, cfg.Search.APIKey)
	if err := engine.Health(ctx); err != nil {
		logger.Warn("meilisearch is unreachable at startup", "host", cfg.Search.Host, "error", err)
	}

	vendorStore := database.NewVendorStore(db)
	cacheStore := database.NewCacheStore(db)

	httpClient := &http.Client{Timeout: cfg.Scrape.HTTPTimeout}
	router := vendors.NewRouter(vendorStore, httpClient, logger)

	lookup := scrape.NewService(router, cacheStore, logger)
	sync := search.NewSync(cacheStore, vendorStore, engine, cfg.Search.Index, logger)

	bulk := scrape.NewBulk(
		vendorStore,
		cacheStore,
		router,
		scrape.NewRedisLock(redisClient, scrapeLockKey),
		scrape.SyncerFunc(func(ctx context.Context) error {
			_, err := sync.Run(ctx)
			return err
		}),
		logger,
		scrape.BulkOptions{
			PageDelay:     cfg.Scrape.PageDelay,
			InsertDelay:   cfg.Scrape.InsertDelay,
			VendorTimeout: cfg.Scrape.VendorTimeout,
			LockTTL:       cfg.Scrape.LockTTL,
		},
	).WithEvents(scrape.NewRunEvents(redisClient, scrapeRunsKey))

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Scrape.CronSpec, func() {
		if _, err := bulk.Run(ctx); err != nil {
			logger.Error("scheduled scrape run failed", "error", err)
		}
	}); err != nil {
		logger.Error("invalid scrape cron spec", "spec", cfg.Scrape.CronSpec, "error", err)
		os.Exit(1)
	}
	scheduler.Start()
	defer scheduler.Stop()

	handlers := api.NewHandlers(
		lookup,
		bulk,
		sync,
		api.PingFunc(db.Ping),
		api.PingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }),
		logger,
	)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://localhost:*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	handlers.Routes(r)

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("server starting", "addr", server.Addr, "scrape_cron", cfg.Scrape.CronSpec)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
