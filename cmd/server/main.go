package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/stockroute/internal/cache"
	"github.com/example/stockroute/internal/config"
	"github.com/example/stockroute/internal/database"
	"github.com/example/stockroute/internal/logger"
	"github.com/example/stockroute/internal/metrics"
	"github.com/example/stockroute/internal/middleware"
	"github.com/example/stockroute/internal/otp"
	"github.com/example/stockroute/internal/routes"
	"github.com/example/stockroute/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Options{ServiceName: "stockroute"}).Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg := logger.New(logger.Options{
		ServiceName: cfg.App.Name,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
	})
	ctx := context.Background()

	db, err := database.Connect(cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to connect database", err)
		os.Exit(1)
	}

	var limiter middleware.WindowLimiter
	var redisClient *cache.Client
	if cfg.Redis.URL != "" {
		redisClient, err = cache.New(ctx, cfg.Redis.URL)
		if err != nil {
			logg.Warn(ctx, "redis unavailable, otp throttling disabled", err)
		} else {
			limiter = redisClient
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	policy := otp.NewPolicy()
	mailer := services.NewSMTPMailer(cfg.Mail)
	telegram := services.NewTelegramService(cfg.Telegram.BotToken, cfg.Telegram.AdminChatID)

	deps := routes.Deps{
		DB:        db,
		Config:    cfg,
		Log:       logg,
		Accounts:  services.NewAccountService(db, policy, mailer, logg, m, cfg.JWT.Secret, cfg.JWT.TTL()),
		Partners:  services.NewPartnerService(db, policy, mailer, telegram, logg, m),
		Inventory: services.NewInventoryService(db, logg),
		Images:    services.NewS3Storage(cfg.Storage),
	}
	if limiter != nil {
		deps.Limiter = limiter
	}

	app := routes.NewApp(deps, m)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	go func() {
		logg.Info(logg.WithField(ctx, "port", cfg.App.Port), "starting server")
		if err := app.Listen(":" + cfg.App.Port); err != nil {
			logg.Error(ctx, "fiber.Listen error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logg.Info(ctx, "shutting down")
	if err := app.ShutdownWithTimeout(cfg.App.ShutdownTimeout); err != nil {
		logg.Error(ctx, "server shutdown failed", err)
	}
	if err := redisClient.Close(); err != nil {
		logg.Warn(ctx, "redis close failed", err)
	}
	if err := database.Close(db); err != nil {
		logg.Warn(ctx, "database close failed", err)
	}
	logg.Info(ctx, "server stopped")
}
