package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/oksasatya/perfume-storefront/config"
	"github.com/oksasatya/perfume-storefront/internal/container"
	"github.com/oksasatya/perfume-storefront/internal/infrastructure/mongodb"
	"github.com/oksasatya/perfume-storefront/internal/infrastructure/postgres"
	"github.com/oksasatya/perfume-storefront/internal/infrastructure/publisher"
	"github.com/oksasatya/perfume-storefront/internal/interface/middleware"
	"github.com/oksasatya/perfume-storefront/internal/router"
	"github.com/oksasatya/perfume-storefront/pkg/helpers"
	"github.com/oksasatya/perfume-storefront/pkg/validation"
)

func main() {
	_ = godotenv.Load() // load .env if present

	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName, cfg.Env, helpers.LogOptions{
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	})
	gin.SetMode(cfg.GinMode)

	if err := postgres.RunMigrations(cfg.PostgresDSN(), cfg.MigrationsDir, logger); err != nil {
		logger.WithError(err).Fatal("migration failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cleanup, err := container.Bootstrap(ctx, cfg, logger)
	defer cleanup()
	if err != nil {
		logger.WithError(err).Fatal("bootstrap failed")
	}
	validation.Init()

	if services := container.GetServices(); services.ProductIndex != nil {
		if err := services.ProductIndex.EnsureIndex(ctx); err != nil {
			logger.WithError(err).Warn("elasticsearch index check failed")
		}
	}

	// Order events leave through the outbox; without brokers they stay queued in MongoDB.
	if brokers := cfg.KafkaBrokerList(); len(brokers) > 0 {
		outbox := mongodb.NewOutboxRepository(container.GetMongo())
		poller := publisher.NewOutboxPoller(outbox, cfg.KafkaOrderTopic, logger, brokers...)
		go poller.Run(ctx)
	} else {
		logger.Info("KAFKA_BROKERS not set; order events stay in the outbox")
	}

	r := gin.New()
	if err := middleware.ConfigureClientIP(r, cfg.TrustedProxyList(), cfg.TrustedPlatform); err != nil {
		logger.WithError(err).Fatal("invalid TRUSTED_PROXIES")
	}
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.RealIP())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	if cfg.HTTPLogEnabled {
		r.Use(middleware.AccessLog(logger))
	}
	r.Use(middleware.ErrorHandler(logger))

	reg := router.NewRegistry(r)
	router.InitModules(reg)
	reg.RegisterAll()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Infof("server starting on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("listen: %s", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")
	cancel()

	ctxShutdown, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.WithError(err).Error("server forced to shutdown")
	}
	logger.Info("server exited properly")
}
