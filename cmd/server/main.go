package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"masterboxer.com/vibe-feed/auth"
	"masterboxer.com/vibe-feed/cache"
	"masterboxer.com/vibe-feed/config"
	"masterboxer.com/vibe-feed/database"
	"masterboxer.com/vibe-feed/handlers"
	"masterboxer.com/vibe-feed/logging"
	"masterboxer.com/vibe-feed/metrics"
	"masterboxer.com/vibe-feed/routes"
	"masterboxer.com/vibe-feed/services"
	"masterboxer.com/vibe-feed/store"
)

func main() {
	logger := logging.NewWithService("vibe-feed")
	cfg := config.Load(logger)
	handlers.SetLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, database.DefaultConfig(cfg.Database.URL), logger)
	if err != nil {
		logger.WithError(err).Fatal("Database connection failed")
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.EnsureSchema(ctx, db); err != nil {
			logger.WithError(err).Fatal("Schema migration failed")
		}
		logger.Info("Schema applied")
	}

	st := store.New(db)
	m := metrics.New("vibe-feed")

	redisClient, err := cache.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password)
	if err != nil {
		logger.WithError(err).Warn("Redis unavailable, serving snapshots straight from Postgres")
	}
	if redisClient != nil {
		defer redisClient.Close()
	}
	snapshots := cache.New(redisClient, cfg.Redis.SnapshotTTL, logger, cache.Hooks{
		OnHit:   m.CacheHit,
		OnMiss:  m.CacheMiss,
		OnError: m.CacheError,
	})

	issuer, err := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		logger.WithError(err).Fatal("JWT_SECRET not set")
	}

	var notifier services.Notifier = services.LogNotifier{Logger: logger}
	if cfg.Firebase.CredentialsPath != "" {
		client, err := services.InitFirebase(ctx, cfg.Firebase.CredentialsPath, logger)
		if err != nil {
			logger.WithError(err).Warn("Firebase init failed, push notifications disabled")
		} else {
			notifier = services.NewFCMNotifier(client, st, logger)
		}
	}

	feedSvc := services.NewFeedService(st, snapshots, m, logger, services.FeedOptions{
		Policy:   cfg.Feed.Policy(),
		Window:   cfg.Feed.SnapshotWindow,
		Founders: cfg.Feed.Founders,
	})

	app := &handlers.App{
		Posts:    st,
		Users:    st,
		Feed:     feedSvc,
		Notifier: notifier,
		Issuer:   issuer,
		Metrics:  m,
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           routes.NewRouter(app, db),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.WithField("port", cfg.Port).Info("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed")
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Graceful shutdown failed")
	}
}
