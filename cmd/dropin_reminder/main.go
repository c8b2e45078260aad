package main

import (
	"context"
	"time"

	"masterboxer.com/vibe-feed/config"
	"masterboxer.com/vibe-feed/database"
	"masterboxer.com/vibe-feed/handlers"
	"masterboxer.com/vibe-feed/logging"
	"masterboxer.com/vibe-feed/services"
	"masterboxer.com/vibe-feed/store"
)

func main() {
	logger := logging.NewWithService("dropin-reminder")
	cfg := config.Load(logger)
	handlers.SetLogger(logger)

	if cfg.Firebase.CredentialsPath == "" {
		logger.Fatal("FIREBASE_CREDENTIALS_PATH not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	client, err := services.InitFirebase(ctx, cfg.Firebase.CredentialsPath, logger)
	if err != nil {
		logger.WithError(err).Fatal("DropInReminder: Firebase init failed")
	}

	db, err := database.Connect(ctx, database.DefaultConfig(cfg.Database.URL), logger)
	if err != nil {
		logger.WithError(err).Fatal("DropInReminder: DB connection failed")
	}
	defer db.Close()

	st := store.New(db)
	notifier := services.NewFCMNotifier(client, st, logger)

	logger.Info("⏰ Running drop-in reminder job")
	window := handlers.DropInWindow{Lead: cfg.DropIn.Lead, Interval: cfg.DropIn.Interval}
	if _, err := handlers.SendDropInReminders(ctx, st, notifier, window, time.Now()); err != nil {
		logger.WithError(err).Error("Drop-in reminder job failed")
		return
	}
	logger.Info("✅ Drop-in reminder job finished")
}
