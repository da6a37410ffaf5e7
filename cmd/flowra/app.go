package main

import (
	"context"
	"fmt"

	"github.com/flowra-dev/flowra/db"
	"github.com/flowra-dev/flowra/internal/auth"
	"github.com/flowra-dev/flowra/internal/scheduler"
	"github.com/flowra-dev/flowra/internal/services"
	"github.com/flowra-dev/flowra/internal/types"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// app holds the long-lived services shared by every subcommand.
type app struct {
	notifier  *services.Notifier
	discord   *services.DiscordClient
	scheduler *scheduler.Scheduler
}

func connectDatabase() error {
	level := gormlogger.Warn
	if cfg.LogLevel == "debug" {
		level = gormlogger.Info
	}

	if err := db.ConnectDatabase(cfg.Database.URL, db.Options{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		LogLevel:        level,
	}); err != nil {
		return err
	}

	if err := db.MigrateDatabase(); err != nil {
		return err
	}

	logger.Info("database ready")
	return nil
}

func newApp(ctx context.Context) (*app, error) {
	if err := connectDatabase(); err != nil {
		return nil, err
	}

	if err := db.Ping(ctx); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	if err := auth.InitJWTSecret(cfg.Auth.JWTSecret); err != nil {
		return nil, err
	}

	types.RegisterValidators()

	var push services.PushSender
	if sender := services.NewWebPushSender(cfg.Push); sender != nil {
		push = sender
	} else {
		logger.Info("web push disabled, VAPID keys not configured")
	}

	notifier := services.NewNotifier(push, cfg.ClientURL, logger)
	discord := services.NewDiscordClient(cfg.Discord.Username, cfg.Discord.AvatarURL, cfg.ClientURL)
	sched := scheduler.NewScheduler(notifier, discord, cfg.Scheduler.Interval, logger)

	return &app{notifier: notifier, discord: discord, scheduler: sched}, nil
}

func (a *app) close() {
	a.scheduler.Stop()

	if err := db.Close(); err != nil {
		logger.Warn("failed to close database", zap.Error(err))
	}
}
