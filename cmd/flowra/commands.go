package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flowra-dev/flowra/internal/auth"
	"github.com/flowra-dev/flowra/internal/handlers"
	"github.com/flowra-dev/flowra/internal/ratelimit"
	"github.com/flowra-dev/flowra/internal/router"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the reminder scheduler",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update database tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		return connectDatabase()
	},
}

var remindersCmd = &cobra.Command{
	Use:   "reminders",
	Short: "Run reminder jobs once, for use from an external cron",
}

var remindersTickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Send pending due-soon and overdue reminders",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(cmd.Context(), func(ctx context.Context, a *app) (any, error) {
			return a.scheduler.TickReminders(ctx)
		})
	},
}

var remindersRunAllCmd = &cobra.Command{
	Use:   "run-all",
	Short: "Send pending reminders and a digest to every Discord-enabled team",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(cmd.Context(), func(ctx context.Context, a *app) (any, error) {
			return a.scheduler.RunAllNow(ctx)
		})
	},
}

func init() {
	remindersCmd.AddCommand(remindersTickCmd)
	remindersCmd.AddCommand(remindersRunAllCmd)
}

func runOnce(ctx context.Context, job func(context.Context, *app) (any, error)) error {
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	result, err := job(ctx, a)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	var limiter ratelimit.Limiter = ratelimit.NewMemoryLimiter()
	if cfg.RateLimit.RedisURL != "" {
		redisLimiter, err := ratelimit.NewRedisLimiter(ctx, cfg.RateLimit.RedisURL)
		if err != nil {
			logger.Warn("redis unavailable, using in-memory rate limiting", zap.Error(err))
		} else {
			limiter = redisLimiter
		}
	}
	defer limiter.Close()

	providers := auth.NewProviders(cfg.PublicURL,
		auth.ProviderCredentials{ClientID: cfg.OAuth.Google.ClientID, ClientSecret: cfg.OAuth.Google.ClientSecret},
		auth.ProviderCredentials{ClientID: cfg.OAuth.Kakao.ClientID, ClientSecret: cfg.OAuth.Kakao.ClientSecret},
	)

	h := handlers.NewHandler(handlers.Dependencies{
		Config:    cfg,
		Notifier:  a.notifier,
		Discord:   a.discord,
		Scheduler: a.scheduler,
		Providers: providers,
		Hub:       handlers.NewHub(cfg.AllowedOrigins, logger),
		Logger:    logger,
	})

	if cfg.Scheduler.AutoStart {
		if err := a.scheduler.Start(); err != nil {
			return err
		}
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.NewRouter(cfg, h, limiter, logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("port", cfg.Port), zap.String("environment", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
	return nil
}
