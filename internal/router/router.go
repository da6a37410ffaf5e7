package router

import (
	"time"

	"github.com/flowra-dev/flowra/internal/config"
	"github.com/flowra-dev/flowra/internal/handlers"
	"github.com/flowra-dev/flowra/internal/logging"
	"github.com/flowra-dev/flowra/internal/middleware"
	"github.com/flowra-dev/flowra/internal/ratelimit"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const authRateWindow = time.Minute

func NewRouter(cfg *config.Config, h *handlers.Handler, limiter ratelimit.Limiter, logger *zap.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(logging.RequestLogger(logger))
	r.Use(logging.Recovery(logger))

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", "X-Requested-With", "X-Cron-Secret", logging.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", logging.RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	requireAuth := middleware.AuthMiddleware()
	authLimit := middleware.RateLimit(limiter, "auth", cfg.RateLimit.AuthLimit, authRateWindow)

	api := r.Group("/api")
	{
		api.GET("/health", h.HealthCheck)
		api.GET("/ws/:team_id", requireAuth, h.WebSocket)

		auth := api.Group("/auth")
		{
			auth.POST("/register", authLimit, h.Register)
			auth.POST("/login", authLimit, h.Login)
			auth.POST("/logout", h.Logout)
			auth.GET("/me", requireAuth, h.Me)
			auth.PATCH("/me", requireAuth, h.UpdateMe)
			auth.DELETE("/me", requireAuth, h.DeleteMe)
			auth.GET("/oauth/:provider", authLimit, h.OAuthStart)
			auth.GET("/oauth/:provider/callback", authLimit, h.OAuthCallback)
		}

		teams := api.Group("/teams", requireAuth)
		{
			teams.POST("", h.CreateTeam)
			teams.GET("", h.ListTeams)
			teams.GET("/:team_id", h.GetTeam)
			teams.PATCH("/:team_id", h.UpdateTeam)
			teams.DELETE("/:team_id", h.DeleteTeam)
			teams.GET("/:team_id/dashboard", h.GetDashboard)

			teams.GET("/:team_id/members", h.ListMembers)
			teams.POST("/:team_id/members", h.AddMember)
			teams.PATCH("/:team_id/members/:user_id", h.UpdateMemberRole)
			teams.DELETE("/:team_id/members/:user_id", h.RemoveMember)

			teams.POST("/:team_id/projects", h.CreateProject)
			teams.GET("/:team_id/projects", h.ListProjects)

			teams.GET("/:team_id/discord", h.GetDiscordSettings)
			teams.PUT("/:team_id/discord", h.UpdateDiscordSettings)
			teams.POST("/:team_id/discord/test", h.TestDiscordWebhook)
		}

		projects := api.Group("/projects", requireAuth)
		{
			projects.GET("/:project_id", h.GetProject)
			projects.PATCH("/:project_id", h.UpdateProject)
			projects.DELETE("/:project_id", h.DeleteProject)
		}

		tasks := api.Group("/tasks", requireAuth)
		{
			tasks.POST("", h.CreateTask)
			tasks.GET("", h.ListTasks)
			tasks.GET("/calendar", h.TaskCalendar)
			tasks.GET("/:task_id", h.GetTask)
			tasks.PATCH("/:task_id", h.UpdateTask)
			tasks.DELETE("/:task_id", h.DeleteTask)
			tasks.PATCH("/:task_id/status", h.UpdateTaskStatus)
			tasks.GET("/:task_id/comments", h.ListComments)
			tasks.POST("/:task_id/comments", h.CreateComment)
		}

		comments := api.Group("/comments", requireAuth)
		{
			comments.PATCH("/:comment_id", h.UpdateComment)
			comments.DELETE("/:comment_id", h.DeleteComment)
		}

		notifications := api.Group("/notifications", requireAuth)
		{
			notifications.GET("", h.ListNotifications)
			notifications.GET("/unread-count", h.UnreadCount)
			notifications.POST("/read-all", h.MarkAllNotificationsRead)
			notifications.GET("/preferences", h.GetPreferences)
			notifications.PUT("/preferences", h.UpdatePreferences)
			notifications.PATCH("/:notification_id/read", h.MarkNotificationRead)
			notifications.DELETE("/:notification_id", h.DeleteNotification)
		}

		push := api.Group("/push")
		{
			push.GET("/vapid-public-key", h.VAPIDPublicKey)
			push.POST("/subscriptions", requireAuth, h.Subscribe)
			push.DELETE("/subscriptions", requireAuth, h.Unsubscribe)
		}

		api.GET("/discord/commands", h.DiscordCommands)

		sched := api.Group("/scheduler", middleware.CronSecret(cfg.Auth.CronSecret))
		{
			sched.GET("/status", h.SchedulerStatus)
			sched.POST("/start", h.StartScheduler)
			sched.POST("/stop", h.StopScheduler)
			sched.POST("/tick", h.TickScheduler)
			sched.POST("/run-all", h.RunAllScheduler)
		}
	}

	return r
}
