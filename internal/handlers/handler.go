package handlers

import (
	"context"
	"time"

	"github.com/flowra-dev/flowra/internal/auth"
	"github.com/flowra-dev/flowra/internal/config"
	"github.com/flowra-dev/flowra/internal/scheduler"
	"github.com/flowra-dev/flowra/internal/services"
	"go.uber.org/zap"
)

// sideEffectTimeout bounds notification and Discord work done after a
// mutation has been committed.
const sideEffectTimeout = 15 * time.Second

type Dependencies struct {
	Config    *config.Config
	Notifier  *services.Notifier
	Discord   *services.DiscordClient
	Scheduler *scheduler.Scheduler
	Providers auth.Providers
	Hub       *Hub
	Logger    *zap.Logger
}

type Handler struct {
	cfg       *config.Config
	notifier  *services.Notifier
	discord   *services.DiscordClient
	scheduler *scheduler.Scheduler
	providers auth.Providers
	hub       *Hub
	logger    *zap.Logger
}

func NewHandler(deps Dependencies) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	hub := deps.Hub
	if hub == nil {
		hub = NewHub(deps.Config.AllowedOrigins, logger)
	}

	return &Handler{
		cfg:       deps.Config,
		notifier:  deps.Notifier,
		discord:   deps.Discord,
		scheduler: deps.Scheduler,
		providers: deps.Providers,
		hub:       hub,
		logger:    logger,
	}
}

// notify delivers ev on a context detached from the request so a client
// hanging up does not cut delivery short.
func (h *Handler) notify(ctx context.Context, ev services.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	if _, err := h.notifier.Notify(ctx, ev); err != nil {
		h.logger.Error("failed to send notification",
			zap.String("type", ev.Type),
			zap.Uint("task_id", ev.TaskID),
			zap.Error(err),
		)
	}
}

// postDiscord runs a Discord call with the same detached context as notify.
// Failures are logged only.
func (h *Handler) postDiscord(ctx context.Context, event string, post func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	if err := post(ctx); err != nil {
		h.logger.Warn("discord post failed", zap.String("event", event), zap.Error(err))
	}
}
