package handlers

import (
	"errors"
	"net/http"

	"github.com/flowra-dev/flowra/db"
	"github.com/flowra-dev/flowra/internal/models"
	"github.com/flowra-dev/flowra/internal/services"
	"github.com/flowra-dev/flowra/internal/types"
	"github.com/flowra-dev/flowra/internal/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GetDiscordSettings shows the webhook URL to admins only; members just see
// whether one is configured.
func (h *Handler) GetDiscordSettings(ctx *gin.Context) {
	access, ok := h.teamAccess(ctx, models.RoleMember)
	if !ok {
		return
	}

	utils.RespondOK(ctx, http.StatusOK, toDiscordSettingsResponse(access.Team, access.IsAdmin()))
}

func (h *Handler) UpdateDiscordSettings(ctx *gin.Context) {
	access, ok := h.teamAccess(ctx, models.RoleAdmin)
	if !ok {
		return
	}

	var body types.DiscordSettingsRequest
	if !utils.BindJSON(ctx, &body) {
		return
	}

	if body.Enabled && body.WebhookURL == "" {
		utils.RespondError(ctx, http.StatusBadRequest, "A webhook URL is required to enable Discord")
		return
	}

	updates := map[string]interface{}{
		"discord_webhook": body.WebhookURL,
		"discord_enabled": body.Enabled,
	}

	if body.ReminderHoursBefore != nil {
		updates["reminder_hours_before"] = *body.ReminderHoursBefore
	}

	if body.DigestHour != nil {
		updates["digest_hour"] = *body.DigestHour
	}

	if err := db.DB.WithContext(ctx).Model(&access.Team).Updates(updates).Error; err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	if err := db.DB.WithContext(ctx).First(&access.Team, access.Team.ID).Error; err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	h.logger.Info("discord settings updated",
		zap.Uint("team_id", access.Team.ID),
		zap.Bool("enabled", access.Team.DiscordEnabled),
	)

	h.hub.BroadcastRefresh(access.Team.ID, types.ResourceTeam)

	utils.RespondOK(ctx, http.StatusOK, toDiscordSettingsResponse(access.Team, true))
}

func (h *Handler) TestDiscordWebhook(ctx *gin.Context) {
	access, ok := h.teamAccess(ctx, models.RoleAdmin)
	if !ok {
		return
	}

	if err := h.discord.Test(ctx, access.Team); err != nil {
		if errors.Is(err, types.ErrDiscordDisabled) {
			utils.RespondError(ctx, http.StatusBadRequest, "No Discord webhook configured")
			return
		}

		h.logger.Warn("discord test failed", zap.Uint("team_id", access.Team.ID), zap.Error(err))
		utils.RespondError(ctx, http.StatusBadGateway, "Discord rejected the test message")
		return
	}

	utils.RespondOK(ctx, http.StatusOK, gin.H{"sent": true})
}

func (h *Handler) DiscordCommands(ctx *gin.Context) {
	utils.RespondOK(ctx, http.StatusOK, services.SlashCommands())
}
