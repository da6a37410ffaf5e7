package handlers

import (
	"net/http"

	"github.com/flowra-dev/flowra/db"
	"github.com/flowra-dev/flowra/internal/models"
	"github.com/flowra-dev/flowra/internal/types"
	"github.com/flowra-dev/flowra/internal/utils"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm/clause"
)

func (h *Handler) VAPIDPublicKey(ctx *gin.Context) {
	if !h.cfg.Push.Enabled() {
		utils.RespondError(ctx, http.StatusNotFound, "Push notifications are not configured")
		return
	}

	utils.RespondOK(ctx, http.StatusOK, gin.H{"public_key": h.cfg.Push.VAPIDPublicKey})
}

// Subscribe stores a browser push subscription. An endpoint already known
// (possibly under another user after a re-login) moves to the caller.
func (h *Handler) Subscribe(ctx *gin.Context) {
	userID, ok := utils.MustUserID(ctx)
	if !ok {
		return
	}

	var body types.PushSubscriptionRequest
	if !utils.BindJSON(ctx, &body) {
		return
	}

	sub := models.PushSubscription{
		UserID:    userID,
		Endpoint:  body.Endpoint,
		P256dh:    body.Keys.P256dh,
		Auth:      body.Keys.Auth,
		UserAgent: ctx.Request.UserAgent(),
	}

	err := db.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "p256dh", "auth", "user_agent", "updated_at"}),
	}).Create(&sub).Error

	if err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	utils.RespondOK(ctx, http.StatusCreated, gin.H{"endpoint": sub.Endpoint})
}

func (h *Handler) Unsubscribe(ctx *gin.Context) {
	userID, ok := utils.MustUserID(ctx)
	if !ok {
		return
	}

	var body types.PushUnsubscribeRequest
	if !utils.BindJSON(ctx, &body) {
		return
	}

	if err := db.DB.WithContext(ctx).
		Where("user_id = ? AND endpoint = ?", userID, body.Endpoint).
		Delete(&models.PushSubscription{}).Error; err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	utils.RespondOK(ctx, http.StatusOK, nil)
}
