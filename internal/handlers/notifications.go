package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/flowra-dev/flowra/db"
	"github.com/flowra-dev/flowra/internal/models"
	"github.com/flowra-dev/flowra/internal/types"
	"github.com/flowra-dev/flowra/internal/utils"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func (h *Handler) ListNotifications(ctx *gin.Context) {
	userID, ok := utils.MustUserID(ctx)
	if !ok {
		return
	}

	limit, offset, err := utils.Pagination(ctx, types.DefaultNotificationLimit, types.MaxNotificationLimit)
	if err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	query := db.DB.WithContext(ctx).Where("user_id = ?", userID)
	if ctx.Query("unread") == "true" {
		query = query.Where("read_at IS NULL")
	}

	var notifications []models.Notification
	if err := query.Order("created_at DESC").Order("id DESC").Limit(limit).Offset(offset).Find(&notifications).Error; err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	response := make([]types.NotificationResponse, 0, len(notifications))
	for _, n := range notifications {
		response = append(response, toNotificationResponse(n))
	}

	utils.RespondOK(ctx, http.StatusOK, response)
}

func (h *Handler) UnreadCount(ctx *gin.Context) {
	userID, ok := utils.MustUserID(ctx)
	if !ok {
		return
	}

	var count int64
	if err := db.DB.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Count(&count).Error; err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	utils.RespondOK(ctx, http.StatusOK, gin.H{"count": count})
}

func (h *Handler) MarkNotificationRead(ctx *gin.Context) {
	notification, ok := h.ownNotification(ctx)
	if !ok {
		return
	}

	if notification.ReadAt == nil {
		now := time.Now().UTC()
		if err := db.DB.WithContext(ctx).Model(notification).Update("read_at", now).Error; err != nil {
			utils.RespondErr(ctx, err)
			return
		}
		notification.ReadAt = &now
	}

	utils.RespondOK(ctx, http.StatusOK, toNotificationResponse(*notification))
}

func (h *Handler) MarkAllNotificationsRead(ctx *gin.Context) {
	userID, ok := utils.MustUserID(ctx)
	if !ok {
		return
	}

	result := db.DB.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Update("read_at", time.Now().UTC())

	if result.Error != nil {
		utils.RespondErr(ctx, result.Error)
		return
	}

	utils.RespondOK(ctx, http.StatusOK, gin.H{"updated": result.RowsAffected})
}

func (h *Handler) DeleteNotification(ctx *gin.Context) {
	notification, ok := h.ownNotification(ctx)
	if !ok {
		return
	}

	if err := db.DB.WithContext(ctx).Delete(notification).Error; err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	utils.RespondOK(ctx, http.StatusOK, nil)
}

// ownNotification loads :notification_id, treating other users'
// notifications as missing.
func (h *Handler) ownNotification(ctx *gin.Context) (*models.Notification, bool) {
	userID, ok := utils.MustUserID(ctx)
	if !ok {
		return nil, false
	}

	id, err := utils.GetUintParam(ctx, "notification_id")
	if err != nil {
		utils.RespondErr(ctx, err)
		return nil, false
	}

	var notification models.Notification
	if err := db.DB.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&notification).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondError(ctx, http.StatusNotFound, "Notification not found")
			return nil, false
		}
		utils.RespondErr(ctx, err)
		return nil, false
	}

	return &notification, true
}

func (h *Handler) GetPreferences(ctx *gin.Context) {
	userID, ok := utils.MustUserID(ctx)
	if !ok {
		return
	}

	pref, err := preferencesFor(ctx, userID)
	if err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	utils.RespondOK(ctx, http.StatusOK, toPreferencesResponse(*pref))
}

func (h *Handler) UpdatePreferences(ctx *gin.Context) {
	userID, ok := utils.MustUserID(ctx)
	if !ok {
		return
	}

	var body types.UpdatePreferencesRequest
	if !utils.BindJSON(ctx, &body) {
		return
	}

	pref, err := preferencesFor(ctx, userID)
	if err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	updates := make(map[string]interface{})
	for column, value := range map[string]*bool{
		"in_app":        body.InApp,
		"push":          body.Push,
		"task_assigned": body.TaskAssigned,
		"task_comment":  body.TaskComment,
		"task_status":   body.TaskStatus,
		"due_reminder":  body.DueReminder,
	} {
		if value != nil {
			updates[column] = *value
		}
	}

	if len(updates) > 0 {
		// A map keeps false values that a struct update would skip.
		if err := db.DB.WithContext(ctx).Model(pref).Updates(updates).Error; err != nil {
			utils.RespondErr(ctx, err)
			return
		}

		if err := db.DB.WithContext(ctx).First(pref, pref.ID).Error; err != nil {
			utils.RespondErr(ctx, err)
			return
		}
	}

	utils.RespondOK(ctx, http.StatusOK, toPreferencesResponse(*pref))
}

// preferencesFor returns the stored preferences, creating the defaults on
// first access.
func preferencesFor(ctx *gin.Context, userID uint) (*models.NotificationPreference, error) {
	pref := models.DefaultNotificationPreference(userID)

	err := db.DB.WithContext(ctx).
		Where(models.NotificationPreference{UserID: userID}).
		Attrs(pref).
		FirstOrCreate(&pref).Error

	return &pref, err
}
