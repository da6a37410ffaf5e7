package handlers

import (
	"net/http"
	"time"

	"github.com/flowra-dev/flowra/db"
	"github.com/flowra-dev/flowra/internal/models"
	"github.com/flowra-dev/flowra/internal/types"
	"github.com/flowra-dev/flowra/internal/utils"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	dashboardRecentComments = 10
	dashboardMyTasks        = 20
)

func (h *Handler) GetDashboard(ctx *gin.Context) {
	access, ok := h.teamAccess(ctx, models.RoleMember)
	if !ok {
		return
	}

	teamID := access.Team.ID
	now := time.Now().UTC()

	tasks := func() *gorm.DB {
		return db.DB.WithContext(ctx).Model(&models.Task{}).Where("team_id = ?", teamID)
	}

	response := types.DashboardResponse{
		Team:       toTeamResponse(access.Team, access.Member.Role),
		ByStatus:   make(map[string]int64, len(models.TaskStatuses)),
		ByPriority: make(map[string]int64, len(models.TaskPriorities)),
	}

	for _, status := range models.TaskStatuses {
		response.ByStatus[status] = 0
	}
	for _, priority := range models.TaskPriorities {
		response.ByPriority[priority] = 0
	}

	var byStatus []struct {
		Status string
		Count  int64
	}
	if err := tasks().Select("status, COUNT(*) AS count").Group("status").Scan(&byStatus).Error; err != nil {
		utils.RespondErr(ctx, err)
		return
	}
	for _, row := range byStatus {
		response.ByStatus[row.Status] = row.Count
		response.Total += row.Count
	}

	var byPriority []struct {
		Priority string
		Count    int64
	}
	if err := tasks().Select("priority, COUNT(*) AS count").Group("priority").Scan(&byPriority).Error; err != nil {
		utils.RespondErr(ctx, err)
		return
	}
	for _, row := range byPriority {
		response.ByPriority[row.Priority] = row.Count
	}

	if err := tasks().
		Where("status <> ? AND due_date < ?", models.TaskStatusDone, now).
		Count(&response.Overdue).Error; err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	if err := tasks().
		Where("status <> ? AND due_date >= ? AND due_date < ?", models.TaskStatusDone, now, now.AddDate(0, 0, 7)).
		Count(&response.DueThisWeek).Error; err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	var mine []models.Task
	if err := db.DB.WithContext(ctx).
		Preload("Tags").
		Preload("Assignee").
		Where("team_id = ? AND assignee_id = ? AND status <> ?", teamID, access.Member.UserID, models.TaskStatusDone).
		Order("due_date IS NULL, due_date ASC, created_at ASC").
		Limit(dashboardMyTasks).
		Find(&mine).Error; err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	myTasks, err := toTaskResponses(ctx, mine)
	if err != nil {
		utils.RespondErr(ctx, err)
		return
	}
	response.MyOpenTasks = myTasks

	var comments []models.TaskComment
	if err := db.DB.WithContext(ctx).
		Preload("Author").
		Joins("JOIN tasks ON tasks.id = task_comments.task_id AND tasks.deleted_at IS NULL").
		Where("tasks.team_id = ?", teamID).
		Order("task_comments.created_at DESC").
		Limit(dashboardRecentComments).
		Find(&comments).Error; err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	response.RecentComments = make([]types.CommentResponse, 0, len(comments))
	for _, c := range comments {
		response.RecentComments = append(response.RecentComments, toCommentResponse(c))
	}

	utils.RespondOK(ctx, http.StatusOK, response)
}
