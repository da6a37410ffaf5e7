package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/flowra-dev/flowra/db"
	"github.com/flowra-dev/flowra/internal/models"
	"github.com/flowra-dev/flowra/internal/services"
	"github.com/flowra-dev/flowra/internal/types"
	"github.com/flowra-dev/flowra/internal/utils"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func (h *Handler) ListComments(ctx *gin.Context) {
	task, _, ok := h.taskAccess(ctx, models.RoleMember)
	if !ok {
		return
	}

	var comments []models.TaskComment
	if err := db.DB.WithContext(ctx).
		Preload("Author").
		Where("task_id = ?", task.ID).
		Order("created_at ASC").
		Find(&comments).Error; err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	response := make([]types.CommentResponse, 0, len(comments))
	for _, c := range comments {
		response = append(response, toCommentResponse(c))
	}

	utils.RespondOK(ctx, http.StatusOK, response)
}

func (h *Handler) CreateComment(ctx *gin.Context) {
	task, access, ok := h.taskAccess(ctx, models.RoleMember)
	if !ok {
		return
	}

	actor, _ := utils.GetCurrentUser(ctx)

	var body types.CommentRequest
	if !utils.BindJSON(ctx, &body) {
		return
	}

	content := strings.TrimSpace(body.Content)
	if content == "" {
		utils.RespondError(ctx, http.StatusBadRequest, "Comment cannot be empty")
		return
	}

	comment := models.TaskComment{TaskID: task.ID, AuthorID: actor.ID, Content: content}
	if err := db.DB.WithContext(ctx).Create(&comment).Error; err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	if err := db.DB.WithContext(ctx).First(&comment.Author, actor.ID).Error; err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	recipients := []uint{task.CreatorID}
	if task.AssigneeID != nil {
		recipients = append(recipients, *task.AssigneeID)
	}

	h.notify(ctx, services.Event{
		Type:       models.NotificationTaskCommented,
		TeamID:     task.TeamID,
		TaskID:     task.ID,
		ActorID:    actor.ID,
		Recipients: recipients,
		Title:      "New comment",
		Message:    fmt.Sprintf("%s commented on %q", actor.Name, task.Title),
		Data:       map[string]any{"task_id": task.ID, "team_id": task.TeamID, "comment_id": comment.ID},
	})

	h.postDiscord(ctx, "task_commented", func(c context.Context) error {
		return h.discord.TaskCommented(c, access.Team, *task, actor.Name, content)
	})

	h.hub.BroadcastRefresh(task.TeamID, types.ResourceComments)

	utils.RespondOK(ctx, http.StatusCreated, toCommentResponse(comment))
}

func (h *Handler) UpdateComment(ctx *gin.Context) {
	comment, _, ok := h.commentAccess(ctx)
	if !ok {
		return
	}

	actorID, _ := utils.GetCurrentUserID(ctx)
	if comment.AuthorID != actorID {
		utils.RespondErr(ctx, types.Forbidden("Only the author can edit this comment"))
		return
	}

	var body types.CommentRequest
	if !utils.BindJSON(ctx, &body) {
		return
	}

	content := strings.TrimSpace(body.Content)
	if content == "" {
		utils.RespondError(ctx, http.StatusBadRequest, "Comment cannot be empty")
		return
	}

	if err := db.DB.WithContext(ctx).Model(comment).Update("content", content).Error; err != nil {
		utils.RespondErr(ctx, err)
		return
	}
	comment.Content = content

	h.hub.BroadcastRefresh(comment.Task.TeamID, types.ResourceComments)

	utils.RespondOK(ctx, http.StatusOK, toCommentResponse(*comment))
}

func (h *Handler) DeleteComment(ctx *gin.Context) {
	comment, access, ok := h.commentAccess(ctx)
	if !ok {
		return
	}

	if comment.AuthorID != access.Member.UserID && !access.IsAdmin() {
		utils.RespondErr(ctx, types.Forbidden("Only the author or a team admin can delete this comment"))
		return
	}

	if err := db.DB.WithContext(ctx).Delete(comment).Error; err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	h.hub.BroadcastRefresh(comment.Task.TeamID, types.ResourceComments)

	utils.RespondOK(ctx, http.StatusOK, nil)
}

// commentAccess loads :comment_id with its task and author and checks the
// caller belongs to the task's team.
func (h *Handler) commentAccess(ctx *gin.Context) (*models.TaskComment, *utils.TeamAccess, bool) {
	userID, ok := utils.MustUserID(ctx)
	if !ok {
		return nil, nil, false
	}

	commentID, err := utils.GetUintParam(ctx, "comment_id")
	if err != nil {
		utils.RespondErr(ctx, err)
		return nil, nil, false
	}

	var comment models.TaskComment
	if err := db.DB.WithContext(ctx).Preload("Task").Preload("Author").First(&comment, commentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondError(ctx, http.StatusNotFound, "Comment not found")
			return nil, nil, false
		}
		utils.RespondErr(ctx, err)
		return nil, nil, false
	}

	if comment.Task.ID == 0 {
		utils.RespondError(ctx, http.StatusNotFound, "Comment not found")
		return nil, nil, false
	}

	access, err := utils.RequireTeamRole(ctx, comment.Task.TeamID, userID, models.RoleMember)
	if err != nil {
		utils.RespondErr(ctx, err)
		return nil, nil, false
	}

	return &comment, access, true
}
