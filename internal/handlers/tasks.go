package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/flowra-dev/flowra/db"
	"github.com/flowra-dev/flowra/internal/middleware"
	"github.com/flowra-dev/flowra/internal/models"
	"github.com/flowra-dev/flowra/internal/services"
	"github.com/flowra-dev/flowra/internal/types"
	"github.com/flowra-dev/flowra/internal/utils"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const maxTagLength = 32

// statusOrder sorts the board columns in workflow order.
const statusOrder = "CASE tasks.status WHEN 'todo' THEN 0 WHEN 'in_progress' THEN 1 WHEN 'review' THEN 2 ELSE 3 END"

func (h *Handler) CreateTask(ctx *gin.Context) {
	actor, err := utils.GetCurrentUser(ctx)
	if err != nil {
		utils.RespondError(ctx, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var body types.CreateTaskRequest
	if !utils.BindJSON(ctx, &body) {
		return
	}

	access, err := utils.RequireTeamRole(ctx, body.TeamID, actor.ID, models.RoleMember)
	if err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	title := strings.TrimSpace(body.Title)
	if title == "" {
		utils.RespondError(ctx, http.StatusBadRequest, "Title is required")
		return
	}

	tags, err := normalizeTags(body.Tags)
	if err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	if err := validateTaskRefs(ctx, access.Team.ID, body.ProjectID, body.AssigneeID); err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	task := models.Task{
		TeamID:      access.Team.ID,
		ProjectID:   body.ProjectID,
		CreatorID:   actor.ID,
		AssigneeID:  body.AssigneeID,
		Title:       title,
		Description: body.Description,
		Status:      body.Status,
		Priority:    body.Priority,
		DueDate:     utcPtr(body.DueDate),
	}

	if task.Status == "" {
		task.Status = models.TaskStatusTodo
	}
	if task.Priority == "" {
		task.Priority = models.PriorityMedium
	}
	if task.IsDone() {
		now := time.Now().UTC()
		task.CompletedAt = &now
	}

	err = db.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		position, err := nextPosition(tx, task.TeamID, task.Status)
		if err != nil {
			return err
		}
		task.Position = position

		if err := tx.Create(&task).Error; err != nil {
			return err
		}

		return replaceTags(tx, task.ID, tags)
	})

	if err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	created, err := loadTask(ctx, task.ID)
	if err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	if created.AssigneeID != nil {
		h.notifyAssigned(ctx, access.Team, *created, actor)
	}

	h.postDiscord(ctx, "task_created", func(c context.Context) error {
		return h.discord.TaskCreated(c, access.Team, *created, actor.Name)
	})

	h.hub.BroadcastRefresh(access.Team.ID, types.ResourceTasks)

	utils.RespondOK(ctx, http.StatusCreated, toTaskResponse(*created, 0))
}

func (h *Handler) ListTasks(ctx *gin.Context) {
	userID, ok := utils.MustUserID(ctx)
	if !ok {
		return
	}

	teamID, err := utils.GetUintQuery(ctx, "team_id")
	if err != nil {
		utils.RespondErr(ctx, err)
		return
	}
	if teamID == 0 {
		utils.RespondError(ctx, http.StatusBadRequest, "team_id is required")
		return
	}

	if _, err := utils.RequireTeamRole(ctx, teamID, userID, models.RoleMember); err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	limit, offset, err := utils.Pagination(ctx, types.DefaultTaskLimit, types.MaxTaskLimit)
	if err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	query, err := taskFilters(ctx, teamID, userID)
	if err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	var tasks []models.Task
	if err := query.
		Preload("Tags").
		Preload("Assignee").
		Order(statusOrder).
		Order("tasks.position ASC").
		Order("tasks.created_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&tasks).Error; err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	responses, err := toTaskResponses(ctx, tasks)
	if err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	utils.RespondOK(ctx, http.StatusOK, types.TaskListResponse{
		Tasks:  responses,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

func taskFilters(ctx *gin.Context, teamID, userID uint) (*gorm.DB, error) {
	query := db.DB.WithContext(ctx).Model(&models.Task{}).Where("tasks.team_id = ?", teamID)

	projectID, err := utils.GetUintQuery(ctx, "project_id")
	if err != nil {
		return nil, err
	}
	if projectID != 0 {
		query = query.Where("tasks.project_id = ?", projectID)
	}

	if status := ctx.Query("status"); status != "" {
		statuses := strings.Split(status, ",")
		for _, s := range statuses {
			if !models.ValidTaskStatus(s) {
				return nil, types.BadRequest("Invalid status filter")
			}
		}
		query = query.Where("tasks.status IN ?", statuses)
	}

	if priority := ctx.Query("priority"); priority != "" {
		if !models.ValidTaskPriority(priority) {
			return nil, types.BadRequest("Invalid priority filter")
		}
		query = query.Where("tasks.priority = ?", priority)
	}

	switch assignee := ctx.Query("assignee_id"); assignee {
	case "":
	case "me":
		query = query.Where("tasks.assignee_id = ?", userID)
	case "none":
		query = query.Where("tasks.assignee_id IS NULL")
	default:
		assigneeID, err := utils.GetUintQuery(ctx, "assignee_id")
		if err != nil {
			return nil, err
		}
		query = query.Where("tasks.assignee_id = ?", assigneeID)
	}

	if tag := strings.ToLower(strings.TrimSpace(ctx.Query("tag"))); tag != "" {
		query = query.Where("tasks.id IN (?)", db.DB.Model(&models.TaskTag{}).Select("task_id").Where("name = ?", tag))
	}

	if q := strings.ToLower(strings.TrimSpace(ctx.Query("q"))); q != "" {
		pattern := "%" + escapeLike(q) + "%"
		query = query.Where("(LOWER(tasks.title) LIKE ? ESCAPE '\\' OR LOWER(tasks.description) LIKE ? ESCAPE '\\')", pattern, pattern)
	}

	dueFrom, err := utils.GetTimeQuery(ctx, "due_from")
	if err != nil {
		return nil, err
	}
	if dueFrom != nil {
		query = query.Where("tasks.due_date >= ?", *dueFrom)
	}

	dueTo, err := utils.GetTimeQuery(ctx, "due_to")
	if err != nil {
		return nil, err
	}
	if dueTo != nil {
		query = query.Where("tasks.due_date <= ?", *dueTo)
	}

	return query, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// TaskCalendar groups a team's tasks by UTC due date. The range defaults to
// the current month; a date-only "to" includes that whole day.
func (h *Handler) TaskCalendar(ctx *gin.Context) {
	userID, ok := utils.MustUserID(ctx)
	if !ok {
		return
	}

	teamID, err := utils.GetUintQuery(ctx, "team_id")
	if err != nil {
		utils.RespondErr(ctx, err)
		return
	}
	if teamID == 0 {
		utils.RespondError(ctx, http.StatusBadRequest, "team_id is required")
		return
	}

	if _, err := utils.RequireTeamRole(ctx, teamID, userID, models.RoleMember); err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	now := time.Now().UTC()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	fromParam, err := utils.GetTimeQuery(ctx, "from")
	if err != nil {
		utils.RespondErr(ctx, err)
		return
	}
	toParam, err := utils.GetTimeQuery(ctx, "to")
	if err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	if fromParam != nil {
		from = *fromParam
		if toParam == nil {
			to = from.AddDate(0, 1, 0)
		}
	}
	if toParam != nil {
		to = *toParam
		if len(strings.TrimSpace(ctx.Query("to"))) == len(time.DateOnly) {
			to = to.AddDate(0, 0, 1)
		}
		if fromParam == nil {
			from = to.AddDate(0, -1, 0)
		}
	}

	if !to.After(from) {
		utils.RespondError(ctx, http.StatusBadRequest, "to must be after from")
		return
	}

	if to.Sub(from) > types.MaxCalendarDays*24*time.Hour {
		utils.RespondError(ctx, http.StatusBadRequest, fmt.Sprintf("Range cannot exceed %d days", types.MaxCalendarDays))
		return
	}

	var tasks []models.Task
	if err := db.DB.WithContext(ctx).
		Preload("Tags").
		Preload("Assignee").
		Where("team_id = ? AND due_date >= ? AND due_date < ?", teamID, from, to).
		Order("due_date ASC").
		Find(&tasks).Error; err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	responses, err := toTaskResponses(ctx, tasks)
	if err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	days := make(map[string][]types.TaskResponse)
	for _, task := range responses {
		day := task.DueDate.UTC().Format(time.DateOnly)
		days[day] = append(days[day], task)
	}

	utils.RespondOK(ctx, http.StatusOK, types.CalendarResponse{From: from, To: to, Days: days})
}

func (h *Handler) GetTask(ctx *gin.Context) {
	task, _, ok := h.taskAccess(ctx, models.RoleMember)
	if !ok {
		return
	}

	counts, err := commentCounts(ctx, []models.Task{*task})
	if err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	utils.RespondOK(ctx, http.StatusOK, toTaskResponse(*task, counts[task.ID]))
}

func (h *Handler) UpdateTask(ctx *gin.Context) {
	task, access, ok := h.taskAccess(ctx, models.RoleMember)
	if !ok {
		return
	}

	actor, _ := utils.GetCurrentUser(ctx)

	var body types.UpdateTaskRequest
	if !utils.BindJSON(ctx, &body) {
		return
	}

	if (body.ClearProject && body.ProjectID != nil) ||
		(body.ClearAssignee && body.AssigneeID != nil) ||
		(body.ClearDueDate && body.DueDate != nil) {
		utils.RespondError(ctx, http.StatusBadRequest, "Cannot set and clear the same field")
		return
	}

	if err := validateTaskRefs(ctx, task.TeamID, body.ProjectID, body.AssigneeID); err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	updates := make(map[string]interface{})

	if body.Title != nil {
		title := strings.TrimSpace(*body.Title)
		if title == "" {
			utils.RespondError(ctx, http.StatusBadRequest, "Title cannot be empty")
			return
		}
		updates["title"] = title
	}

	if body.Description != nil {
		updates["description"] = *body.Description
	}

	if body.Priority != nil {
		updates["priority"] = *body.Priority
	}

	switch {
	case body.ClearProject:
		updates["project_id"] = nil
	case body.ProjectID != nil:
		updates["project_id"] = *body.ProjectID
	}

	assigneeChanged := false
	switch {
	case body.ClearAssignee:
		updates["assignee_id"] = nil
		assigneeChanged = task.AssigneeID != nil
	case body.AssigneeID != nil:
		updates["assignee_id"] = *body.AssigneeID
		assigneeChanged = task.AssigneeID == nil || *task.AssigneeID != *body.AssigneeID
	}

	switch {
	case body.ClearDueDate:
		updates["due_date"] = nil
	case body.DueDate != nil:
		updates["due_date"] = body.DueDate.UTC()
	}
	if body.ClearDueDate || body.DueDate != nil {
		updates["reminder_sent_at"] = nil
		updates["overdue_notified_at"] = nil
	}

	var tags []string
	if body.Tags != nil {
		normalized, err := normalizeTags(*body.Tags)
		if err != nil {
			utils.RespondErr(ctx, err)
			return
		}
		tags = normalized
	}

	statusChanged := body.Status != nil && *body.Status != task.Status
	previousStatus := task.Status

	if len(updates) == 0 && body.Tags == nil && body.Status == nil {
		utils.RespondError(ctx, http.StatusBadRequest, "No valid fields to update")
		return
	}

	err := db.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if statusChanged {
			if err := applyStatus(tx, task, *body.Status, nil, updates); err != nil {
				return err
			}
		}

		if len(updates) > 0 {
			if err := tx.Model(&models.Task{}).Where("id = ?", task.ID).Updates(updates).Error; err != nil {
				return err
			}
		}

		if body.Tags != nil {
			return replaceTags(tx, task.ID, tags)
		}

		return nil
	})

	if err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	updated, err := loadTask(ctx, task.ID)
	if err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	if assigneeChanged && updated.AssigneeID != nil {
		h.notifyAssigned(ctx, access.Team, *updated, actor)
	}

	if statusChanged {
		h.notifyStatusChanged(ctx, access.Team, *updated, previousStatus, actor)
	}

	h.hub.BroadcastRefresh(task.TeamID, types.ResourceTasks)

	counts, err := commentCounts(ctx, []models.Task{*updated})
	if err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	utils.RespondOK(ctx, http.StatusOK, toTaskResponse(*updated, counts[updated.ID]))
}

// UpdateTaskStatus moves a task on the board. Without a position the task
// goes to the end of its new column.
func (h *Handler) UpdateTaskStatus(ctx *gin.Context) {
	task, access, ok := h.taskAccess(ctx, models.RoleMember)
	if !ok {
		return
	}

	actor, _ := utils.GetCurrentUser(ctx)

	var body types.UpdateTaskStatusRequest
	if !utils.BindJSON(ctx, &body) {
		return
	}

	previousStatus := task.Status
	statusChanged := body.Status != previousStatus

	if !statusChanged && body.Position == nil {
		utils.RespondOK(ctx, http.StatusOK, toTaskResponse(*task, 0))
		return
	}

	err := db.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := make(map[string]interface{})

		if err := applyStatus(tx, task, body.Status, body.Position, updates); err != nil {
			return err
		}

		return tx.Model(&models.Task{}).Where("id = ?", task.ID).Updates(updates).Error
	})

	if err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	updated, err := loadTask(ctx, task.ID)
	if err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	if statusChanged {
		h.notifyStatusChanged(ctx, access.Team, *updated, previousStatus, actor)
	}

	h.hub.BroadcastRefresh(task.TeamID, types.ResourceTasks)

	counts, err := commentCounts(ctx, []models.Task{*updated})
	if err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	utils.RespondOK(ctx, http.StatusOK, toTaskResponse(*updated, counts[updated.ID]))
}

func (h *Handler) DeleteTask(ctx *gin.Context) {
	task, access, ok := h.taskAccess(ctx, models.RoleMember)
	if !ok {
		return
	}

	if task.CreatorID != access.Member.UserID && !access.IsAdmin() {
		utils.RespondErr(ctx, types.Forbidden("Only the creator or a team admin can delete this task"))
		return
	}

	err := db.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", task.ID).Delete(&models.TaskTag{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("task_id = ?", task.ID).Delete(&models.TaskComment{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&models.Task{}, task.ID).Error
	})

	if err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	h.hub.BroadcastRefresh(task.TeamID, types.ResourceTasks)

	utils.RespondOK(ctx, http.StatusOK, nil)
}

func (h *Handler) taskAccess(ctx *gin.Context, minRole string) (*models.Task, *utils.TeamAccess, bool) {
	userID, ok := utils.MustUserID(ctx)
	if !ok {
		return nil, nil, false
	}

	taskID, err := utils.GetUintParam(ctx, "task_id")
	if err != nil {
		utils.RespondErr(ctx, err)
		return nil, nil, false
	}

	task, access, err := utils.RequireTaskAccess(ctx, taskID, userID, minRole)
	if err != nil {
		utils.RespondErr(ctx, err)
		return nil, nil, false
	}

	return task, access, true
}

func (h *Handler) notifyAssigned(ctx *gin.Context, team models.Team, task models.Task, actor middleware.AuthenticatedUser) {
	h.notify(ctx, services.Event{
		Type:       models.NotificationTaskAssigned,
		TeamID:     team.ID,
		TaskID:     task.ID,
		ActorID:    actor.ID,
		Recipients: []uint{*task.AssigneeID},
		Title:      "New task assigned",
		Message:    fmt.Sprintf("%s assigned you %q", actor.Name, task.Title),
		Data:       map[string]any{"task_id": task.ID, "team_id": team.ID},
	})

	assigneeName := ""
	if task.Assignee != nil {
		assigneeName = task.Assignee.Name
	}

	h.postDiscord(ctx, "task_assigned", func(c context.Context) error {
		return h.discord.TaskAssigned(c, team, task, assigneeName)
	})
}

func (h *Handler) notifyStatusChanged(ctx *gin.Context, team models.Team, task models.Task, from string, actor middleware.AuthenticatedUser) {
	recipients := []uint{task.CreatorID}
	if task.AssigneeID != nil {
		recipients = append(recipients, *task.AssigneeID)
	}

	h.notify(ctx, services.Event{
		Type:       models.NotificationTaskStatusChanged,
		TeamID:     team.ID,
		TaskID:     task.ID,
		ActorID:    actor.ID,
		Recipients: recipients,
		Title:      "Task status changed",
		Message:    fmt.Sprintf("%s moved %q from %s to %s", actor.Name, task.Title, from, task.Status),
		Data:       map[string]any{"task_id": task.ID, "team_id": team.ID, "from": from, "to": task.Status},
	})

	if task.IsDone() {
		h.postDiscord(ctx, "task_completed", func(c context.Context) error {
			return h.discord.TaskCompleted(c, team, task, actor.Name)
		})
	}
}

// applyStatus fills updates for a move to status and, when position is
// given, opens a gap for it in the target column.
func applyStatus(tx *gorm.DB, task *models.Task, status string, position *int, updates map[string]interface{}) error {
	if status != task.Status {
		updates["status"] = status

		if status == models.TaskStatusDone {
			updates["completed_at"] = time.Now().UTC()
		} else if task.Status == models.TaskStatusDone {
			updates["completed_at"] = nil
		}
	}

	if position == nil {
		if status == task.Status {
			return nil
		}

		next, err := nextPosition(tx, task.TeamID, status)
		if err != nil {
			return err
		}
		updates["position"] = next
		return nil
	}

	if err := tx.Model(&models.Task{}).
		Where("team_id = ? AND status = ? AND position >= ? AND id <> ?", task.TeamID, status, *position, task.ID).
		UpdateColumn("position", gorm.Expr("position + 1")).Error; err != nil {
		return err
	}

	updates["position"] = *position
	return nil
}

func nextPosition(tx *gorm.DB, teamID uint, status string) (int, error) {
	var next int

	err := tx.Model(&models.Task{}).
		Select("COALESCE(MAX(position), -1) + 1").
		Where("team_id = ? AND status = ?", teamID, status).
		Scan(&next).Error

	return next, err
}

// normalizeTags trims, lower-cases and de-duplicates tag names.
func normalizeTags(raw []string) ([]string, error) {
	seen := make(map[string]struct{}, len(raw))
	tags := make([]string, 0, len(raw))

	for _, tag := range raw {
		name := strings.ToLower(strings.TrimSpace(tag))

		if name == "" || len([]rune(name)) > maxTagLength {
			return nil, types.BadRequest(fmt.Sprintf("Tags must be 1 to %d characters", maxTagLength))
		}

		if _, dup := seen[name]; dup {
			continue
		}

		seen[name] = struct{}{}
		tags = append(tags, name)
	}

	return tags, nil
}

func replaceTags(tx *gorm.DB, taskID uint, tags []string) error {
	if err := tx.Where("task_id = ?", taskID).Delete(&models.TaskTag{}).Error; err != nil {
		return err
	}

	if len(tags) == 0 {
		return nil
	}

	rows := make([]models.TaskTag, 0, len(tags))
	for _, name := range tags {
		rows = append(rows, models.TaskTag{TaskID: taskID, Name: name})
	}

	return tx.Create(&rows).Error
}

// validateTaskRefs checks that a project and assignee belong to teamID.
func validateTaskRefs(ctx context.Context, teamID uint, projectID, assigneeID *uint) error {
	if projectID != nil {
		var project models.Project
		err := db.DB.WithContext(ctx).Where("id = ? AND team_id = ?", *projectID, teamID).First(&project).Error

		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.BadRequest("Project does not belong to this team")
		}
		if err != nil {
			return err
		}
		if project.Archived {
			return types.BadRequest("Project is archived")
		}
	}

	if assigneeID != nil {
		member, err := utils.IsTeamMember(ctx, teamID, *assigneeID)
		if err != nil {
			return err
		}
		if !member {
			return types.BadRequest("Assignee must be a member of this team")
		}
	}

	return nil
}

func loadTask(ctx context.Context, taskID uint) (*models.Task, error) {
	var task models.Task

	err := db.DB.WithContext(ctx).
		Preload("Tags").
		Preload("Assignee").
		Preload("Project").
		First(&task, taskID).Error

	return &task, err
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
