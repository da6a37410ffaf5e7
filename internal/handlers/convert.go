package handlers

import (
	"context"
	"encoding/json"

	"github.com/flowra-dev/flowra/db"
	"github.com/flowra-dev/flowra/internal/models"
	"github.com/flowra-dev/flowra/internal/types"
)

func toUserResponse(user models.User) types.UserResponse {
	return types.UserResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		AvatarURL: user.AvatarURL,
		Provider:  user.Provider,
	}
}

func toTeamResponse(team models.Team, role string) types.TeamResponse {
	return types.TeamResponse{
		ID:                  team.ID,
		Name:                team.Name,
		Description:         team.Description,
		OwnerID:             team.OwnerID,
		Role:                role,
		DiscordEnabled:      team.DiscordEnabled,
		ReminderHoursBefore: team.ReminderHoursBefore,
		DigestHour:          team.DigestHour,
		LastDigestAt:        team.LastDigestAt,
		CreatedAt:           team.CreatedAt,
	}
}

func toProjectResponse(project models.Project) types.ProjectResponse {
	return types.ProjectResponse{
		ID:          project.ID,
		TeamID:      project.TeamID,
		Name:        project.Name,
		Description: project.Description,
		Color:       project.Color,
		Archived:    project.Archived,
		CreatedAt:   project.CreatedAt,
	}
}

func toTaskResponse(task models.Task, commentCount int64) types.TaskResponse {
	tags := make([]string, 0, len(task.Tags))
	for _, tag := range task.Tags {
		tags = append(tags, tag.Name)
	}

	response := types.TaskResponse{
		ID:           task.ID,
		TeamID:       task.TeamID,
		ProjectID:    task.ProjectID,
		CreatorID:    task.CreatorID,
		AssigneeID:   task.AssigneeID,
		Title:        task.Title,
		Description:  task.Description,
		Status:       task.Status,
		Priority:     task.Priority,
		DueDate:      task.DueDate,
		CompletedAt:  task.CompletedAt,
		Position:     task.Position,
		Tags:         tags,
		CommentCount: commentCount,
		CreatedAt:    task.CreatedAt,
		UpdatedAt:    task.UpdatedAt,
	}

	if task.Assignee != nil && task.Assignee.ID != 0 {
		response.Assignee = &types.UserSummary{
			ID:        task.Assignee.ID,
			Name:      task.Assignee.Name,
			AvatarURL: task.Assignee.AvatarURL,
		}
	}

	return response
}

// toTaskResponses converts tasks with their comment counts in one query.
func toTaskResponses(ctx context.Context, tasks []models.Task) ([]types.TaskResponse, error) {
	counts, err := commentCounts(ctx, tasks)
	if err != nil {
		return nil, err
	}

	responses := make([]types.TaskResponse, 0, len(tasks))
	for _, task := range tasks {
		responses = append(responses, toTaskResponse(task, counts[task.ID]))
	}

	return responses, nil
}

func commentCounts(ctx context.Context, tasks []models.Task) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(tasks))
	if len(tasks) == 0 {
		return counts, nil
	}

	ids := make([]uint, 0, len(tasks))
	for _, task := range tasks {
		ids = append(ids, task.ID)
	}

	var rows []struct {
		TaskID uint
		Count  int64
	}

	err := db.DB.WithContext(ctx).
		Model(&models.TaskComment{}).
		Select("task_id, COUNT(*) AS count").
		Where("task_id IN ?", ids).
		Group("task_id").
		Scan(&rows).Error

	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		counts[row.TaskID] = row.Count
	}

	return counts, nil
}

func toCommentResponse(comment models.TaskComment) types.CommentResponse {
	return types.CommentResponse{
		ID:     comment.ID,
		TaskID: comment.TaskID,
		Author: types.UserSummary{
			ID:        comment.Author.ID,
			Name:      comment.Author.Name,
			AvatarURL: comment.Author.AvatarURL,
		},
		Content:   comment.Content,
		CreatedAt: comment.CreatedAt,
		UpdatedAt: comment.UpdatedAt,
	}
}

func toNotificationResponse(n models.Notification) types.NotificationResponse {
	response := types.NotificationResponse{
		ID:        n.ID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		TeamID:    n.TeamID,
		TaskID:    n.TaskID,
		Read:      n.ReadAt != nil,
		ReadAt:    n.ReadAt,
		CreatedAt: n.CreatedAt,
	}

	if len(n.Data) > 0 && string(n.Data) != "null" {
		response.Data = json.RawMessage(n.Data)
	}

	return response
}

func toPreferencesResponse(p models.NotificationPreference) types.PreferencesResponse {
	return types.PreferencesResponse{
		InApp:        p.InApp,
		Push:         p.Push,
		TaskAssigned: p.TaskAssigned,
		TaskComment:  p.TaskComment,
		TaskStatus:   p.TaskStatus,
		DueReminder:  p.DueReminder,
	}
}

func toDiscordSettingsResponse(team models.Team, revealWebhook bool) types.DiscordSettingsResponse {
	response := types.DiscordSettingsResponse{
		TeamID:              team.ID,
		WebhookConfigured:   team.DiscordWebhook != "",
		Enabled:             team.DiscordEnabled,
		ReminderHoursBefore: team.ReminderHoursBefore,
		DigestHour:          team.DigestHour,
		LastDigestAt:        team.LastDigestAt,
	}

	if revealWebhook {
		response.WebhookURL = team.DiscordWebhook
	}

	return response
}
