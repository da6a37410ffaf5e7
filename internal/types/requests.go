package types

import "time"

type CreateUserRequest struct {
	Name     string `json:"name" binding:"required,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

type LoginUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type UpdateUserRequest struct {
	Name            string `json:"name" binding:"omitempty,max=100"`
	Email           string `json:"email" binding:"omitempty,email"`
	AvatarURL       string `json:"avatar_url" binding:"omitempty,url"`
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password" binding:"omitempty,min=8,max=72"`
}

type DeleteUserRequest struct {
	Password string `json:"password"`
}

type CreateTeamRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description" binding:"max=1000"`
}

type UpdateTeamRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=100"`
	Description *string `json:"description" binding:"omitempty,max=1000"`
}

type AddMemberRequest struct {
	Email string `json:"email" binding:"required,email"`
	Role  string `json:"role" binding:"omitempty,oneof=admin member"`
}

type UpdateMemberRoleRequest struct {
	Role string `json:"role" binding:"required,team_role"`
}

type CreateProjectRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description" binding:"max=2000"`
	Color       string `json:"color" binding:"omitempty,hexcolor"`
}

type UpdateProjectRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=100"`
	Description *string `json:"description" binding:"omitempty,max=2000"`
	Color       *string `json:"color" binding:"omitempty,hexcolor"`
	Archived    *bool   `json:"archived"`
}

type CreateTaskRequest struct {
	TeamID      uint       `json:"team_id" binding:"required"`
	ProjectID   *uint      `json:"project_id"`
	Title       string     `json:"title" binding:"required,max=200"`
	Description string     `json:"description" binding:"max=10000"`
	Status      string     `json:"status" binding:"omitempty,task_status"`
	Priority    string     `json:"priority" binding:"omitempty,task_priority"`
	AssigneeID  *uint      `json:"assignee_id"`
	DueDate     *time.Time `json:"due_date"`
	Tags        []string   `json:"tags" binding:"omitempty,max=20,dive,min=1,max=32"`
}

type UpdateTaskRequest struct {
	ProjectID   *uint      `json:"project_id"`
	Title       *string    `json:"title" binding:"omitempty,min=1,max=200"`
	Description *string    `json:"description" binding:"omitempty,max=10000"`
	Status      *string    `json:"status" binding:"omitempty,task_status"`
	Priority    *string    `json:"priority" binding:"omitempty,task_priority"`
	AssigneeID  *uint      `json:"assignee_id"`
	DueDate     *time.Time `json:"due_date"`
	Tags        *[]string  `json:"tags" binding:"omitempty,max=20,dive,min=1,max=32"`

	ClearProject  bool `json:"clear_project"`
	ClearAssignee bool `json:"clear_assignee"`
	ClearDueDate  bool `json:"clear_due_date"`
}

type UpdateTaskStatusRequest struct {
	Status   string `json:"status" binding:"required,task_status"`
	Position *int   `json:"position" binding:"omitempty,min=0"`
}

type CommentRequest struct {
	Content string `json:"content" binding:"required,max=5000"`
}

type UpdatePreferencesRequest struct {
	InApp        *bool `json:"in_app"`
	Push         *bool `json:"push"`
	TaskAssigned *bool `json:"task_assigned"`
	TaskComment  *bool `json:"task_comment"`
	TaskStatus   *bool `json:"task_status"`
	DueReminder  *bool `json:"due_reminder"`
}

type PushKeys struct {
	P256dh string `json:"p256dh" binding:"required"`
	Auth   string `json:"auth" binding:"required"`
}

type PushSubscriptionRequest struct {
	Endpoint string   `json:"endpoint" binding:"required,url"`
	Keys     PushKeys `json:"keys"`
}

type PushUnsubscribeRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

type DiscordSettingsRequest struct {
	WebhookURL          string `json:"webhook_url" binding:"omitempty,discord_webhook"`
	Enabled             bool   `json:"enabled"`
	ReminderHoursBefore *int   `json:"reminder_hours_before" binding:"omitempty,min=1,max=168"`
	DigestHour          *int   `json:"digest_hour" binding:"omitempty,min=0,max=23"`
}
