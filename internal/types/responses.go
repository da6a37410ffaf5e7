package types

import (
	"encoding/json"
	"time"
)

type UserResponse struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Provider  string `json:"provider"`
}

type UserSummary struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

type AuthResponse struct {
	User  UserResponse `json:"user"`
	Token string       `json:"token"`
}

type TeamResponse struct {
	ID                  uint       `json:"id"`
	Name                string     `json:"name"`
	Description         string     `json:"description"`
	OwnerID             uint       `json:"owner_id"`
	Role                string     `json:"role,omitempty"`
	DiscordEnabled      bool       `json:"discord_enabled"`
	ReminderHoursBefore int        `json:"reminder_hours_before"`
	DigestHour          int        `json:"digest_hour"`
	LastDigestAt        *time.Time `json:"last_digest_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

type MemberResponse struct {
	UserID    uint      `json:"user_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Role      string    `json:"role"`
	JoinedAt  time.Time `json:"joined_at"`
}

type ProjectResponse struct {
	ID          uint      `json:"id"`
	TeamID      uint      `json:"team_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Color       string    `json:"color,omitempty"`
	Archived    bool      `json:"archived"`
	CreatedAt   time.Time `json:"created_at"`
}

type TaskResponse struct {
	ID           uint         `json:"id"`
	TeamID       uint         `json:"team_id"`
	ProjectID    *uint        `json:"project_id"`
	CreatorID    uint         `json:"creator_id"`
	AssigneeID   *uint        `json:"assignee_id"`
	Assignee     *UserSummary `json:"assignee,omitempty"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	Status       string       `json:"status"`
	Priority     string       `json:"priority"`
	DueDate      *time.Time   `json:"due_date"`
	CompletedAt  *time.Time   `json:"completed_at"`
	Position     int          `json:"position"`
	Tags         []string     `json:"tags"`
	CommentCount int64        `json:"comment_count"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

type TaskListResponse struct {
	Tasks  []TaskResponse `json:"tasks"`
	Total  int64          `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

type CalendarResponse struct {
	From time.Time                 `json:"from"`
	To   time.Time                 `json:"to"`
	Days map[string][]TaskResponse `json:"days"`
}

type CommentResponse struct {
	ID        uint        `json:"id"`
	TaskID    uint        `json:"task_id"`
	Author    UserSummary `json:"author"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

type DashboardResponse struct {
	Team           TeamResponse      `json:"team"`
	ByStatus       map[string]int64  `json:"by_status"`
	ByPriority     map[string]int64  `json:"by_priority"`
	Total          int64             `json:"total"`
	Overdue        int64             `json:"overdue"`
	DueThisWeek    int64             `json:"due_this_week"`
	MyOpenTasks    []TaskResponse    `json:"my_open_tasks"`
	RecentComments []CommentResponse `json:"recent_comments"`
}

type NotificationResponse struct {
	ID        uint            `json:"id"`
	Type      string          `json:"type"`
	Title     string          `json:"title"`
	Message   string          `json:"message"`
	TeamID    *uint           `json:"team_id"`
	TaskID    *uint           `json:"task_id"`
	Data      json.RawMessage `json:"data,omitempty"`
	Read      bool            `json:"read"`
	ReadAt    *time.Time      `json:"read_at"`
	CreatedAt time.Time       `json:"created_at"`
}

type PreferencesResponse struct {
	InApp        bool `json:"in_app"`
	Push         bool `json:"push"`
	TaskAssigned bool `json:"task_assigned"`
	TaskComment  bool `json:"task_comment"`
	TaskStatus   bool `json:"task_status"`
	DueReminder  bool `json:"due_reminder"`
}

type DiscordSettingsResponse struct {
	TeamID              uint       `json:"team_id"`
	WebhookConfigured   bool       `json:"webhook_configured"`
	WebhookURL          string     `json:"webhook_url,omitempty"`
	Enabled             bool       `json:"enabled"`
	ReminderHoursBefore int        `json:"reminder_hours_before"`
	DigestHour          int        `json:"digest_hour"`
	LastDigestAt        *time.Time `json:"last_digest_at"`
}
