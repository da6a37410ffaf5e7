package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/flowra-dev/flowra/internal/models"
	"github.com/flowra-dev/flowra/internal/types"
)

type DiscordWebhookField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type DiscordEmbed struct {
	Title       string                `json:"title"`
	Description string                `json:"description,omitempty"`
	URL         string                `json:"url,omitempty"`
	Color       int                   `json:"color"`
	Fields      []DiscordWebhookField `json:"fields,omitempty"`
	Footer      *DiscordFooter        `json:"footer,omitempty"`
	Timestamp   string                `json:"timestamp"`
}

type DiscordFooter struct {
	Text string `json:"text"`
}

type DiscordWebhookRequest struct {
	Username  string         `json:"username"`
	AvatarURL string         `json:"avatar_url,omitempty"`
	Embeds    []DiscordEmbed `json:"embeds"`
}

const (
	ColorBlue   = 3447003  // #3498DB created
	ColorPurple = 10181046 // #9B59B6 assigned
	ColorGreen  = 3066993  // #2ECC71 completed
	ColorGrey   = 9807270  // #95A5A6 comment
	ColorOrange = 15105570 // #E67E22 due soon
	ColorRed    = 15158332 // #E74C3C overdue

	dateFormat = "2006-01-02 15:04 UTC"

	maxFieldValue  = 1024
	maxDescription = 4096
)

// DigestSummary is the per-team snapshot posted as the daily digest.
type DigestSummary struct {
	Open     int64
	Overdue  int64
	DueToday int64
	Upcoming []models.Task
}

// DiscordClient posts task events to team webhooks. Teams without an enabled
// webhook are skipped silently.
type DiscordClient struct {
	httpClient *http.Client
	username   string
	avatarURL  string
	clientURL  string
}

func NewDiscordClient(username, avatarURL, clientURL string) *DiscordClient {
	return &DiscordClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		username:   username,
		avatarURL:  avatarURL,
		clientURL:  clientURL,
	}
}

func (c *DiscordClient) TaskCreated(ctx context.Context, team models.Team, task models.Task, actorName string) error {
	return c.post(ctx, team, DiscordEmbed{
		Title:       "🆕 New task: " + task.Title,
		Description: truncate(task.Description, maxDescription),
		Color:       ColorBlue,
		Fields: append(taskFields(task),
			DiscordWebhookField{Name: "Created by", Value: actorName, Inline: true},
		),
	}, task)
}

func (c *DiscordClient) TaskAssigned(ctx context.Context, team models.Team, task models.Task, assigneeName string) error {
	task.Assignee = nil
	return c.post(ctx, team, DiscordEmbed{
		Title:  "👤 Task assigned: " + task.Title,
		Color:  ColorPurple,
		Fields: append(taskFields(task), DiscordWebhookField{Name: "Assignee", Value: assigneeName, Inline: true}),
	}, task)
}

func (c *DiscordClient) TaskCompleted(ctx context.Context, team models.Team, task models.Task, actorName string) error {
	return c.post(ctx, team, DiscordEmbed{
		Title:       "✅ Task completed: " + task.Title,
		Description: fmt.Sprintf("**%s** marked this task as done.", actorName),
		Color:       ColorGreen,
		Fields:      taskFields(task),
	}, task)
}

func (c *DiscordClient) TaskCommented(ctx context.Context, team models.Team, task models.Task, authorName, content string) error {
	return c.post(ctx, team, DiscordEmbed{
		Title: "💬 New comment on " + task.Title,
		Color: ColorGrey,
		Fields: []DiscordWebhookField{
			{Name: "Author", Value: authorName, Inline: true},
			{Name: "Comment", Value: truncate(content, maxFieldValue), Inline: false},
		},
	}, task)
}

func (c *DiscordClient) DueSoon(ctx context.Context, team models.Team, task models.Task) error {
	return c.post(ctx, team, DiscordEmbed{
		Title:       "⏰ Due soon: " + task.Title,
		Description: fmt.Sprintf("This task is due within %d hours.", team.ReminderHoursBefore),
		Color:       ColorOrange,
		Fields:      taskFields(task),
	}, task)
}

func (c *DiscordClient) Overdue(ctx context.Context, team models.Team, task models.Task) error {
	return c.post(ctx, team, DiscordEmbed{
		Title:       "🚨 Overdue: " + task.Title,
		Description: "This task has passed its due date.",
		Color:       ColorRed,
		Fields:      taskFields(task),
	}, task)
}

func (c *DiscordClient) Digest(ctx context.Context, team models.Team, summary DigestSummary) error {
	fields := []DiscordWebhookField{
		{Name: "📋 Open", Value: fmt.Sprintf("%d", summary.Open), Inline: true},
		{Name: "🚨 Overdue", Value: fmt.Sprintf("%d", summary.Overdue), Inline: true},
		{Name: "📅 Due today", Value: fmt.Sprintf("%d", summary.DueToday), Inline: true},
	}

	var upcoming bytes.Buffer
	for _, task := range summary.Upcoming {
		fmt.Fprintf(&upcoming, "• %s (%s)\n", task.Title, formatDue(task.DueDate))
	}
	if upcoming.Len() > 0 {
		fields = append(fields, DiscordWebhookField{Name: "Next up", Value: truncate(upcoming.String(), maxFieldValue)})
	}

	return c.post(ctx, team, DiscordEmbed{
		Title:  "📰 Daily digest for " + team.Name,
		Color:  ColorBlue,
		Fields: fields,
	}, models.Task{})
}

// Test posts a confirmation embed even while the webhook is disabled, so
// admins can verify the URL before turning it on.
func (c *DiscordClient) Test(ctx context.Context, team models.Team) error {
	if team.DiscordWebhook == "" {
		return types.ErrDiscordDisabled
	}

	return c.Send(ctx, team.DiscordWebhook, c.request(team, DiscordEmbed{
		Title:       "🔔 Flowra is connected",
		Description: fmt.Sprintf("Task updates for **%s** will be posted to this channel.", team.Name),
		Color:       ColorGreen,
	}))
}

func (c *DiscordClient) post(ctx context.Context, team models.Team, embed DiscordEmbed, task models.Task) error {
	if !team.DiscordActive() {
		return nil
	}

	if task.ID != 0 && c.clientURL != "" {
		embed.URL = fmt.Sprintf("%s/teams/%d/tasks/%d", c.clientURL, team.ID, task.ID)
	}

	return c.Send(ctx, team.DiscordWebhook, c.request(team, embed))
}

func (c *DiscordClient) request(team models.Team, embed DiscordEmbed) DiscordWebhookRequest {
	embed.Footer = &DiscordFooter{Text: fmt.Sprintf("Team: %s | Flowra", team.Name)}
	embed.Timestamp = time.Now().UTC().Format(time.RFC3339)

	return DiscordWebhookRequest{
		Username:  c.username,
		AvatarURL: c.avatarURL,
		Embeds:    []DiscordEmbed{embed},
	}
}

func (c *DiscordClient) Send(ctx context.Context, webhookURL string, payload DiscordWebhookRequest) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal Discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build Discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send Discord webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("discord webhook returned status %d", resp.StatusCode)
	}

	return nil
}

func taskFields(task models.Task) []DiscordWebhookField {
	fields := []DiscordWebhookField{
		{Name: "Status", Value: task.Status, Inline: true},
		{Name: "Priority", Value: task.Priority, Inline: true},
		{Name: "Due", Value: formatDue(task.DueDate), Inline: true},
	}

	if task.Project != nil {
		fields = append(fields, DiscordWebhookField{Name: "Project", Value: task.Project.Name, Inline: true})
	}

	if task.Assignee != nil {
		fields = append(fields, DiscordWebhookField{Name: "Assignee", Value: task.Assignee.Name, Inline: true})
	}

	return fields
}

func formatDue(due *time.Time) string {
	if due == nil {
		return "No due date"
	}
	return due.UTC().Format(dateFormat)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
