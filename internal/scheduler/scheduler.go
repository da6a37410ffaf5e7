package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flowra-dev/flowra/db"
	"github.com/flowra-dev/flowra/internal/models"
	"github.com/flowra-dev/flowra/internal/services"
	"github.com/flowra-dev/flowra/internal/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	// maxReminderWindow bounds the due-soon query; per-team windows are
	// applied on top of it.
	maxReminderWindow = 168 * time.Hour
	digestTopTasks    = 5
	digestConcurrency = 4
	releaseTimeout    = 5 * time.Second
)

type Notifier interface {
	Notify(ctx context.Context, ev services.Event) (int, error)
}

type Discord interface {
	DueSoon(ctx context.Context, team models.Team, task models.Task) error
	Overdue(ctx context.Context, team models.Team, task models.Task) error
	Digest(ctx context.Context, team models.Team, summary services.DigestSummary) error
}

type TickResult struct {
	DueSoon int `json:"due_soon"`
	Overdue int `json:"overdue"`
	Errors  int `json:"errors"`
}

type DigestResult struct {
	Sent   int `json:"sent"`
	Errors int `json:"errors"`
}

type RunAllResult struct {
	Reminders TickResult   `json:"reminders"`
	Digests   DigestResult `json:"digests"`
}

type Status struct {
	Running    bool        `json:"running"`
	Interval   string      `json:"interval"`
	LastTickAt *time.Time  `json:"last_tick_at"`
	LastResult *TickResult `json:"last_result"`
	RunCount   int64       `json:"run_count"`
}

// Scheduler sends due-soon and overdue reminders on a fixed interval and posts
// daily Discord digests at each team's chosen hour.
type Scheduler struct {
	notifier Notifier
	discord  Discord
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	// tickMu keeps a manual tick from racing the ticker over the same tasks.
	tickMu sync.Mutex

	statsMu    sync.RWMutex
	lastTickAt *time.Time
	lastResult *TickResult
	runCount   atomic.Int64
}

func NewScheduler(notifier Notifier, discord Discord, interval time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scheduler{
		notifier: notifier,
		discord:  discord,
		interval: interval,
		logger:   logger.Named("scheduler"),
		now:      time.Now,
	}
}

func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return types.ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(ctx, s.done)

	s.logger.Info("scheduler started", zap.Duration("interval", s.interval))
	return nil
}

// Stop cancels the loop and waits for it to exit. Stopping a stopped
// scheduler does nothing.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done

	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

func (s *Scheduler) Status() Status {
	s.statsMu.RLock()
	defer s.statsMu.RUnlock()

	status := Status{
		Running:    s.IsRunning(),
		Interval:   s.interval.String(),
		LastTickAt: s.lastTickAt,
		RunCount:   s.runCount.Load(),
	}

	if s.lastResult != nil {
		result := *s.lastResult
		status.LastResult = &result
	}

	return status
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var lastDigestHour time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.TickReminders(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("reminder tick failed", zap.Error(err))
			}

			hour := s.now().UTC().Truncate(time.Hour)
			if !hour.Equal(lastDigestHour) {
				lastDigestHour = hour
				if _, err := s.SendDueDigests(ctx, false); err != nil && ctx.Err() == nil {
					s.logger.Error("digest run failed", zap.Error(err))
				}
			}
		}
	}
}

// TickReminders sends due-soon and overdue notifications for open tasks that
// have not been reminded yet. A failing task is counted and skipped.
func (s *Scheduler) TickReminders(ctx context.Context) (TickResult, error) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	now := s.now().UTC()
	var result TickResult

	var soon []models.Task
	if err := s.openTasks(ctx).
		Where("tasks.due_date > ? AND tasks.due_date <= ?", now, now.Add(maxReminderWindow)).
		Where("tasks.reminder_sent_at IS NULL").
		Find(&soon).Error; err != nil {
		return result, fmt.Errorf("failed to load due-soon tasks: %w", err)
	}

	for _, task := range soon {
		window := time.Duration(task.Team.ReminderHoursBefore) * time.Hour
		if window <= 0 {
			window = models.DefaultReminderHoursBefore * time.Hour
		}
		if task.DueDate.After(now.Add(window)) {
			continue
		}

		switch s.remind(ctx, task, now, "reminder_sent_at", models.NotificationTaskDueSoon) {
		case reminderSent:
			result.DueSoon++
		case reminderFailed:
			result.Errors++
		}
	}

	var overdue []models.Task
	if err := s.openTasks(ctx).
		Where("tasks.due_date <= ?", now).
		Where("tasks.overdue_notified_at IS NULL").
		Find(&overdue).Error; err != nil {
		return result, fmt.Errorf("failed to load overdue tasks: %w", err)
	}

	for _, task := range overdue {
		switch s.remind(ctx, task, now, "overdue_notified_at", models.NotificationTaskOverdue) {
		case reminderSent:
			result.Overdue++
		case reminderFailed:
			result.Errors++
		}
	}

	s.record(now, result)

	if result.DueSoon+result.Overdue+result.Errors > 0 {
		s.logger.Info("reminder tick finished",
			zap.Int("due_soon", result.DueSoon),
			zap.Int("overdue", result.Overdue),
			zap.Int("errors", result.Errors),
		)
	}

	return result, nil
}

// RunAllNow sends pending reminders and a digest to every Discord-enabled
// team regardless of its digest hour.
func (s *Scheduler) RunAllNow(ctx context.Context) (RunAllResult, error) {
	reminders, err := s.TickReminders(ctx)
	if err != nil {
		return RunAllResult{Reminders: reminders}, err
	}

	digests, err := s.SendDueDigests(ctx, true)

	return RunAllResult{Reminders: reminders, Digests: digests}, err
}

// SendDueDigests posts the daily digest for teams whose digest hour is the
// current UTC hour and which have not had one today. force skips both checks.
func (s *Scheduler) SendDueDigests(ctx context.Context, force bool) (DigestResult, error) {
	now := s.now().UTC()
	var result DigestResult

	var teams []models.Team
	if err := db.DB.WithContext(ctx).
		Where("discord_enabled = ? AND discord_webhook <> ''", true).
		Find(&teams).Error; err != nil {
		return result, fmt.Errorf("failed to load teams: %w", err)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(digestConcurrency)

	for _, team := range teams {
		if !force && !digestDue(team, now) {
			continue
		}

		team := team // per-iteration copy (pre-Go 1.22 loop semantics)
		g.Go(func() error {
			err := s.sendDigest(gctx, team, now)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				result.Errors++
				s.logger.Warn("digest failed", zap.Uint("team_id", team.ID), zap.Error(err))
				return nil
			}

			result.Sent++
			return nil
		})
	}

	_ = g.Wait()

	return result, nil
}

func digestDue(team models.Team, now time.Time) bool {
	if team.DigestHour != now.Hour() {
		return false
	}

	if team.LastDigestAt == nil {
		return true
	}

	y1, m1, d1 := team.LastDigestAt.UTC().Date()
	y2, m2, d2 := now.Date()

	return y1 != y2 || m1 != m2 || d1 != d2
}

func (s *Scheduler) sendDigest(ctx context.Context, team models.Team, now time.Time) error {
	summary, err := buildDigest(ctx, team.ID, now)
	if err != nil {
		return err
	}

	if err := s.discord.Digest(ctx, team, summary); err != nil {
		return err
	}

	return db.DB.WithContext(ctx).
		Model(&models.Team{}).
		Where("id = ?", team.ID).
		UpdateColumn("last_digest_at", now).Error
}

func buildDigest(ctx context.Context, teamID uint, now time.Time) (services.DigestSummary, error) {
	var summary services.DigestSummary

	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	endOfDay := startOfDay.Add(24 * time.Hour)

	open := func() *gorm.DB {
		return db.DB.WithContext(ctx).
			Model(&models.Task{}).
			Where("team_id = ? AND status <> ?", teamID, models.TaskStatusDone)
	}

	if err := open().Count(&summary.Open).Error; err != nil {
		return summary, err
	}

	if err := open().Where("due_date <= ?", now).Count(&summary.Overdue).Error; err != nil {
		return summary, err
	}

	if err := open().Where("due_date >= ? AND due_date < ?", startOfDay, endOfDay).Count(&summary.DueToday).Error; err != nil {
		return summary, err
	}

	if err := open().
		Where("due_date IS NOT NULL").
		Order("due_date ASC").
		Limit(digestTopTasks).
		Find(&summary.Upcoming).Error; err != nil {
		return summary, err
	}

	return summary, nil
}

// openTasks selects unfinished tasks of live teams with their team, assignee
// and project loaded.
func (s *Scheduler) openTasks(ctx context.Context) *gorm.DB {
	return db.DB.WithContext(ctx).
		Select("tasks.*").
		Joins("JOIN teams ON teams.id = tasks.team_id AND teams.deleted_at IS NULL").
		Preload("Team").
		Preload("Assignee").
		Preload("Project").
		Where("tasks.status <> ?", models.TaskStatusDone).
		Order("tasks.due_date ASC")
}

type reminderOutcome int

const (
	reminderSent reminderOutcome = iota
	// reminderSkipped means another tick already claimed the task.
	reminderSkipped
	reminderFailed
)

// remind claims the task by stamping column, then notifies the recipient and
// posts to Discord. If the in-app notification fails the claim is released
// so the next tick retries.
func (s *Scheduler) remind(ctx context.Context, task models.Task, now time.Time, column, notificationType string) reminderOutcome {
	claim := db.DB.WithContext(ctx).
		Model(&models.Task{}).
		Where("id = ?", task.ID).
		Where(column+" IS NULL").
		UpdateColumn(column, now)

	if claim.Error != nil {
		s.logger.Error("failed to claim task reminder", zap.Uint("task_id", task.ID), zap.Error(claim.Error))
		return reminderFailed
	}
	if claim.RowsAffected == 0 {
		return reminderSkipped
	}

	title, message := reminderText(task, notificationType)

	_, err := s.notifier.Notify(ctx, services.Event{
		Type:       notificationType,
		TeamID:     task.TeamID,
		TaskID:     task.ID,
		Recipients: []uint{task.RecipientID()},
		Title:      title,
		Message:    message,
		Data: map[string]any{
			"task_id":  task.ID,
			"team_id":  task.TeamID,
			"due_date": task.DueDate,
		},
	})
	if err != nil {
		s.logger.Error("failed to send reminder", zap.Uint("task_id", task.ID), zap.String("type", notificationType), zap.Error(err))
		s.releaseClaim(ctx, task.ID, column)
		return reminderFailed
	}

	if notificationType == models.NotificationTaskDueSoon {
		err = s.discord.DueSoon(ctx, task.Team, task)
	} else {
		err = s.discord.Overdue(ctx, task.Team, task)
	}
	if err != nil {
		s.logger.Warn("discord reminder failed", zap.Uint("task_id", task.ID), zap.Error(err))
	}

	return reminderSent
}

// releaseClaim clears column so the task is retried. It runs detached from
// ctx so a cancelled tick still releases what it claimed.
func (s *Scheduler) releaseClaim(ctx context.Context, taskID uint, column string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	err := db.DB.WithContext(ctx).
		Model(&models.Task{}).
		Where("id = ?", taskID).
		UpdateColumn(column, nil).Error
	if err != nil {
		s.logger.Error("failed to release reminder claim",
			zap.Uint("task_id", taskID),
			zap.String("column", column),
			zap.Error(err),
		)
	}
}

func reminderText(task models.Task, notificationType string) (string, string) {
	due := task.DueDate.UTC().Format("Jan 2 15:04 UTC")

	if notificationType == models.NotificationTaskDueSoon {
		return "Task due soon", fmt.Sprintf("%q is due %s", task.Title, due)
	}

	return "Task overdue", fmt.Sprintf("%q was due %s", task.Title, due)
}

func (s *Scheduler) record(at time.Time, result TickResult) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	s.lastTickAt = &at
	s.lastResult = &result
	s.runCount.Add(1)
}
