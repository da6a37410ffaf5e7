package handlers_test

import (
	"fmt"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/flowra-dev/flowra/db"
	"github.com/flowra-dev/flowra/internal/models"
	"github.com/flowra-dev/flowra/internal/testutil"
	"github.com/flowra-dev/flowra/internal/types"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type taskFixture struct {
	s        *testServer
	owner    models.User
	member   models.User
	outsider models.User
	team     models.Team
	project  models.Project
}

func newTaskFixture(t *testing.T) taskFixture {
	s := newServer(t)

	f := taskFixture{
		s:        s,
		owner:    testutil.CreateUser(t, "Owner"),
		member:   testutil.CreateUser(t, "Member"),
		outsider: testutil.CreateUser(t, "Outsider"),
	}
	f.team = testutil.CreateTeam(t, f.owner, "Core")
	testutil.AddMember(t, f.team, f.member, models.RoleMember)

	f.project = models.Project{TeamID: f.team.ID, Name: "Launch"}
	require.NoError(t, db.DB.Create(&f.project).Error)

	return f
}

func (f taskFixture) createTask(t *testing.T, actor models.User, body gin.H) types.TaskResponse {
	t.Helper()

	if _, ok := body["team_id"]; !ok {
		body["team_id"] = f.team.ID
	}

	w, env := f.s.do(http.MethodPost, "/api/tasks", actor, body)
	require.Equal(t, http.StatusCreated, w.Code, env.Error)
	return decode[types.TaskResponse](t, env)
}

func TestCreateTask(t *testing.T) {
	f := newTaskFixture(t)
	due := time.Date(2026, 6, 1, 15, 0, 0, 0, time.FixedZone("KST", 9*3600))

	task := f.createTask(t, f.owner, gin.H{
		"title":       "Write release notes",
		"project_id":  f.project.ID,
		"assignee_id": f.member.ID,
		"priority":    "high",
		"due_date":    due,
		"tags":        []string{"Docs", "docs", " release "},
	})

	assert.Equal(t, models.TaskStatusTodo, task.Status)
	assert.Equal(t, models.PriorityHigh, task.Priority)
	assert.Equal(t, 0, task.Position)
	assert.ElementsMatch(t, []string{"docs", "release"}, task.Tags)
	require.NotNil(t, task.DueDate)
	assert.True(t, due.Equal(*task.DueDate))
	require.NotNil(t, task.Assignee)
	assert.Equal(t, "Member", task.Assignee.Name)

	second := f.createTask(t, f.owner, gin.H{"title": "Second"})
	assert.Equal(t, 1, second.Position)

	var notes []models.Notification
	require.NoError(t, db.DB.Where("user_id = ?", f.member.ID).Find(&notes).Error)
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotificationTaskAssigned, notes[0].Type)
}

func TestCreateTask_Rejects(t *testing.T) {
	f := newTaskFixture(t)

	otherTeam := testutil.CreateTeam(t, f.outsider, "Elsewhere")
	foreign := models.Project{TeamID: otherTeam.ID, Name: "Foreign"}
	require.NoError(t, db.DB.Create(&foreign).Error)

	archived := models.Project{TeamID: f.team.ID, Name: "Old"}
	require.NoError(t, db.DB.Create(&archived).Error)
	require.NoError(t, db.DB.Model(&archived).Update("archived", true).Error)

	tests := []struct {
		name   string
		actor  models.User
		body   gin.H
		status int
		error  string
	}{
		{"non member", f.outsider, gin.H{"team_id": f.team.ID, "title": "x"}, http.StatusForbidden, "You are not a member of this team"},
		{"missing title", f.owner, gin.H{"team_id": f.team.ID}, http.StatusBadRequest, "Invalid request"},
		{"blank title", f.owner, gin.H{"team_id": f.team.ID, "title": "   "}, http.StatusBadRequest, "Title is required"},
		{"bad status", f.owner, gin.H{"team_id": f.team.ID, "title": "x", "status": "blocked"}, http.StatusBadRequest, "Invalid request"},
		{"foreign project", f.owner, gin.H{"team_id": f.team.ID, "title": "x", "project_id": foreign.ID}, http.StatusBadRequest, "Project does not belong to this team"},
		{"archived project", f.owner, gin.H{"team_id": f.team.ID, "title": "x", "project_id": archived.ID}, http.StatusBadRequest, "Project is archived"},
		{"non member assignee", f.owner, gin.H{"team_id": f.team.ID, "title": "x", "assignee_id": f.outsider.ID}, http.StatusBadRequest, "Assignee must be a member of this team"},
		{"missing team", f.owner, gin.H{"team_id": 9999, "title": "x"}, http.StatusNotFound, "Team not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := f.s.do(http.MethodPost, "/api/tasks", tt.actor, tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.error, env.Error)
		})
	}
}

func TestListTasks_Filters(t *testing.T) {
	f := newTaskFixture(t)

	a := f.createTask(t, f.owner, gin.H{"title": "Fix login bug", "assignee_id": f.member.ID, "tags": []string{"bug"}, "priority": "urgent"})
	b := f.createTask(t, f.owner, gin.H{"title": "Design review", "status": "review", "project_id": f.project.ID, "due_date": "2026-07-10T00:00:00Z"})
	c := f.createTask(t, f.member, gin.H{"title": "100% coverage", "status": "done", "due_date": "2026-07-20T00:00:00Z"})

	list := func(query url.Values) []uint {
		t.Helper()
		query.Set("team_id", fmt.Sprint(f.team.ID))

		w, env := f.s.do(http.MethodGet, "/api/tasks?"+query.Encode(), f.member, nil)
		require.Equal(t, http.StatusOK, w.Code, env.Error)

		resp := decode[types.TaskListResponse](t, env)
		ids := make([]uint, 0, len(resp.Tasks))
		for _, task := range resp.Tasks {
			ids = append(ids, task.ID)
		}
		assert.Equal(t, int64(len(ids)), resp.Total)
		return ids
	}

	assert.Equal(t, []uint{a.ID, b.ID, c.ID}, list(url.Values{}))
	assert.Equal(t, []uint{a.ID, b.ID}, list(url.Values{"status": {"todo,review"}}))
	assert.Equal(t, []uint{b.ID}, list(url.Values{"project_id": {fmt.Sprint(f.project.ID)}}))
	assert.Equal(t, []uint{a.ID}, list(url.Values{"assignee_id": {"me"}}))
	assert.Equal(t, []uint{b.ID, c.ID}, list(url.Values{"assignee_id": {"none"}}))
	assert.Equal(t, []uint{a.ID}, list(url.Values{"tag": {"BUG"}}))
	assert.Equal(t, []uint{a.ID}, list(url.Values{"priority": {"urgent"}}))
	assert.Equal(t, []uint{a.ID}, list(url.Values{"q": {"LOGIN"}}))
	assert.Equal(t, []uint{c.ID}, list(url.Values{"q": {"100%"}}))
	assert.Equal(t, []uint{b.ID}, list(url.Values{"due_from": {"2026-07-01"}, "due_to": {"2026-07-15"}}))

	w, _ := f.s.do(http.MethodGet, "/api/tasks", f.member, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = f.s.do(http.MethodGet, fmt.Sprintf("/api/tasks?team_id=%d&status=blocked", f.team.ID), f.member, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = f.s.do(http.MethodGet, fmt.Sprintf("/api/tasks?team_id=%d", f.team.ID), f.outsider, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env := f.s.do(http.MethodGet, fmt.Sprintf("/api/tasks?team_id=%d&limit=1&offset=1", f.team.ID), f.member, nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[types.TaskListResponse](t, env)
	assert.Equal(t, int64(3), page.Total)
	require.Len(t, page.Tasks, 1)
	assert.Equal(t, b.ID, page.Tasks[0].ID)
}

func TestUpdateTask(t *testing.T) {
	f := newTaskFixture(t)
	task := f.createTask(t, f.owner, gin.H{"title": "Draft", "due_date": "2026-07-01T09:00:00Z"})
	path := fmt.Sprintf("/api/tasks/%d", task.ID)

	require.NoError(t, db.DB.Model(&models.Task{}).Where("id = ?", task.ID).
		Update("reminder_sent_at", time.Now().UTC()).Error)

	w, env := f.s.do(http.MethodPatch, path, f.member, gin.H{
		"title":       "Final",
		"assignee_id": f.member.ID,
		"due_date":    "2026-07-02T09:00:00Z",
		"tags":        []string{"ready"},
		"status":      "done",
	})
	require.Equal(t, http.StatusOK, w.Code, env.Error)

	updated := decode[types.TaskResponse](t, env)
	assert.Equal(t, "Final", updated.Title)
	assert.Equal(t, models.TaskStatusDone, updated.Status)
	assert.NotNil(t, updated.CompletedAt)
	assert.Equal(t, []string{"ready"}, updated.Tags)

	var stored models.Task
	require.NoError(t, db.DB.First(&stored, task.ID).Error)
	assert.Nil(t, stored.ReminderSentAt)

	// the owner created the task and hears about the status change
	var count int64
	require.NoError(t, db.DB.Model(&models.Notification{}).
		Where("user_id = ? AND type = ?", f.owner.ID, models.NotificationTaskStatusChanged).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)

	w, env = f.s.do(http.MethodPatch, path, f.member, gin.H{"clear_assignee": true, "clear_due_date": true, "status": "todo"})
	require.Equal(t, http.StatusOK, w.Code, env.Error)
	cleared := decode[types.TaskResponse](t, env)
	assert.Nil(t, cleared.AssigneeID)
	assert.Nil(t, cleared.DueDate)
	assert.Nil(t, cleared.CompletedAt)

	w, env = f.s.do(http.MethodPatch, path, f.member, gin.H{"clear_project": true, "project_id": f.project.ID})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Cannot set and clear the same field", env.Error)

	w, env = f.s.do(http.MethodPatch, path, f.member, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No valid fields to update", env.Error)

	w, _ = f.s.do(http.MethodPatch, path, f.outsider, gin.H{"title": "mine now"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = f.s.do(http.MethodPatch, "/api/tasks/9999", f.member, gin.H{"title": "ghost"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateTaskStatus_Positions(t *testing.T) {
	f := newTaskFixture(t)

	first := f.createTask(t, f.owner, gin.H{"title": "first", "status": "in_progress"})
	second := f.createTask(t, f.owner, gin.H{"title": "second", "status": "in_progress"})
	moving := f.createTask(t, f.owner, gin.H{"title": "moving"})

	w, env := f.s.do(http.MethodPatch, fmt.Sprintf("/api/tasks/%d/status", moving.ID), f.member, gin.H{"status": "in_progress", "position": 0})
	require.Equal(t, http.StatusOK, w.Code, env.Error)
	moved := decode[types.TaskResponse](t, env)
	assert.Equal(t, models.TaskStatusInProgress, moved.Status)
	assert.Equal(t, 0, moved.Position)

	positions := map[uint]int{}
	var tasks []models.Task
	require.NoError(t, db.DB.Where("team_id = ? AND status = ?", f.team.ID, models.TaskStatusInProgress).Find(&tasks).Error)
	for _, task := range tasks {
		positions[task.ID] = task.Position
	}
	assert.Equal(t, map[uint]int{moving.ID: 0, first.ID: 1, second.ID: 2}, positions)

	w, env = f.s.do(http.MethodPatch, fmt.Sprintf("/api/tasks/%d/status", first.ID), f.member, gin.H{"status": "done"})
	require.Equal(t, http.StatusOK, w.Code)
	done := decode[types.TaskResponse](t, env)
	assert.Equal(t, 0, done.Position)
	assert.NotNil(t, done.CompletedAt)

	w, _ = f.s.do(http.MethodPatch, fmt.Sprintf("/api/tasks/%d/status", first.ID), f.member, gin.H{"status": "archived"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteTask(t *testing.T) {
	f := newTaskFixture(t)
	other := testutil.CreateUser(t, "Other")
	testutil.AddMember(t, f.team, other, models.RoleMember)

	task := f.createTask(t, f.member, gin.H{"title": "Mine"})
	path := fmt.Sprintf("/api/tasks/%d", task.ID)

	w, env := f.s.do(http.MethodDelete, path, other, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Only the creator or a team admin can delete this task", env.Error)

	w, _ = f.s.do(http.MethodDelete, path, f.owner, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = f.s.do(http.MethodGet, path, f.member, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTaskCalendar(t *testing.T) {
	f := newTaskFixture(t)

	f.createTask(t, f.owner, gin.H{"title": "morning", "due_date": "2026-08-03T08:00:00Z"})
	f.createTask(t, f.owner, gin.H{"title": "evening", "due_date": "2026-08-03T22:00:00Z"})
	f.createTask(t, f.owner, gin.H{"title": "last day", "due_date": "2026-08-31T23:30:00Z"})
	f.createTask(t, f.owner, gin.H{"title": "next month", "due_date": "2026-09-01T00:00:00Z"})
	f.createTask(t, f.owner, gin.H{"title": "undated"})

	base := fmt.Sprintf("/api/tasks/calendar?team_id=%d", f.team.ID)

	w, env := f.s.do(http.MethodGet, base+"&from=2026-08-01&to=2026-08-31", f.member, nil)
	require.Equal(t, http.StatusOK, w.Code, env.Error)

	cal := decode[types.CalendarResponse](t, env)
	assert.Len(t, cal.Days["2026-08-03"], 2)
	assert.Len(t, cal.Days["2026-08-31"], 1)
	assert.NotContains(t, cal.Days, "2026-09-01")
	assert.Equal(t, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), cal.To.UTC())

	w, env = f.s.do(http.MethodGet, base+"&from=2026-01-01&to=2026-12-31", f.member, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, env.Error, "Range cannot exceed")

	w, _ = f.s.do(http.MethodGet, base+"&from=2026-08-10&to=2026-08-01", f.member, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = f.s.do(http.MethodGet, base+"&from=yesterday", f.member, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestComments(t *testing.T) {
	f := newTaskFixture(t)
	other := testutil.CreateUser(t, "Other")
	testutil.AddMember(t, f.team, other, models.RoleMember)

	task := f.createTask(t, f.owner, gin.H{"title": "Discuss", "assignee_id": f.member.ID})
	base := fmt.Sprintf("/api/tasks/%d/comments", task.ID)

	w, env := f.s.do(http.MethodPost, base, other, gin.H{"content": "  Looks good  "})
	require.Equal(t, http.StatusCreated, w.Code, env.Error)
	comment := decode[types.CommentResponse](t, env)
	assert.Equal(t, "Looks good", comment.Content)
	assert.Equal(t, "Other", comment.Author.Name)

	var notified []uint
	require.NoError(t, db.DB.Model(&models.Notification{}).
		Where("type = ?", models.NotificationTaskCommented).
		Order("user_id").
		Pluck("user_id", &notified).Error)
	assert.Equal(t, []uint{f.owner.ID, f.member.ID}, notified)

	w, _ = f.s.do(http.MethodPost, base, other, gin.H{"content": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = f.s.do(http.MethodPost, base, f.outsider, gin.H{"content": "hi"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env = f.s.do(http.MethodGet, base, f.member, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]types.CommentResponse](t, env), 1)

	w, env = f.s.do(http.MethodGet, fmt.Sprintf("/api/tasks/%d", task.ID), f.member, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), decode[types.TaskResponse](t, env).CommentCount)

	commentPath := fmt.Sprintf("/api/comments/%d", comment.ID)

	w, _ = f.s.do(http.MethodPatch, commentPath, f.owner, gin.H{"content": "owner edit"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env = f.s.do(http.MethodPatch, commentPath, other, gin.H{"content": "Edited"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Edited", decode[types.CommentResponse](t, env).Content)

	w, _ = f.s.do(http.MethodDelete, commentPath, f.member, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = f.s.do(http.MethodDelete, commentPath, f.owner, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = f.s.do(http.MethodDelete, commentPath, f.owner, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
