package handlers_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/flowra-dev/flowra/db"
	"github.com/flowra-dev/flowra/internal/models"
	"github.com/flowra-dev/flowra/internal/testutil"
	"github.com/flowra-dev/flowra/internal/types"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTeamLifecycle(t *testing.T) {
	s := newServer(t)
	owner := testutil.CreateUser(t, "Owner")
	outsider := testutil.CreateUser(t, "Outsider")

	w, env := s.do(http.MethodPost, "/api/teams", owner, gin.H{"name": "  Platform  ", "description": "infra"})
	require.Equal(t, http.StatusCreated, w.Code, env.Error)
	team := decode[types.TeamResponse](t, env)
	assert.Equal(t, "Platform", team.Name)
	assert.Equal(t, models.RoleOwner, team.Role)
	assert.Equal(t, models.DefaultReminderHoursBefore, team.ReminderHoursBefore)

	w, env = s.do(http.MethodGet, "/api/teams", owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]types.TeamResponse](t, env), 1)

	w, env = s.do(http.MethodGet, "/api/teams", outsider, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]types.TeamResponse](t, env))

	path := fmt.Sprintf("/api/teams/%d", team.ID)

	w, env = s.do(http.MethodGet, path, outsider, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "You are not a member of this team", env.Error)

	w, env = s.do(http.MethodGet, "/api/teams/9999", owner, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Team not found", env.Error)

	w, _ = s.do(http.MethodGet, "/api/teams/abc", owner, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = s.do(http.MethodPatch, path, owner, gin.H{"name": "Platform Team"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Platform Team", decode[types.TeamResponse](t, env).Name)

	w, _ = s.do(http.MethodDelete, path, owner, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(http.MethodGet, path, owner, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTeamPermissions(t *testing.T) {
	s := newServer(t)
	owner := testutil.CreateUser(t, "Owner")
	admin := testutil.CreateUser(t, "Admin")
	member := testutil.CreateUser(t, "Member")

	team := testutil.CreateTeam(t, owner, "Core")
	testutil.AddMember(t, team, admin, models.RoleAdmin)
	testutil.AddMember(t, team, member, models.RoleMember)

	path := fmt.Sprintf("/api/teams/%d", team.ID)

	w, env := s.do(http.MethodPatch, path, member, gin.H{"name": "Hijacked"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Insufficient permissions", env.Error)

	w, _ = s.do(http.MethodPatch, path, admin, gin.H{"description": "updated by admin"})
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(http.MethodDelete, path, admin, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestMembers(t *testing.T) {
	s := newServer(t)
	owner := testutil.CreateUser(t, "Owner")
	admin := testutil.CreateUser(t, "Admin")
	member := testutil.CreateUser(t, "Member")
	newcomer := testutil.CreateUser(t, "Newcomer")

	team := testutil.CreateTeam(t, owner, "Core")
	testutil.AddMember(t, team, admin, models.RoleAdmin)
	testutil.AddMember(t, team, member, models.RoleMember)

	base := fmt.Sprintf("/api/teams/%d/members", team.ID)

	t.Run("add", func(t *testing.T) {
		w, _ := s.do(http.MethodPost, base, member, gin.H{"email": newcomer.Email})
		assert.Equal(t, http.StatusForbidden, w.Code)

		w, env := s.do(http.MethodPost, base, admin, gin.H{"email": "ghost@example.com"})
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "No user with that email", env.Error)

		w, env = s.do(http.MethodPost, base, admin, gin.H{"email": newcomer.Email})
		require.Equal(t, http.StatusCreated, w.Code, env.Error)
		added := decode[types.MemberResponse](t, env)
		assert.Equal(t, models.RoleMember, added.Role)

		w, env = s.do(http.MethodPost, base, admin, gin.H{"email": newcomer.Email})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "User is already a member of this team", env.Error)

		var notes []models.Notification
		require.NoError(t, db.DB.Where("user_id = ?", newcomer.ID).Find(&notes).Error)
		require.Len(t, notes, 1)
		assert.Equal(t, models.NotificationTeamMemberAdded, notes[0].Type)
	})

	t.Run("list", func(t *testing.T) {
		w, env := s.do(http.MethodGet, base, member, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, decode[[]types.MemberResponse](t, env), 4)
	})

	t.Run("role changes are owner only", func(t *testing.T) {
		w, _ := s.do(http.MethodPatch, fmt.Sprintf("%s/%d", base, member.ID), admin, gin.H{"role": "admin"})
		assert.Equal(t, http.StatusForbidden, w.Code)

		w, _ = s.do(http.MethodPatch, fmt.Sprintf("%s/%d", base, member.ID), owner, gin.H{"role": "superuser"})
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w, env := s.do(http.MethodPatch, fmt.Sprintf("%s/%d", base, owner.ID), owner, gin.H{"role": "member"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Transfer ownership to another member instead", env.Error)
	})

	t.Run("remove", func(t *testing.T) {
		w, env := s.do(http.MethodDelete, fmt.Sprintf("%s/%d", base, owner.ID), admin, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "The team owner cannot be removed", env.Error)

		w, _ = s.do(http.MethodDelete, fmt.Sprintf("%s/%d", base, newcomer.ID), member, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)

		task := testutil.CreateTask(t, models.Task{TeamID: team.ID, CreatorID: owner.ID, AssigneeID: &newcomer.ID})

		w, _ = s.do(http.MethodDelete, fmt.Sprintf("%s/%d", base, newcomer.ID), newcomer, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var reloaded models.Task
		require.NoError(t, db.DB.First(&reloaded, task.ID).Error)
		assert.Nil(t, reloaded.AssigneeID)

		w, env = s.do(http.MethodDelete, fmt.Sprintf("%s/%d", base, admin.ID), member, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("transfer ownership", func(t *testing.T) {
		w, env := s.do(http.MethodPatch, fmt.Sprintf("%s/%d", base, admin.ID), owner, gin.H{"role": "owner"})
		require.Equal(t, http.StatusOK, w.Code, env.Error)
		assert.Equal(t, models.RoleOwner, decode[types.MemberResponse](t, env).Role)

		var reloaded models.Team
		require.NoError(t, db.DB.First(&reloaded, team.ID).Error)
		assert.Equal(t, admin.ID, reloaded.OwnerID)

		var previous models.TeamMember
		require.NoError(t, db.DB.Where("team_id = ? AND user_id = ?", team.ID, owner.ID).First(&previous).Error)
		assert.Equal(t, models.RoleAdmin, previous.Role)
	})
}

func TestDashboard(t *testing.T) {
	s := newServer(t)
	owner := testutil.CreateUser(t, "Owner")
	team := testutil.CreateTeam(t, owner, "Core")

	testutil.CreateTask(t, models.Task{TeamID: team.ID, CreatorID: owner.ID, AssigneeID: &owner.ID, Status: models.TaskStatusInProgress, Priority: models.PriorityHigh})
	testutil.CreateTask(t, models.Task{TeamID: team.ID, CreatorID: owner.ID, Status: models.TaskStatusDone})

	w, env := s.do(http.MethodGet, fmt.Sprintf("/api/teams/%d/dashboard", team.ID), owner, nil)
	require.Equal(t, http.StatusOK, w.Code, env.Error)

	dash := decode[types.DashboardResponse](t, env)
	assert.Equal(t, int64(2), dash.Total)
	assert.Equal(t, int64(1), dash.ByStatus[models.TaskStatusInProgress])
	assert.Equal(t, int64(1), dash.ByStatus[models.TaskStatusDone])
	assert.Equal(t, int64(0), dash.ByStatus[models.TaskStatusReview])
	assert.Equal(t, int64(1), dash.ByPriority[models.PriorityHigh])
	assert.Len(t, dash.MyOpenTasks, 1)
}
