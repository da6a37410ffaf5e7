package handlers_test

import (
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

var anonymous models.User

func TestRegisterAndLogin(t *testing.T) {
	s := newServer(t)

	w, env := s.do(http.MethodPost, "/api/auth/register", anonymous, gin.H{
		"name":     "Ada Lovelace",
		"email":    "Ada@Example.com",
		"password": "correct-horse",
	})
	require.Equal(t, http.StatusCreated, w.Code, env.Error)
	assert.True(t, env.Success)

	registered := decode[types.AuthResponse](t, env)
	assert.Equal(t, "ada@example.com", registered.User.Email)
	assert.Equal(t, models.ProviderLocal, registered.User.Provider)
	assert.NotEmpty(t, registered.Token)
	assert.Contains(t, w.Header().Get("Set-Cookie"), types.TokenCookieName+"=")

	w, env = s.do(http.MethodPost, "/api/auth/register", anonymous, gin.H{
		"name":     "Ada Again",
		"email":    "ada@example.com",
		"password": "correct-horse",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Email already exists", env.Error)

	w, env = s.do(http.MethodPost, "/api/auth/login", anonymous, gin.H{"email": "ada@example.com", "password": "correct-horse"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, registered.User.ID, decode[types.AuthResponse](t, env).User.ID)

	w, env = s.do(http.MethodPost, "/api/auth/login", anonymous, gin.H{"email": "ada@example.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid email or password", env.Error)

	w, _ = s.do(http.MethodPost, "/api/auth/login", anonymous, gin.H{"email": "nobody@example.com", "password": "whatever"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegister_Validation(t *testing.T) {
	s := newServer(t)

	for name, body := range map[string]gin.H{
		"bad email":      {"name": "A", "email": "not-an-email", "password": "long-enough"},
		"short password": {"name": "A", "email": "a@example.com", "password": "short"},
		"missing name":   {"email": "a@example.com", "password": "long-enough"},
	} {
		t.Run(name, func(t *testing.T) {
			w, env := s.do(http.MethodPost, "/api/auth/register", anonymous, body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "Invalid request", env.Error)
		})
	}
}

func TestMe(t *testing.T) {
	s := newServer(t)
	user := testutil.CreateUser(t, "Grace Hopper")

	w, _ := s.do(http.MethodGet, "/api/auth/me", anonymous, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, env := s.do(http.MethodGet, "/api/auth/me", user, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "grace.hopper@example.com", decode[types.UserResponse](t, env).Email)
}

func TestUpdateMe(t *testing.T) {
	s := newServer(t)
	user := testutil.CreateUser(t, "Grace")
	other := testutil.CreateUser(t, "Other")

	w, env := s.do(http.MethodPatch, "/api/auth/me", user, gin.H{"name": "Admiral Grace"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Admiral Grace", decode[types.UserResponse](t, env).Name)

	w, env = s.do(http.MethodPatch, "/api/auth/me", user, gin.H{"email": other.Email})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Email already exists", env.Error)

	w, env = s.do(http.MethodPatch, "/api/auth/me", user, gin.H{"new_password": "brand-new-pass"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Current password is required to change password", env.Error)

	w, _ = s.do(http.MethodPatch, "/api/auth/me", user, gin.H{"new_password": "brand-new-pass", "current_password": testutil.UserPassword})
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(http.MethodPost, "/api/auth/login", anonymous, gin.H{"email": user.Email, "password": "brand-new-pass"})
	assert.Equal(t, http.StatusOK, w.Code)

	w, env = s.do(http.MethodPatch, "/api/auth/me", user, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No valid fields to update", env.Error)
}

func TestDeleteMe(t *testing.T) {
	s := newServer(t)
	owner := testutil.CreateUser(t, "Owner")
	member := testutil.CreateUser(t, "Member")

	owned := testutil.CreateTeam(t, owner, "Owned")
	shared := testutil.CreateTeam(t, member, "Shared")
	testutil.AddMember(t, shared, owner, models.RoleMember)

	testutil.CreateTask(t, models.Task{TeamID: owned.ID, CreatorID: owner.ID})
	assigned := testutil.CreateTask(t, models.Task{TeamID: shared.ID, CreatorID: member.ID, AssigneeID: &owner.ID})

	w, env := s.do(http.MethodDelete, "/api/auth/me", owner, gin.H{"password": "nope-nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Incorrect password", env.Error)

	w, env = s.do(http.MethodDelete, "/api/auth/me", owner, gin.H{"password": testutil.UserPassword})
	require.Equal(t, http.StatusOK, w.Code, env.Error)
	assert.JSONEq(t, "null", string(env.Data))

	var count int64
	require.NoError(t, db.DB.Unscoped().Model(&models.User{}).Where("id = ?", owner.ID).Count(&count).Error)
	assert.Zero(t, count)

	require.NoError(t, db.DB.Unscoped().Model(&models.Team{}).Where("id = ?", owned.ID).Count(&count).Error)
	assert.Zero(t, count)

	require.NoError(t, db.DB.Model(&models.TeamMember{}).Where("team_id = ?", shared.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	var task models.Task
	require.NoError(t, db.DB.First(&task, assigned.ID).Error)
	assert.Nil(t, task.AssigneeID)
}

func TestOAuth_UnknownProvider(t *testing.T) {
	s := newServer(t)

	w, env := s.do(http.MethodGet, "/api/auth/oauth/github", anonymous, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Unknown OAuth provider", env.Error)
}

func TestLogout(t *testing.T) {
	s := newServer(t)

	w, env := s.do(http.MethodPost, "/api/auth/logout", anonymous, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	assert.Contains(t, w.Header().Get("Set-Cookie"), "Max-Age=0")
}
