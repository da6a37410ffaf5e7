// Package testutil wires an in-memory SQLite database into db.DB and provides
// fixtures for handler, service and scheduler tests.
package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/flowra-dev/flowra/db"
	"github.com/flowra-dev/flowra/internal/auth"
	"github.com/flowra-dev/flowra/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	JWTSecret    = "test-secret"
	UserPassword = "password123"
)

var dbCounter atomic.Int64

// SetupDB opens a fresh in-memory database for the test, migrates it and
// installs it as db.DB until the test ends.
func SetupDB(t testing.TB) *gorm.DB {
	t.Helper()

	name := fmt.Sprintf("flowra_%d_%d", time.Now().UnixNano(), dbCounter.Add(1))
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", name)

	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	previous := db.DB
	db.DB = conn
	require.NoError(t, db.MigrateDatabase())

	require.NoError(t, auth.InitJWTSecret(JWTSecret))
	auth.UseMinPasswordCost()

	t.Cleanup(func() {
		_ = sqlDB.Close()
		db.DB = previous
	})

	return conn
}

func CreateUser(t testing.TB, name string) models.User {
	t.Helper()

	hash, err := auth.HashPassword(UserPassword)
	require.NoError(t, err)

	user := models.User{
		Name:         name,
		Email:        strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com",
		PasswordHash: hash,
		Provider:     models.ProviderLocal,
	}
	require.NoError(t, db.DB.Create(&user).Error)

	return user
}

// CreateTeam creates a team owned by owner, with owner as its first member.
func CreateTeam(t testing.TB, owner models.User, name string) models.Team {
	t.Helper()

	team := models.Team{
		Name:                name,
		OwnerID:             owner.ID,
		ReminderHoursBefore: models.DefaultReminderHoursBefore,
		DigestHour:          models.DefaultDigestHour,
	}
	require.NoError(t, db.DB.Create(&team).Error)

	AddMember(t, team, owner, models.RoleOwner)

	return team
}

func AddMember(t testing.TB, team models.Team, user models.User, role string) {
	t.Helper()

	require.NoError(t, db.DB.Create(&models.TeamMember{
		TeamID: team.ID,
		UserID: user.ID,
		Role:   role,
	}).Error)
}

// CreateTask fills in required defaults for anything task leaves empty.
func CreateTask(t testing.TB, task models.Task) models.Task {
	t.Helper()

	if task.Title == "" {
		task.Title = "Task"
	}
	if task.Status == "" {
		task.Status = models.TaskStatusTodo
	}
	if task.Priority == "" {
		task.Priority = models.PriorityMedium
	}

	require.NoError(t, db.DB.Create(&task).Error)

	return task
}

func BearerToken(t testing.TB, user models.User) string {
	t.Helper()

	token, err := auth.GenerateJWT(user.ID, user.Email)
	require.NoError(t, err)

	return "Bearer " + token
}

func TimePtr(t time.Time) *time.Time {
	return &t
}

func UintPtr(v uint) *uint {
	return &v
}
