package utils

import (
	"context"
	"errors"
	"net/http"

	"github.com/flowra-dev/flowra/db"
	"github.com/flowra-dev/flowra/internal/models"
	"github.com/flowra-dev/flowra/internal/types"
	"gorm.io/gorm"
)

// TeamAccess is the resolved team together with the caller's membership.
type TeamAccess struct {
	Team   models.Team
	Member models.TeamMember
}

func (a *TeamAccess) IsOwner() bool {
	return a.Member.Role == models.RoleOwner
}

func (a *TeamAccess) IsAdmin() bool {
	return a.Member.HasRole(models.RoleAdmin)
}

// RequireTeamRole loads the team and checks that userID is a member holding at
// least minRole. A missing team is 404, a non-member or a lower role is 403.
func RequireTeamRole(ctx context.Context, teamID, userID uint, minRole string) (*TeamAccess, error) {
	var access TeamAccess

	if err := db.DB.WithContext(ctx).First(&access.Team, teamID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NotFound("Team not found")
		}
		return nil, err
	}

	err := db.DB.WithContext(ctx).
		Where("team_id = ? AND user_id = ?", teamID, userID).
		First(&access.Member).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &types.APIError{
				Status:  http.StatusForbidden,
				Message: "You are not a member of this team",
				Err:     types.ErrNotTeamMember,
			}
		}
		return nil, err
	}

	if !access.Member.HasRole(minRole) {
		return nil, types.Forbidden("Insufficient permissions")
	}

	return &access, nil
}

// RequireTaskAccess loads a task and checks team membership of userID.
func RequireTaskAccess(ctx context.Context, taskID, userID uint, minRole string) (*models.Task, *TeamAccess, error) {
	var task models.Task

	if err := db.DB.WithContext(ctx).Preload("Tags").Preload("Assignee").First(&task, taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, types.NotFound("Task not found")
		}
		return nil, nil, err
	}

	access, err := RequireTeamRole(ctx, task.TeamID, userID, minRole)

	if err != nil {
		return nil, nil, err
	}

	return &task, access, nil
}

// IsTeamMember reports whether userID belongs to teamID.
func IsTeamMember(ctx context.Context, teamID, userID uint) (bool, error) {
	var count int64

	err := db.DB.WithContext(ctx).
		Model(&models.TeamMember{}).
		Where("team_id = ? AND user_id = ?", teamID, userID).
		Count(&count).Error

	return count > 0, err
}

// TeamMemberIDs returns the user ids of every member of teamID.
func TeamMemberIDs(ctx context.Context, teamID uint) ([]uint, error) {
	var ids []uint

	err := db.DB.WithContext(ctx).
		Model(&models.TeamMember{}).
		Where("team_id = ?", teamID).
		Pluck("user_id", &ids).Error

	return ids, err
}
