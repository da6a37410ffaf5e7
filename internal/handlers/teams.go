package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/flowra-dev/flowra/db"
	"github.com/flowra-dev/flowra/internal/models"
	"github.com/flowra-dev/flowra/internal/services"
	"github.com/flowra-dev/flowra/internal/types"
	"github.com/flowra-dev/flowra/internal/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (h *Handler) CreateTeam(ctx *gin.Context) {
	userID, ok := utils.MustUserID(ctx)
	if !ok {
		return
	}

	var body types.CreateTeamRequest
	if !utils.BindJSON(ctx, &body) {
		return
	}

	team := models.Team{
		Name:                strings.TrimSpace(body.Name),
		Description:         body.Description,
		OwnerID:             userID,
		ReminderHoursBefore: models.DefaultReminderHoursBefore,
		DigestHour:          models.DefaultDigestHour,
	}

	if team.Name == "" {
		utils.RespondError(ctx, http.StatusBadRequest, "Team name is required")
		return
	}

	err := db.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&team).Error; err != nil {
			return err
		}

		return tx.Create(&models.TeamMember{
			TeamID: team.ID,
			UserID: userID,
			Role:   models.RoleOwner,
		}).Error
	})

	if err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	utils.RespondOK(ctx, http.StatusCreated, toTeamResponse(team, models.RoleOwner))
}

func (h *Handler) ListTeams(ctx *gin.Context) {
	userID, ok := utils.MustUserID(ctx)
	if !ok {
		return
	}

	var memberships []models.TeamMember

	err := db.DB.WithContext(ctx).
		Joins("Team").
		Where("team_members.user_id = ?", userID).
		Order("team_members.created_at ASC").
		Find(&memberships).Error

	if err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	response := make([]types.TeamResponse, 0, len(memberships))
	for _, m := range memberships {
		if m.Team.ID == 0 {
			continue
		}
		response = append(response, toTeamResponse(m.Team, m.Role))
	}

	utils.RespondOK(ctx, http.StatusOK, response)
}

func (h *Handler) GetTeam(ctx *gin.Context) {
	access, ok := h.teamAccess(ctx, models.RoleMember)
	if !ok {
		return
	}

	utils.RespondOK(ctx, http.StatusOK, toTeamResponse(access.Team, access.Member.Role))
}

func (h *Handler) UpdateTeam(ctx *gin.Context) {
	access, ok := h.teamAccess(ctx, models.RoleAdmin)
	if !ok {
		return
	}

	var body types.UpdateTeamRequest
	if !utils.BindJSON(ctx, &body) {
		return
	}

	updates := make(map[string]interface{})

	if body.Name != nil {
		name := strings.TrimSpace(*body.Name)
		if name == "" {
			utils.RespondError(ctx, http.StatusBadRequest, "Team name cannot be empty")
			return
		}
		updates["name"] = name
	}

	if body.Description != nil {
		updates["description"] = *body.Description
	}

	if len(updates) > 0 {
		if err := db.DB.WithContext(ctx).Model(&access.Team).Updates(updates).Error; err != nil {
			utils.RespondErr(ctx, err)
			return
		}

		if err := db.DB.WithContext(ctx).First(&access.Team, access.Team.ID).Error; err != nil {
			utils.RespondErr(ctx, err)
			return
		}
	}

	h.hub.BroadcastRefresh(access.Team.ID, types.ResourceTeam)

	utils.RespondOK(ctx, http.StatusOK, toTeamResponse(access.Team, access.Member.Role))
}

func (h *Handler) DeleteTeam(ctx *gin.Context) {
	access, ok := h.teamAccess(ctx, models.RoleOwner)
	if !ok {
		return
	}

	err := db.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteTeams(tx, []uint{access.Team.ID})
	})

	if err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	h.logger.Info("team deleted", zap.Uint("team_id", access.Team.ID))
	h.hub.BroadcastRefresh(access.Team.ID, types.ResourceTeam)

	utils.RespondOK(ctx, http.StatusOK, nil)
}

// deleteTeams removes teams and everything that hangs off them.
func deleteTeams(tx *gorm.DB, teamIDs []uint) error {
	tasks := tx.Unscoped().Model(&models.Task{}).Select("id").Where("team_id IN ?", teamIDs)

	steps := []struct {
		model interface{}
		query string
		arg   interface{}
	}{
		{&models.TaskTag{}, "task_id IN (?)", tasks},
		{&models.TaskComment{}, "task_id IN (?)", tasks},
		{&models.Task{}, "team_id IN ?", teamIDs},
		{&models.Project{}, "team_id IN ?", teamIDs},
		{&models.TeamMember{}, "team_id IN ?", teamIDs},
		{&models.Team{}, "id IN ?", teamIDs},
	}

	for _, step := range steps {
		if err := tx.Unscoped().Where(step.query, step.arg).Delete(step.model).Error; err != nil {
			return err
		}
	}

	return nil
}

func (h *Handler) ListMembers(ctx *gin.Context) {
	access, ok := h.teamAccess(ctx, models.RoleMember)
	if !ok {
		return
	}

	members, err := loadMembers(ctx, access.Team.ID)
	if err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	utils.RespondOK(ctx, http.StatusOK, members)
}

func loadMembers(ctx *gin.Context, teamID uint) ([]types.MemberResponse, error) {
	var members []models.TeamMember

	err := db.DB.WithContext(ctx).
		Preload("User").
		Where("team_id = ?", teamID).
		Order("created_at ASC").
		Find(&members).Error

	if err != nil {
		return nil, err
	}

	response := make([]types.MemberResponse, 0, len(members))
	for _, m := range members {
		response = append(response, toMemberResponse(m))
	}

	return response, nil
}

func toMemberResponse(m models.TeamMember) types.MemberResponse {
	return types.MemberResponse{
		UserID:    m.UserID,
		Name:      m.User.Name,
		Email:     m.User.Email,
		AvatarURL: m.User.AvatarURL,
		Role:      m.Role,
		JoinedAt:  m.CreatedAt,
	}
}

func (h *Handler) AddMember(ctx *gin.Context) {
	access, ok := h.teamAccess(ctx, models.RoleAdmin)
	if !ok {
		return
	}

	var body types.AddMemberRequest
	if !utils.BindJSON(ctx, &body) {
		return
	}

	role := body.Role
	if role == "" {
		role = models.RoleMember
	}

	var user models.User
	err := db.DB.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(body.Email))).First(&user).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondError(ctx, http.StatusNotFound, "No user with that email")
			return
		}
		utils.RespondErr(ctx, err)
		return
	}

	isMember, err := utils.IsTeamMember(ctx, access.Team.ID, user.ID)
	if err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	if isMember {
		utils.RespondError(ctx, http.StatusBadRequest, "User is already a member of this team")
		return
	}

	member := models.TeamMember{TeamID: access.Team.ID, UserID: user.ID, Role: role}
	if err := db.DB.WithContext(ctx).Create(&member).Error; err != nil {
		utils.RespondErr(ctx, err)
		return
	}
	member.User = user

	actor, _ := utils.GetCurrentUser(ctx)

	h.notify(ctx, services.Event{
		Type:       models.NotificationTeamMemberAdded,
		TeamID:     access.Team.ID,
		ActorID:    actor.ID,
		Recipients: []uint{user.ID},
		Title:      "Added to " + access.Team.Name,
		Message:    fmt.Sprintf("%s added you to %s as %s", actor.Name, access.Team.Name, role),
		Data:       map[string]any{"team_id": access.Team.ID, "role": role},
	})

	h.hub.BroadcastRefresh(access.Team.ID, types.ResourceMembers)

	utils.RespondOK(ctx, http.StatusCreated, toMemberResponse(member))
}

// UpdateMemberRole is owner-only. Granting "owner" transfers ownership and
// demotes the previous owner to admin.
func (h *Handler) UpdateMemberRole(ctx *gin.Context) {
	access, ok := h.teamAccess(ctx, models.RoleOwner)
	if !ok {
		return
	}

	targetID, err := utils.GetUintParam(ctx, "user_id")
	if err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	var body types.UpdateMemberRoleRequest
	if !utils.BindJSON(ctx, &body) {
		return
	}

	if targetID == access.Member.UserID {
		utils.RespondError(ctx, http.StatusBadRequest, "Transfer ownership to another member instead")
		return
	}

	var target models.TeamMember
	err = db.DB.WithContext(ctx).Preload("User").
		Where("team_id = ? AND user_id = ?", access.Team.ID, targetID).
		First(&target).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondError(ctx, http.StatusNotFound, "Member not found")
			return
		}
		utils.RespondErr(ctx, err)
		return
	}

	err = db.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if body.Role == models.RoleOwner {
			if err := tx.Model(&access.Member).Update("role", models.RoleAdmin).Error; err != nil {
				return err
			}
			if err := tx.Model(&access.Team).Update("owner_id", target.UserID).Error; err != nil {
				return err
			}
		}

		return tx.Model(&target).Update("role", body.Role).Error
	})

	if err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	if body.Role == models.RoleOwner {
		h.logger.Info("team ownership transferred",
			zap.Uint("team_id", access.Team.ID),
			zap.Uint("from_user_id", access.Member.UserID),
			zap.Uint("to_user_id", target.UserID),
		)
	}

	h.hub.BroadcastRefresh(access.Team.ID, types.ResourceMembers)

	utils.RespondOK(ctx, http.StatusOK, toMemberResponse(target))
}

// RemoveMember lets admins remove members, the owner remove anyone but
// themself, and any member leave. Open tasks of the removed member become
// unassigned.
func (h *Handler) RemoveMember(ctx *gin.Context) {
	access, ok := h.teamAccess(ctx, models.RoleMember)
	if !ok {
		return
	}

	targetID, err := utils.GetUintParam(ctx, "user_id")
	if err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	var target models.TeamMember
	err = db.DB.WithContext(ctx).
		Where("team_id = ? AND user_id = ?", access.Team.ID, targetID).
		First(&target).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondError(ctx, http.StatusNotFound, "Member not found")
			return
		}
		utils.RespondErr(ctx, err)
		return
	}

	if target.Role == models.RoleOwner {
		utils.RespondError(ctx, http.StatusBadRequest, "The team owner cannot be removed")
		return
	}

	self := target.UserID == access.Member.UserID

	if !self {
		if !access.IsAdmin() {
			utils.RespondErr(ctx, types.Forbidden("Insufficient permissions"))
			return
		}
		if target.Role == models.RoleAdmin && !access.IsOwner() {
			utils.RespondErr(ctx, types.Forbidden("Only the owner can remove an admin"))
			return
		}
	}

	err = db.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Task{}).
			Where("team_id = ? AND assignee_id = ? AND status <> ?", access.Team.ID, target.UserID, models.TaskStatusDone).
			Update("assignee_id", nil).Error; err != nil {
			return err
		}

		return tx.Delete(&target).Error
	})

	if err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	h.hub.BroadcastRefresh(access.Team.ID, types.ResourceMembers)
	h.hub.BroadcastRefresh(access.Team.ID, types.ResourceTasks)

	utils.RespondOK(ctx, http.StatusOK, nil)
}

// teamAccess resolves :team_id for the caller, answering the error itself
// when access is denied.
func (h *Handler) teamAccess(ctx *gin.Context, minRole string) (*utils.TeamAccess, bool) {
	userID, ok := utils.MustUserID(ctx)
	if !ok {
		return nil, false
	}

	teamID, err := utils.GetUintParam(ctx, "team_id")
	if err != nil {
		utils.RespondErr(ctx, err)
		return nil, false
	}

	access, err := utils.RequireTeamRole(ctx, teamID, userID, minRole)
	if err != nil {
		utils.RespondErr(ctx, err)
		return nil, false
	}

	return access, true
}
