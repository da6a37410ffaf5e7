package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/flowra-dev/flowra/db"
	"github.com/flowra-dev/flowra/internal/models"
	"github.com/flowra-dev/flowra/internal/types"
	"github.com/flowra-dev/flowra/internal/utils"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func (h *Handler) CreateProject(ctx *gin.Context) {
	access, ok := h.teamAccess(ctx, models.RoleAdmin)
	if !ok {
		return
	}

	var body types.CreateProjectRequest
	if !utils.BindJSON(ctx, &body) {
		return
	}

	project := models.Project{
		TeamID:      access.Team.ID,
		Name:        strings.TrimSpace(body.Name),
		Description: body.Description,
		Color:       body.Color,
	}

	if project.Name == "" {
		utils.RespondError(ctx, http.StatusBadRequest, "Project name is required")
		return
	}

	if err := db.DB.WithContext(ctx).Create(&project).Error; err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	h.hub.BroadcastRefresh(access.Team.ID, types.ResourceProjects)

	utils.RespondOK(ctx, http.StatusCreated, toProjectResponse(project))
}

func (h *Handler) ListProjects(ctx *gin.Context) {
	access, ok := h.teamAccess(ctx, models.RoleMember)
	if !ok {
		return
	}

	query := db.DB.WithContext(ctx).Where("team_id = ?", access.Team.ID)

	switch ctx.Query("archived") {
	case "true":
		query = query.Where("archived = ?", true)
	case "", "false":
		query = query.Where("archived = ?", false)
	case "all":
	default:
		utils.RespondError(ctx, http.StatusBadRequest, "Invalid archived filter")
		return
	}

	var projects []models.Project
	if err := query.Order("created_at ASC").Find(&projects).Error; err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	response := make([]types.ProjectResponse, 0, len(projects))
	for _, project := range projects {
		response = append(response, toProjectResponse(project))
	}

	utils.RespondOK(ctx, http.StatusOK, response)
}

func (h *Handler) GetProject(ctx *gin.Context) {
	project, _, ok := h.projectAccess(ctx, models.RoleMember)
	if !ok {
		return
	}

	utils.RespondOK(ctx, http.StatusOK, toProjectResponse(*project))
}

func (h *Handler) UpdateProject(ctx *gin.Context) {
	project, _, ok := h.projectAccess(ctx, models.RoleAdmin)
	if !ok {
		return
	}

	var body types.UpdateProjectRequest
	if !utils.BindJSON(ctx, &body) {
		return
	}

	updates := make(map[string]interface{})

	if body.Name != nil {
		name := strings.TrimSpace(*body.Name)
		if name == "" {
			utils.RespondError(ctx, http.StatusBadRequest, "Project name cannot be empty")
			return
		}
		updates["name"] = name
	}

	if body.Description != nil {
		updates["description"] = *body.Description
	}

	if body.Color != nil {
		updates["color"] = *body.Color
	}

	if body.Archived != nil {
		updates["archived"] = *body.Archived
	}

	if len(updates) > 0 {
		if err := db.DB.WithContext(ctx).Model(project).Updates(updates).Error; err != nil {
			utils.RespondErr(ctx, err)
			return
		}

		if err := db.DB.WithContext(ctx).First(project, project.ID).Error; err != nil {
			utils.RespondErr(ctx, err)
			return
		}
	}

	h.hub.BroadcastRefresh(project.TeamID, types.ResourceProjects)

	utils.RespondOK(ctx, http.StatusOK, toProjectResponse(*project))
}

// DeleteProject keeps the project's tasks and clears their project.
func (h *Handler) DeleteProject(ctx *gin.Context) {
	project, _, ok := h.projectAccess(ctx, models.RoleAdmin)
	if !ok {
		return
	}

	err := db.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Task{}).
			Where("project_id = ?", project.ID).
			Update("project_id", nil).Error; err != nil {
			return err
		}

		return tx.Delete(project).Error
	})

	if err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	h.hub.BroadcastRefresh(project.TeamID, types.ResourceProjects)
	h.hub.BroadcastRefresh(project.TeamID, types.ResourceTasks)

	utils.RespondOK(ctx, http.StatusOK, nil)
}

func (h *Handler) projectAccess(ctx *gin.Context, minRole string) (*models.Project, *utils.TeamAccess, bool) {
	userID, ok := utils.MustUserID(ctx)
	if !ok {
		return nil, nil, false
	}

	projectID, err := utils.GetUintParam(ctx, "project_id")
	if err != nil {
		utils.RespondErr(ctx, err)
		return nil, nil, false
	}

	var project models.Project
	if err := db.DB.WithContext(ctx).First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondError(ctx, http.StatusNotFound, "Project not found")
			return nil, nil, false
		}
		utils.RespondErr(ctx, err)
		return nil, nil, false
	}

	access, err := utils.RequireTeamRole(ctx, project.TeamID, userID, minRole)
	if err != nil {
		utils.RespondErr(ctx, err)
		return nil, nil, false
	}

	return &project, access, true
}
