package handlers

import (
	"net/http"

	"github.com/flowra-dev/flowra/internal/utils"
	"github.com/gin-gonic/gin"
)

func (h *Handler) SchedulerStatus(ctx *gin.Context) {
	utils.RespondOK(ctx, http.StatusOK, h.scheduler.Status())
}

func (h *Handler) StartScheduler(ctx *gin.Context) {
	if err := h.scheduler.Start(); err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	utils.RespondOK(ctx, http.StatusOK, h.scheduler.Status())
}

func (h *Handler) StopScheduler(ctx *gin.Context) {
	h.scheduler.Stop()
	utils.RespondOK(ctx, http.StatusOK, h.scheduler.Status())
}

func (h *Handler) TickScheduler(ctx *gin.Context) {
	result, err := h.scheduler.TickReminders(ctx.Request.Context())
	if err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	utils.RespondOK(ctx, http.StatusOK, result)
}

func (h *Handler) RunAllScheduler(ctx *gin.Context) {
	result, err := h.scheduler.RunAllNow(ctx.Request.Context())
	if err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	utils.RespondOK(ctx, http.StatusOK, result)
}
