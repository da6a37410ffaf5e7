package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/flowra-dev/flowra/db"
	"github.com/gin-gonic/gin"
)

func (h *Handler) HealthCheck(ctx *gin.Context) {
	pingCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	database := "ok"

	if err := db.Ping(pingCtx); err != nil {
		status = http.StatusServiceUnavailable
		database = err.Error()
	}

	body := gin.H{
		"status":    "ok",
		"message":   "Flowra is running",
		"database":  database,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if status != http.StatusOK {
		body["status"] = "degraded"
	}

	if h.scheduler != nil {
		body["scheduler"] = h.scheduler.Status()
	}

	ctx.JSON(status, gin.H{"success": status == http.StatusOK, "data": body})
}
