package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/flowra-dev/flowra/internal/types"
	"github.com/gin-gonic/gin"
)

// GetUintParam parses a numeric path parameter such as team_id or task_id.
func GetUintParam(ctx *gin.Context, name string) (uint, error) {
	raw := ctx.Param(name)

	if raw == "" {
		return 0, types.BadRequest(fmt.Sprintf("Missing %s", name))
	}

	id, err := strconv.ParseUint(raw, 10, 32)

	if err != nil || id == 0 {
		return 0, types.BadRequest(fmt.Sprintf("Invalid %s", name))
	}

	return uint(id), nil
}

// GetUintQuery returns 0, nil when the query parameter is absent.
func GetUintQuery(ctx *gin.Context, name string) (uint, error) {
	raw := strings.TrimSpace(ctx.Query(name))

	if raw == "" {
		return 0, nil
	}

	id, err := strconv.ParseUint(raw, 10, 32)

	if err != nil || id == 0 {
		return 0, types.BadRequest(fmt.Sprintf("Invalid %s", name))
	}

	return uint(id), nil
}

// GetTimeQuery accepts RFC3339 timestamps or plain YYYY-MM-DD dates (UTC
// midnight). A nil result means the parameter was absent.
func GetTimeQuery(ctx *gin.Context, name string) (*time.Time, error) {
	raw := strings.TrimSpace(ctx.Query(name))

	if raw == "" {
		return nil, nil
	}

	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t, nil
	}

	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return &t, nil
	}

	return nil, types.BadRequest(fmt.Sprintf("Invalid %s, expected RFC3339 or YYYY-MM-DD", name))
}

// Pagination reads limit and offset, clamping limit to [1, max].
func Pagination(ctx *gin.Context, defaultLimit, maxLimit int) (int, int, error) {
	limit := defaultLimit
	offset := 0

	if raw := ctx.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return 0, 0, types.BadRequest("Invalid limit")
		}
		limit = v
	}

	if limit > maxLimit {
		limit = maxLimit
	}

	if raw := ctx.Query("offset"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return 0, 0, types.BadRequest("Invalid offset")
		}
		offset = v
	}

	return limit, offset, nil
}
