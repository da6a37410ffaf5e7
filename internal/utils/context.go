package utils

import (
	"fmt"
	"net/http"

	"github.com/flowra-dev/flowra/internal/middleware"
	"github.com/flowra-dev/flowra/internal/types"
	"github.com/gin-gonic/gin"
)

func GetCurrentUser(ctx *gin.Context) (middleware.AuthenticatedUser, error) {
	user, exists := ctx.Get(types.ContextUserKey)

	if !exists {
		return middleware.AuthenticatedUser{}, fmt.Errorf("user not authenticated")
	}

	authenticatedUser, ok := user.(middleware.AuthenticatedUser)

	if !ok {
		return middleware.AuthenticatedUser{}, fmt.Errorf("invalid user type in context")
	}

	return authenticatedUser, nil
}

func GetCurrentUserID(ctx *gin.Context) (uint, error) {
	user, err := GetCurrentUser(ctx)

	if err != nil {
		return 0, err
	}

	return user.ID, nil
}

// MustUserID aborts with 401 when the request carries no authenticated user.
func MustUserID(ctx *gin.Context) (uint, bool) {
	userID, err := GetCurrentUserID(ctx)

	if err != nil {
		RespondError(ctx, http.StatusUnauthorized, "User not authenticated")
		return 0, false
	}

	return userID, true
}
