package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/flowra-dev/flowra/db"
	"github.com/flowra-dev/flowra/internal/auth"
	"github.com/flowra-dev/flowra/internal/models"
	"github.com/flowra-dev/flowra/internal/types"
	"github.com/flowra-dev/flowra/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const oauthStateTTL = 10 * time.Minute

func (h *Handler) setCookie(ctx *gin.Context, name, value string, maxAge int) {
	secure := h.cfg.IsProduction()
	sameSite := http.SameSiteLaxMode
	if secure {
		sameSite = http.SameSiteNoneMode
	}

	http.SetCookie(ctx.Writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   h.cfg.Auth.CookieDomain,
		MaxAge:   maxAge,
		Secure:   secure,
		HttpOnly: true,
		SameSite: sameSite,
	})
}

func (h *Handler) issueToken(ctx *gin.Context, user models.User) (string, error) {
	token, err := auth.GenerateJWT(user.ID, user.Email)
	if err != nil {
		return "", err
	}

	h.setCookie(ctx, types.TokenCookieName, token, int(auth.TokenTTL.Seconds()))
	return token, nil
}

func (h *Handler) Register(ctx *gin.Context) {
	var body types.CreateUserRequest

	if !utils.BindJSON(ctx, &body) {
		return
	}

	email := strings.ToLower(strings.TrimSpace(body.Email))

	var existing models.User
	err := db.DB.WithContext(ctx).Unscoped().Where("email = ?", email).First(&existing).Error

	if err == nil {
		utils.RespondError(ctx, http.StatusBadRequest, "Email already exists")
		return
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		utils.RespondErr(ctx, err)
		return
	}

	passwordHash, err := auth.HashPassword(body.Password)
	if err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	user := models.User{
		Name:         strings.TrimSpace(body.Name),
		Email:        email,
		PasswordHash: passwordHash,
		Provider:     models.ProviderLocal,
	}

	if err := db.DB.WithContext(ctx).Create(&user).Error; err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	token, err := h.issueToken(ctx, user)
	if err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	h.logger.Info("user registered", zap.Uint("user_id", user.ID))

	utils.RespondOK(ctx, http.StatusCreated, types.AuthResponse{User: toUserResponse(user), Token: token})
}

func (h *Handler) Login(ctx *gin.Context) {
	var body types.LoginUserRequest

	if !utils.BindJSON(ctx, &body) {
		return
	}

	var user models.User
	err := db.DB.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(body.Email))).First(&user).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondError(ctx, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		utils.RespondErr(ctx, err)
		return
	}

	if !user.HasPassword() || !auth.CheckPassword(user.PasswordHash, body.Password) {
		utils.RespondError(ctx, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	token, err := h.issueToken(ctx, user)
	if err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	utils.RespondOK(ctx, http.StatusOK, types.AuthResponse{User: toUserResponse(user), Token: token})
}

func (h *Handler) Logout(ctx *gin.Context) {
	h.setCookie(ctx, types.TokenCookieName, "", -1)
	utils.RespondOK(ctx, http.StatusOK, nil)
}

func (h *Handler) Me(ctx *gin.Context) {
	userID, ok := utils.MustUserID(ctx)
	if !ok {
		return
	}

	var user models.User
	if err := db.DB.WithContext(ctx).First(&user, userID).Error; err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	utils.RespondOK(ctx, http.StatusOK, toUserResponse(user))
}

func (h *Handler) UpdateMe(ctx *gin.Context) {
	userID, ok := utils.MustUserID(ctx)
	if !ok {
		return
	}

	var body types.UpdateUserRequest
	if !utils.BindJSON(ctx, &body) {
		return
	}

	var user models.User
	if err := db.DB.WithContext(ctx).First(&user, userID).Error; err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	updates := make(map[string]interface{})

	if name := strings.TrimSpace(body.Name); name != "" {
		updates["name"] = name
	}

	if body.AvatarURL != "" {
		updates["avatar_url"] = body.AvatarURL
	}

	if body.Email != "" {
		email := strings.ToLower(strings.TrimSpace(body.Email))

		if email != user.Email {
			var count int64
			if err := db.DB.WithContext(ctx).Unscoped().Model(&models.User{}).
				Where("email = ? AND id <> ?", email, user.ID).
				Count(&count).Error; err != nil {
				utils.RespondErr(ctx, err)
				return
			}

			if count > 0 {
				utils.RespondError(ctx, http.StatusBadRequest, "Email already exists")
				return
			}

			updates["email"] = email
		}
	}

	if body.NewPassword != "" {
		// OAuth-only accounts may set a first password without a current one.
		if user.HasPassword() {
			if body.CurrentPassword == "" {
				utils.RespondError(ctx, http.StatusBadRequest, "Current password is required to change password")
				return
			}

			if !auth.CheckPassword(user.PasswordHash, body.CurrentPassword) {
				utils.RespondError(ctx, http.StatusBadRequest, "Current password is incorrect")
				return
			}
		}

		passwordHash, err := auth.HashPassword(body.NewPassword)
		if err != nil {
			utils.RespondErr(ctx, err)
			return
		}

		updates["password_hash"] = passwordHash
	}

	if len(updates) == 0 {
		utils.RespondError(ctx, http.StatusBadRequest, "No valid fields to update")
		return
	}

	if err := db.DB.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	if err := db.DB.WithContext(ctx).First(&user, user.ID).Error; err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	utils.RespondOK(ctx, http.StatusOK, toUserResponse(user))
}

// DeleteMe removes the account. Teams the user owns go with it.
func (h *Handler) DeleteMe(ctx *gin.Context) {
	userID, ok := utils.MustUserID(ctx)
	if !ok {
		return
	}

	var body types.DeleteUserRequest
	if ctx.Request.ContentLength != 0 {
		if !utils.BindJSON(ctx, &body) {
			return
		}
	}

	var user models.User
	if err := db.DB.WithContext(ctx).First(&user, userID).Error; err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	if user.HasPassword() {
		if body.Password == "" {
			utils.RespondError(ctx, http.StatusBadRequest, "Password is required for account deletion")
			return
		}

		if !auth.CheckPassword(user.PasswordHash, body.Password) {
			utils.RespondError(ctx, http.StatusBadRequest, "Incorrect password")
			return
		}
	}

	err := db.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owned []uint
		if err := tx.Model(&models.Team{}).Where("owner_id = ?", user.ID).Pluck("id", &owned).Error; err != nil {
			return err
		}

		if len(owned) > 0 {
			if err := deleteTeams(tx, owned); err != nil {
				return err
			}
		}

		if err := tx.Model(&models.Task{}).
			Where("assignee_id = ?", user.ID).
			Update("assignee_id", nil).Error; err != nil {
			return err
		}

		for _, model := range []interface{}{
			&models.TeamMember{},
			&models.Notification{},
			&models.NotificationPreference{},
			&models.PushSubscription{},
		} {
			if err := tx.Unscoped().Where("user_id = ?", user.ID).Delete(model).Error; err != nil {
				return err
			}
		}

		return tx.Unscoped().Delete(&user).Error
	})

	if err != nil {
		utils.RespondErr(ctx, err)
		return
	}

	h.setCookie(ctx, types.TokenCookieName, "", -1)
	h.logger.Info("user deleted", zap.Uint("user_id", user.ID))

	utils.RespondOK(ctx, http.StatusOK, nil)
}

func (h *Handler) OAuthStart(ctx *gin.Context) {
	provider, err := h.providers.Get(ctx.Param("provider"))
	if err != nil {
		utils.RespondError(ctx, http.StatusNotFound, "Unknown OAuth provider")
		return
	}

	state := uuid.NewString()
	h.setCookie(ctx, types.StateCookieName, state, int(oauthStateTTL.Seconds()))

	ctx.Redirect(http.StatusFound, provider.AuthCodeURL(state))
}

// OAuthCallback finishes the provider flow and redirects to the client with
// the session cookie set, or with ?error= on failure.
func (h *Handler) OAuthCallback(ctx *gin.Context) {
	provider, err := h.providers.Get(ctx.Param("provider"))
	if err != nil {
		utils.RespondError(ctx, http.StatusNotFound, "Unknown OAuth provider")
		return
	}

	state, _ := ctx.Cookie(types.StateCookieName)
	h.setCookie(ctx, types.StateCookieName, "", -1)

	if state == "" || ctx.Query("state") != state {
		h.redirectToClient(ctx, "invalid_state")
		return
	}

	if providerErr := ctx.Query("error"); providerErr != "" {
		h.redirectToClient(ctx, providerErr)
		return
	}

	code := ctx.Query("code")
	if code == "" {
		h.redirectToClient(ctx, "missing_code")
		return
	}

	profile, err := provider.Authenticate(ctx.Request.Context(), code)
	if err != nil {
		h.logger.Warn("oauth authentication failed", zap.String("provider", provider.Name), zap.Error(err))
		h.redirectToClient(ctx, "authentication_failed")
		return
	}

	user, err := upsertOAuthUser(ctx, provider.Name, profile)
	if errors.Is(err, types.ErrEmailUnverified) {
		h.logger.Warn("oauth email unverified", zap.String("provider", provider.Name))
		h.redirectToClient(ctx, "email_unverified")
		return
	}
	if err != nil {
		h.logger.Error("oauth user upsert failed", zap.String("provider", provider.Name), zap.Error(err))
		h.redirectToClient(ctx, "account_error")
		return
	}

	if _, err := h.issueToken(ctx, user); err != nil {
		h.logger.Error("failed to issue token", zap.Error(err))
		h.redirectToClient(ctx, "token_error")
		return
	}

	h.redirectToClient(ctx, "")
}

func (h *Handler) redirectToClient(ctx *gin.Context, errorCode string) {
	target := strings.TrimSuffix(h.cfg.ClientURL, "/") + "/auth/callback"

	if errorCode != "" {
		target += "?error=" + url.QueryEscape(errorCode)
	}

	ctx.Redirect(http.StatusFound, target)
}

// upsertOAuthUser finds the user by provider identity, then links an existing
// account with the same email, and otherwise creates one. Only an email the
// provider has verified may link to an existing account.
func upsertOAuthUser(ctx *gin.Context, providerName string, profile auth.Profile) (models.User, error) {
	var user models.User

	err := db.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("provider = ? AND provider_id = ?", providerName, profile.ProviderID).First(&user).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if profile.Email != "" {
			err = tx.Where("email = ?", profile.Email).First(&user).Error
			if err == nil {
				if !profile.EmailVerified {
					user = models.User{}
					return types.ErrEmailUnverified
				}
				if user.ProviderID != nil {
					return nil
				}

				updates := map[string]interface{}{
					"provider":    providerName,
					"provider_id": profile.ProviderID,
				}
				if user.AvatarURL == "" && profile.AvatarURL != "" {
					updates["avatar_url"] = profile.AvatarURL
				}

				return tx.Model(&user).Updates(updates).Error
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}

		email := profile.Email
		if email == "" {
			email = providerName + "_" + profile.ProviderID + "@users.noreply.flowra.app"
		}

		name := profile.Name
		if name == "" {
			name = strings.SplitN(email, "@", 2)[0]
		}

		providerID := profile.ProviderID
		user = models.User{
			Name:       name,
			Email:      email,
			AvatarURL:  profile.AvatarURL,
			Provider:   providerName,
			ProviderID: &providerID,
		}

		return tx.Create(&user).Error
	})

	return user, err
}
