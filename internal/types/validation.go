package types

import (
	"net/url"
	"strings"
	"sync"

	"github.com/flowra-dev/flowra/internal/models"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterValidators installs Flowra's custom binding tags on gin's
// validator. Safe to call more than once.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}

		_ = v.RegisterValidation("task_status", func(fl validator.FieldLevel) bool {
			return models.ValidTaskStatus(fl.Field().String())
		})
		_ = v.RegisterValidation("task_priority", func(fl validator.FieldLevel) bool {
			return models.ValidTaskPriority(fl.Field().String())
		})
		_ = v.RegisterValidation("team_role", func(fl validator.FieldLevel) bool {
			return models.ValidRole(fl.Field().String())
		})
		_ = v.RegisterValidation("discord_webhook", func(fl validator.FieldLevel) bool {
			return IsDiscordWebhookURL(fl.Field().String())
		})
	})
}

// IsDiscordWebhookURL accepts https webhook URLs on Discord's own hosts only,
// so team admins cannot point the server at arbitrary endpoints.
func IsDiscordWebhookURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme != "https" {
		return false
	}

	host := strings.ToLower(parsed.Hostname())
	switch host {
	case "discord.com", "discordapp.com", "canary.discord.com", "ptb.discord.com":
	default:
		return false
	}

	return strings.HasPrefix(parsed.Path, "/api/webhooks/")
}
