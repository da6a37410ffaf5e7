package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port        string `yaml:"port"`
	Environment string `yaml:"environment"`
	LogLevel    string `yaml:"log_level"`

	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	OAuth     OAuthConfig     `yaml:"oauth"`
	Push      PushConfig      `yaml:"push"`
	Discord   DiscordConfig   `yaml:"discord"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	ClientURL      string   `yaml:"client_url"`
	PublicURL      string   `yaml:"public_url"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type AuthConfig struct {
	JWTSecret    string `yaml:"jwt_secret"`
	CookieDomain string `yaml:"cookie_domain"`
	CronSecret   string `yaml:"cron_secret"`
}

type OAuthProviderConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

type OAuthConfig struct {
	Google OAuthProviderConfig `yaml:"google"`
	Kakao  OAuthProviderConfig `yaml:"kakao"`
}

type PushConfig struct {
	VAPIDPublicKey  string `yaml:"vapid_public_key"`
	VAPIDPrivateKey string `yaml:"vapid_private_key"`
	Subject         string `yaml:"subject"`
}

// Enabled reports whether both halves of the VAPID key pair are present.
func (p PushConfig) Enabled() bool {
	return p.VAPIDPublicKey != "" && p.VAPIDPrivateKey != ""
}

type DiscordConfig struct {
	Username  string `yaml:"username"`
	AvatarURL string `yaml:"avatar_url"`
}

type SchedulerConfig struct {
	Interval  time.Duration `yaml:"interval"`
	AutoStart bool          `yaml:"auto_start"`
}

type RateLimitConfig struct {
	RedisURL  string `yaml:"redis_url"`
	AuthLimit int    `yaml:"auth_limit"`
}

// Default returns the configuration used when neither a YAML file nor the
// environment sets a value.
func Default() *Config {
	return &Config{
		Port:        "3000",
		Environment: "development",
		LogLevel:    "info",
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Hour,
		},
		Push: PushConfig{
			Subject: "mailto:admin@flowra.app",
		},
		Discord: DiscordConfig{
			Username: "Flowra",
		},
		Scheduler: SchedulerConfig{
			Interval:  5 * time.Minute,
			AutoStart: true,
		},
		RateLimit: RateLimitConfig{
			AuthLimit: 20,
		},
		AllowedOrigins: []string{
			"http://localhost:3000",
			"http://localhost:5173",
		},
	}
}

// Load reads .env files (missing files are ignored), then the YAML file named
// by FLOWRA_CONFIG if any, then applies environment overrides.
func Load(envFiles ...string) (*Config, error) {
	_ = godotenv.Load(envFiles...)

	cfg := Default()

	if path := os.Getenv("FLOWRA_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return nil
}

func (c *Config) applyEnvOverrides() {
	setString(&c.Port, "PORT")
	setString(&c.Environment, "ENVIRONMENT")
	setString(&c.LogLevel, "LOG_LEVEL")

	setString(&c.Database.URL, "DATABASE_URL")
	setInt(&c.Database.MaxOpenConns, "DB_MAX_OPEN_CONNS")
	setInt(&c.Database.MaxIdleConns, "DB_MAX_IDLE_CONNS")
	setDuration(&c.Database.ConnMaxLifetime, "DB_CONN_MAX_LIFETIME")

	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setString(&c.Auth.CookieDomain, "COOKIE_DOMAIN")
	setString(&c.Auth.CronSecret, "CRON_SECRET")

	setString(&c.OAuth.Google.ClientID, "GOOGLE_CLIENT_ID")
	setString(&c.OAuth.Google.ClientSecret, "GOOGLE_CLIENT_SECRET")
	setString(&c.OAuth.Kakao.ClientID, "KAKAO_CLIENT_ID")
	setString(&c.OAuth.Kakao.ClientSecret, "KAKAO_CLIENT_SECRET")

	setString(&c.Push.VAPIDPublicKey, "VAPID_PUBLIC_KEY")
	setString(&c.Push.VAPIDPrivateKey, "VAPID_PRIVATE_KEY")
	setString(&c.Push.Subject, "VAPID_SUBJECT")

	setString(&c.Discord.Username, "DISCORD_USERNAME")
	setString(&c.Discord.AvatarURL, "DISCORD_AVATAR_URL")

	setDuration(&c.Scheduler.Interval, "REMINDER_INTERVAL")
	setBool(&c.Scheduler.AutoStart, "SCHEDULER_AUTOSTART")

	setString(&c.RateLimit.RedisURL, "REDIS_URL")
	setInt(&c.RateLimit.AuthLimit, "AUTH_RATE_LIMIT")

	setString(&c.ClientURL, "CLIENT_URL")
	setString(&c.PublicURL, "PUBLIC_URL")

	if c.ClientURL != "" && !contains(c.AllowedOrigins, c.ClientURL) {
		c.AllowedOrigins = append(c.AllowedOrigins, c.ClientURL)
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		for _, origin := range strings.Split(origins, ",") {
			trimmed := strings.TrimSpace(origin)
			if trimmed != "" && !contains(c.AllowedOrigins, trimmed) {
				c.AllowedOrigins = append(c.AllowedOrigins, trimmed)
			}
		}
	}
}

func (c *Config) Validate() error {
	var errs []error

	if c.Database.URL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Scheduler.Interval < time.Second {
		errs = append(errs, fmt.Errorf("REMINDER_INTERVAL must be at least 1s, got %s", c.Scheduler.Interval))
	}

	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func setString(dst *string, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = value
	}
}

func setInt(dst *int, key string) {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			*dst = d
		}
	}
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
