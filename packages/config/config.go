// Package config
package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

type Config struct {
	ServiceURL        string
	RequestTimeout    time.Duration
	CheckInterval     time.Duration
	EvidenceThreshold int
	MaxLocations      int
	MainDelayMin      time.Duration
	MainDelayMax      time.Duration
	LocationDelayMin  time.Duration
	LocationDelayMax  time.Duration
	RulesFile         string

	// Notification channels; every one is optional.
	GitHubToken       string
	GitHubRepo        string
	NotificationEmail string
	EmailPassword     string
	WebhookURL        string
	PushoverToken     string
	PushoverUser      string
	PushbulletToken   string
	NtfyTopic         string

	// Alert cooldown (Redis); empty address disables it.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	AlertCooldown time.Duration

	MetricsAddr string
	LogFile     string
	LogLevel    string
}

func Load() (Config, error) {
	cfg := Config{}

	cfg.ServiceURL = getEnv("SERVICE_URL", "https://service.berlin.de/dienstleistung/324591/")
	cfg.RequestTimeout = getDuration("REQUEST_TIMEOUT", 30*time.Second)
	cfg.CheckInterval = getDuration("CHECK_INTERVAL", 0)
	cfg.EvidenceThreshold = getInt("EVIDENCE_THRESHOLD", 1)
	cfg.MaxLocations = getInt("MAX_LOCATIONS", 5)
	cfg.MainDelayMin = getDuration("MAIN_DELAY_MIN", 1*time.Second)
	cfg.MainDelayMax = getDuration("MAIN_DELAY_MAX", 3*time.Second)
	cfg.LocationDelayMin = getDuration("LOCATION_DELAY_MIN", 2*time.Second)
	cfg.LocationDelayMax = getDuration("LOCATION_DELAY_MAX", 4*time.Second)
	cfg.RulesFile = getEnv("RULES_FILE", "")

	cfg.GitHubToken = getEnv("GITHUB_TOKEN", "")
	cfg.GitHubRepo = getEnv("GITHUB_REPOSITORY", "")
	cfg.NotificationEmail = getEnv("NOTIFICATION_EMAIL", "")
	cfg.EmailPassword = getEnv("EMAIL_PASSWORD", "")
	cfg.WebhookURL = getEnv("WEBHOOK_URL", "")
	cfg.PushoverToken = getEnv("PUSHOVER_TOKEN", "")
	cfg.PushoverUser = getEnv("PUSHOVER_USER", "")
	cfg.PushbulletToken = getEnv("PUSHBULLET_TOKEN", "")
	cfg.NtfyTopic = getEnv("NTFY_TOPIC", "")

	cfg.RedisAddr = getEnv("REDIS_ADDR", "")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.RedisDB = getInt("REDIS_DB", 0)
	cfg.AlertCooldown = getDuration("ALERT_COOLDOWN", 6*time.Hour)

	cfg.MetricsAddr = getEnv("METRICS_ADDR", "")
	cfg.LogFile = getEnv("LOG_FILE", "logs/monitor.log")
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")

	if !cfg.HasGitHubConfig() && !cfg.HasEmailConfig() && !cfg.HasWebhookConfig() && !cfg.HasPushConfig() {
		slog.Warn("No notification channels configured; findings will only be logged")
	}

	return cfg, nil
}

func (c Config) HasGitHubConfig() bool {
	return c.GitHubToken != "" && c.GitHubRepo != ""
}

func (c Config) HasEmailConfig() bool {
	return c.NotificationEmail != "" && c.EmailPassword != ""
}

func (c Config) HasWebhookConfig() bool {
	return c.WebhookURL != ""
}

func (c Config) HasPushConfig() bool {
	return (c.PushoverToken != "" && c.PushoverUser != "") || c.PushbulletToken != "" || c.NtfyTopic != ""
}

// LogSummary logs the loaded configuration without exposing secrets.
func (c Config) LogSummary() {
	slog.Info("Configuration loaded",
		"service_url", c.ServiceURL,
		"github", configured(c.HasGitHubConfig()),
		"email", configured(c.HasEmailConfig()),
		"webhook", configured(c.HasWebhookConfig()),
		"push", configured(c.HasPushConfig()),
		"cooldown", configured(c.RedisAddr != ""),
		"check_interval", c.CheckInterval.String(),
		"request_timeout", c.RequestTimeout.String(),
		"evidence_threshold", c.EvidenceThreshold,
		"log_level", c.LogLevel,
	)
}

func configured(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		slog.Warn("Invalid integer environment variable", "key", key, "value", raw, "error", err)
		return defaultVal
	}
	return v
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultVal
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		// Plain seconds are accepted too, the original deployment used them.
		if secs, serr := strconv.Atoi(raw); serr == nil {
			return time.Duration(secs) * time.Second
		}
		slog.Warn("Invalid duration environment variable", "key", key, "value", raw, "error", err)
		return defaultVal
	}
	return v
}
