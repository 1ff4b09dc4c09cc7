package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://service.berlin.de/dienstleistung/324591/", cfg.ServiceURL)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, time.Duration(0), cfg.CheckInterval)
	assert.Equal(t, 1, cfg.EvidenceThreshold)
	assert.Equal(t, 5, cfg.MaxLocations)
	assert.Equal(t, 1*time.Second, cfg.MainDelayMin)
	assert.Equal(t, 3*time.Second, cfg.MainDelayMax)
	assert.Equal(t, 2*time.Second, cfg.LocationDelayMin)
	assert.Equal(t, 4*time.Second, cfg.LocationDelayMax)
	assert.Equal(t, 6*time.Hour, cfg.AlertCooldown)
	assert.Equal(t, "logs/monitor.log", cfg.LogFile)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("SERVICE_URL", "https://example.org/page/")
	t.Setenv("REQUEST_TIMEOUT", "10s")
	t.Setenv("EVIDENCE_THRESHOLD", "3")
	t.Setenv("MAX_LOCATIONS", "2")
	t.Setenv("CHECK_INTERVAL", "5m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://example.org/page/", cfg.ServiceURL)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 3, cfg.EvidenceThreshold)
	assert.Equal(t, 2, cfg.MaxLocations)
	assert.Equal(t, 5*time.Minute, cfg.CheckInterval)
}

func TestLoad_PlainSecondsAccepted(t *testing.T) {
	// The original deployment configured intervals as bare seconds.
	t.Setenv("CHECK_INTERVAL", "300")
	t.Setenv("REQUEST_TIMEOUT", "30")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.CheckInterval)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("EVIDENCE_THRESHOLD", "plenty")
	t.Setenv("REQUEST_TIMEOUT", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.EvidenceThreshold)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
}

func TestChannelPredicates(t *testing.T) {
	var cfg Config
	assert.False(t, cfg.HasGitHubConfig())
	assert.False(t, cfg.HasEmailConfig())
	assert.False(t, cfg.HasWebhookConfig())
	assert.False(t, cfg.HasPushConfig())

	cfg.GitHubToken = "tok"
	assert.False(t, cfg.HasGitHubConfig(), "token without repo is not enough")
	cfg.GitHubRepo = "owner/repo"
	assert.True(t, cfg.HasGitHubConfig())

	cfg.NotificationEmail = "me@example.org"
	assert.False(t, cfg.HasEmailConfig())
	cfg.EmailPassword = "hunter2"
	assert.True(t, cfg.HasEmailConfig())

	cfg.WebhookURL = "https://hooks.example.org/x"
	assert.True(t, cfg.HasWebhookConfig())

	assert.False(t, cfg.HasPushConfig())
	cfg.PushoverToken = "a"
	assert.False(t, cfg.HasPushConfig(), "pushover needs token and user")
	cfg.PushoverUser = "b"
	assert.True(t, cfg.HasPushConfig())
}
