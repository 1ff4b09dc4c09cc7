// Package notify delivers alerts through every configured channel. Each
// channel is best-effort: failures are logged and never propagate to the
// caller or block the other channels.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/smtp"
	"net/url"
	"strings"
	"sync/atomic"
	"time"
	"terminwatch/packages/config"
	"terminwatch/packages/metrics"

	"golang.org/x/sync/errgroup"
)

// Provider endpoints; fields on the Manager so tests can point them at a
// local server.
const (
	defaultGitHubAPIURL   = "https://api.github.com"
	defaultPushoverURL    = "https://api.pushover.net/1/messages.json"
	defaultPushbulletURL  = "https://api.pushbullet.com/v2/pushes"
	defaultNtfyURL        = "https://ntfy.sh"
	defaultSMTPAddr       = "smtp.gmail.com:587"
	defaultRequestTimeout = 30 * time.Second
)

type Manager struct {
	cfg    config.Config
	client *http.Client

	GitHubAPIURL  string
	PushoverURL   string
	PushbulletURL string
	NtfyURL       string
	SMTPAddr      string
}

func New(cfg config.Config) *Manager {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Manager{
		cfg:           cfg,
		client:        &http.Client{Timeout: timeout},
		GitHubAPIURL:  defaultGitHubAPIURL,
		PushoverURL:   defaultPushoverURL,
		PushbulletURL: defaultPushbulletURL,
		NtfyURL:       defaultNtfyURL,
		SMTPAddr:      defaultSMTPAddr,
	}
}

// Send pushes the alert through all configured channels concurrently and
// reports whether at least one delivery succeeded.
func (m *Manager) Send(ctx context.Context, title, body string) bool {
	channels := []struct {
		name string
		send func(context.Context, string, string) error
	}{
		{"github", m.sendGitHubIssue},
		{"email", m.sendEmail},
		{"webhook", m.sendWebhook},
		{"pushover", m.sendPushover},
		{"pushbullet", m.sendPushbullet},
		{"ntfy", m.sendNtfy},
	}

	var delivered atomic.Bool
	g, gCtx := errgroup.WithContext(ctx)
	for _, ch := range channels {
		g.Go(func() error {
			err := ch.send(gCtx, title, body)
			switch {
			case errors.Is(err, errNotConfigured):
				slog.Debug("Notification channel not configured, skipping", "channel", ch.name)
			case err != nil:
				slog.Error("Notification channel failed", "channel", ch.name, "error", err)
				metrics.NotificationsTotal.WithLabelValues(ch.name, "error").Inc()
			default:
				slog.Info("Notification sent", "channel", ch.name)
				metrics.NotificationsTotal.WithLabelValues(ch.name, "ok").Inc()
				delivered.Store(true)
			}
			return nil
		})
	}
	_ = g.Wait()
	return delivered.Load()
}

// errNotConfigured marks a channel skipped for missing credentials.
var errNotConfigured = errors.New("channel not configured")

func (m *Manager) sendGitHubIssue(ctx context.Context, title, body string) error {
	if !m.cfg.HasGitHubConfig() {
		return errNotConfigured
	}

	issueBody := fmt.Sprintf("%s\n\n---\n*Created automatically at %s*", body, time.Now().Format(time.RFC3339))
	payload, err := json.Marshal(map[string]any{
		"title":  title,
		"body":   issueBody,
		"labels": []string{"appointment-alert", "automated"},
	})
	if err != nil {
		return err
	}

	reqURL := fmt.Sprintf("%s/repos/%s/issues", m.GitHubAPIURL, m.cfg.GitHubRepo)
	req, err := http.NewRequestWithContext(ctx, "POST", reqURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "token "+m.cfg.GitHubToken)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		// Expected when the token lacks issue permissions, e.g. running
		// locally instead of inside the CI environment.
		slog.Warn("GitHub API permission denied; issue creation skipped")
		return fmt.Errorf("github: permission denied (403)")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("github: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var created struct {
		HTMLURL string `json:"html_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err == nil && created.HTMLURL != "" {
		slog.Info("GitHub issue created", "url", created.HTMLURL)
	}
	return nil
}

func (m *Manager) sendEmail(ctx context.Context, title, body string) error {
	if !m.cfg.HasEmailConfig() {
		return errNotConfigured
	}
	_ = ctx // net/smtp carries no context; the client timeout bounds the call

	from := m.cfg.NotificationEmail
	host, _, err := net.SplitHostPort(m.SMTPAddr)
	if err != nil {
		return fmt.Errorf("smtp address %q: %w", m.SMTPAddr, err)
	}
	auth := smtp.PlainAuth("", from, m.cfg.EmailPassword, host)

	msg := strings.Join([]string{
		"From: " + from,
		"To: " + from,
		"Subject: " + title,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"utf-8\"",
		"",
		body,
	}, "\r\n")

	// Message is sent from and to the same configured address.
	return smtp.SendMail(m.SMTPAddr, auth, from, []string{from}, []byte(msg))
}

func (m *Manager) sendWebhook(ctx context.Context, title, body string) error {
	if !m.cfg.HasWebhookConfig() {
		return errNotConfigured
	}

	var payload map[string]any
	lowered := strings.ToLower(m.cfg.WebhookURL)
	switch {
	case strings.Contains(lowered, "discord"):
		payload = map[string]any{
			"content":  fmt.Sprintf("**%s**\n\n%s", title, body),
			"username": "Berlin Appointment Monitor",
		}
	case strings.Contains(lowered, "slack"):
		payload = map[string]any{
			"text":     fmt.Sprintf("*%s*\n\n%s", title, body),
			"username": "Berlin Appointment Monitor",
		}
	default:
		payload = map[string]any{
			"title":     title,
			"message":   body,
			"timestamp": time.Now().Format(time.RFC3339),
		}
	}

	return m.postJSON(ctx, "webhook", m.cfg.WebhookURL, payload, nil)
}

func (m *Manager) sendPushover(ctx context.Context, title, body string) error {
	if m.cfg.PushoverToken == "" || m.cfg.PushoverUser == "" {
		return errNotConfigured
	}

	form := url.Values{}
	form.Set("token", m.cfg.PushoverToken)
	form.Set("user", m.cfg.PushoverUser)
	form.Set("title", title)
	form.Set("message", body)
	form.Set("priority", "1")
	form.Set("sound", "bugle")

	req, err := http.NewRequestWithContext(ctx, "POST", m.PushoverURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return m.doChecked(req, "pushover")
}

func (m *Manager) sendPushbullet(ctx context.Context, title, body string) error {
	if m.cfg.PushbulletToken == "" {
		return errNotConfigured
	}

	headers := map[string]string{"Authorization": "Bearer " + m.cfg.PushbulletToken}
	return m.postJSON(ctx, "pushbullet", m.PushbulletURL, map[string]any{
		"type":  "note",
		"title": title,
		"body":  body,
	}, headers)
}

func (m *Manager) sendNtfy(ctx context.Context, title, body string) error {
	if m.cfg.NtfyTopic == "" {
		return errNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, "POST", m.NtfyURL+"/"+m.cfg.NtfyTopic, strings.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Title", title)
	req.Header.Set("Priority", "high")
	req.Header.Set("Tags", "appointment,berlin")
	return m.doChecked(req, "ntfy")
}

func (m *Manager) postJSON(ctx context.Context, name, rawURL string, payload map[string]any, headers map[string]string) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", rawURL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return m.doChecked(req, name)
}

func (m *Manager) doChecked(req *http.Request, target string) error {
	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s: status %d", target, resp.StatusCode)
	}
	return nil
}
