package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"
	"terminwatch/packages/config"
	"terminwatch/packages/cooldown"
	"terminwatch/packages/fetcher"
	"terminwatch/packages/metrics"
	"terminwatch/packages/notify"
	"terminwatch/packages/scraper"

	"gopkg.in/natefinch/lumberjack.v2"
)

const alertTitle = "🎉 Berlin Service Appointments Available!"

func setupLogger(cfg config.Config) {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	logDir := filepath.Dir(cfg.LogFile)
	if err := os.MkdirAll(logDir, 0750); err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error(
			"Failed to create log directory", "path", logDir, "error", err,
		)
	}

	logRotator := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    5,
		MaxBackups: 3,
		MaxAge:     30,
		Compress:   true,
	}

	multiWriter := io.MultiWriter(os.Stdout, logRotator)

	handler := slog.NewJSONHandler(multiWriter, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(a.Value.Time().Format(time.RFC3339Nano))
			}
			return a
		},
	}).WithAttrs([]slog.Attr{slog.String("service", "termin-monitor")})

	slog.SetDefault(slog.New(handler))
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("FATAL: Failed to load configuration", "error", err)
		os.Exit(1)
	}
	setupLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("--- Starting Berlin Service Appointment Monitor ---")
	cfg.LogSummary()

	if cfg.MetricsAddr != "" {
		go metrics.ExposeMetrics(cfg.MetricsAddr)
	}

	rules, err := scraper.LoadRules(cfg.RulesFile)
	if err != nil {
		slog.Error("Failed to load rules file, using defaults", "path", cfg.RulesFile, "error", err)
	}

	store, err := cooldown.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.AlertCooldown)
	if err != nil {
		slog.Error("Failed to connect to Redis, cooldown disabled", "error", err)
		store = &cooldown.Store{}
	}
	defer store.Close()

	checker := scraper.New(cfg, fetcher.New(cfg.RequestTimeout), rules)
	notifier := notify.New(cfg)

	runCheck(ctx, checker, notifier, store)

	if cfg.CheckInterval <= 0 {
		slog.Info("Monitor run completed")
		return
	}

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Shutdown signal received. Exiting...")
			return
		case <-ticker.C:
			runCheck(ctx, checker, notifier, store)
		}
	}
}

// runCheck performs one full check-and-alert cycle. Every failure inside
// is recovered; a cycle never terminates the process.
func runCheck(ctx context.Context, checker *scraper.Scraper, notifier *notify.Manager, store *cooldown.Store) {
	started := time.Now()
	metrics.ChecksTotal.Inc()

	slog.Info("Checking for available appointments...")
	findings := checker.CheckAppointments(ctx)

	metrics.CheckDuration.Observe(time.Since(started).Seconds())

	if len(findings) == 0 {
		slog.Info("No appointments currently available")
		return
	}

	slog.Info("Found available appointments", "count", len(findings))
	metrics.FindingsTotal.Add(float64(len(findings)))

	if !store.Allow(ctx, cooldown.FindingsKey(findings)) {
		return
	}

	message := checker.FormatMessage(findings)
	if notifier.Send(ctx, alertTitle, message) {
		slog.Info("Notifications sent successfully")
	} else {
		slog.Error("No notification channel delivered the alert")
	}
}
