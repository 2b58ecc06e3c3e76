package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application.
type AppConfig struct {
	HTTPAddr    string
	DatabaseURL string
	JWTSecret   string
	LogLevel    string
	Environment string

	GatewayBaseURL       string
	GatewayKeyID         string
	GatewayKeySecret     string
	GatewayWebhookSecret string

	SMTPAddr string // host:port; empty disables the email channel
	SMTPFrom string

	TelegramToken string // empty disables the telegram channel

	UploadDir string

	CronSpecReminderSweep  string
	CronSpecOverdueSweep   string
	CronSpecWishes         string
	CronSpecGenerateSweep  string
	CronSpecRetentionSweep string

	ReminderTiers             []int // days before due date
	NotificationRetentionDays int
	ArtifactRetentionDays     int
	OverdueRedispatchDays     int
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is not set")
	}

	cfg.GatewayKeySecret = os.Getenv("GATEWAY_KEY_SECRET")
	if cfg.GatewayKeySecret == "" {
		return nil, fmt.Errorf("GATEWAY_KEY_SECRET is not set")
	}
	cfg.GatewayWebhookSecret = os.Getenv("GATEWAY_WEBHOOK_SECRET")
	if cfg.GatewayWebhookSecret == "" {
		return nil, fmt.Errorf("GATEWAY_WEBHOOK_SECRET is not set")
	}
	cfg.GatewayKeyID = os.Getenv("GATEWAY_KEY_ID")
	cfg.GatewayBaseURL = os.Getenv("GATEWAY_BASE_URL")
	if cfg.GatewayBaseURL == "" {
		cfg.GatewayBaseURL = "https://api.gateway.test"
	}

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	cfg.SMTPAddr = os.Getenv("SMTP_ADDR")
	cfg.SMTPFrom = os.Getenv("SMTP_FROM")
	if cfg.SMTPAddr != "" && cfg.SMTPFrom == "" {
		return nil, fmt.Errorf("SMTP_FROM is required when SMTP_ADDR is set")
	}

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")

	cfg.UploadDir = os.Getenv("UPLOAD_DIR")
	if cfg.UploadDir == "" {
		cfg.UploadDir = "./uploads"
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	cfg.CronSpecReminderSweep = envOrDefault("CRON_SPEC_REMINDER_SWEEP", "0 9 * * *")
	cfg.CronSpecOverdueSweep = envOrDefault("CRON_SPEC_OVERDUE_SWEEP", "0 10 * * *")
	cfg.CronSpecWishes = envOrDefault("CRON_SPEC_WISHES", "0 8 * * *")
	cfg.CronSpecGenerateSweep = envOrDefault("CRON_SPEC_GENERATE_SWEEP", "30 0 * * *")
	cfg.CronSpecRetentionSweep = envOrDefault("CRON_SPEC_RETENTION_SWEEP", "0 2 * * 0")

	tiers, err := parseIntList(envOrDefault("REMINDER_TIERS", "7,3,1"))
	if err != nil {
		return nil, fmt.Errorf("invalid REMINDER_TIERS: %w", err)
	}
	cfg.ReminderTiers = tiers

	cfg.NotificationRetentionDays, err = envOrDefaultInt("NOTIFICATION_RETENTION_DAYS", 90)
	if err != nil {
		return nil, err
	}
	cfg.ArtifactRetentionDays, err = envOrDefaultInt("ARTIFACT_RETENTION_DAYS", 30)
	if err != nil {
		return nil, err
	}
	cfg.OverdueRedispatchDays, err = envOrDefaultInt("OVERDUE_REDISPATCH_DAYS", 3)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func parseIntList(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
