package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// Core
	BotToken string `env:"BOT_TOKEN,required"`

	// Admin
	AdminIDs []int64 `env:"ADMIN_IDS" envSeparator:","`

	// Server
	Port int `env:"PORT" envDefault:"3000"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Bot behavior
	DropPendingUpdates bool          `env:"BOT_DROP_PENDING_UPDATES" envDefault:"false"`
	SessionTimeout     time.Duration `env:"SESSION_TIMEOUT" envDefault:"10m"`

	// Upstream platforms
	HTTPTimeout         time.Duration `env:"HTTP_TIMEOUT" envDefault:"60s"`
	PlatformsFile       string        `env:"PLATFORMS_FILE"`
	PWOAuthClientSecret string        `env:"PW_OAUTH_CLIENT_SECRET"`

	// Reports
	ReportDir         string `env:"REPORT_DIR"`
	PlayerURLTemplate string `env:"PLAYER_URL_TEMPLATE"`

	// Audit channel
	AuditChatID          int64 `env:"AUDIT_CHAT_ID"`
	AuditTopicLogin      int   `env:"AUDIT_TOPIC_LOGIN"`
	AuditTopicExtraction int   `env:"AUDIT_TOPIC_EXTRACTION"`
	AuditTopicError      int   `env:"AUDIT_TOPIC_ERROR"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func (c *Config) IsAdmin(telegramID int64) bool {
	for _, id := range c.AdminIDs {
		if id == telegramID {
			return true
		}
	}
	return false
}

// SlogLevel maps LOG_LEVEL onto slog, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
