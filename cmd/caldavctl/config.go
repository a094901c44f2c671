package main

import (
	"log/slog"
	"os"
	"strings"
)

type Config struct {
	url      string
	username string
	password string
	level    slog.Level
}

// NewConfig reads the CALDAV_* environment. Flags override what it finds.
func NewConfig() *Config {
	return &Config{
		url: func() string {
			url := os.Getenv("CALDAV_URL")
			slog.Debug("env", "CALDAV_URL", url)
			return url
		}(),
		username: func() string {
			username := os.Getenv("CALDAV_USERNAME")
			slog.Debug("env", "CALDAV_USERNAME", username)
			return username
		}(),
		password: func() string {
			password := os.Getenv("CALDAV_PASSWORD")
			if password != "" {
				slog.Debug("env", "CALDAV_PASSWORD", "***")
			}
			return password
		}(),
		level: func() slog.Level {
			raw := os.Getenv("CALDAV_LOG_LEVEL")
			if raw == "" {
				return slog.LevelWarn
			}
			var level slog.Level
			if err := level.UnmarshalText([]byte(strings.ToUpper(raw))); err != nil {
				slog.Warn("invalid CALDAV_LOG_LEVEL, using WARN", "value", raw, "error", err)
				return slog.LevelWarn
			}
			return level
		}(),
	}
}

func (c *Config) GetURL() string { return c.url }
func (c *Config) GetUsername() string { return c.username }
func (c *Config) GetPassword() string { return c.password }
func (c *Config) GetLevel() slog.Level { return c.level }
