// Package config provides configuration management for the reminder engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	apperrors "freelance-remind/internal/errors"
)

// Config holds all application configuration.
type Config struct {
	Log           LogConfig          `mapstructure:"log"`
	Store         StoreConfig        `mapstructure:"store"`
	Reminders     ReminderConfig     `mapstructure:"reminders"`
	Countdown     CountdownConfig    `mapstructure:"countdown"`
	Notifications NotificationConfig `mapstructure:"notifications"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level    string `mapstructure:"level"`
	Console  bool   `mapstructure:"console"`
	File     bool   `mapstructure:"file"`
	FilePath string `mapstructure:"file_path"`
}

// StoreConfig holds local storage configuration.
type StoreConfig struct {
	// Path is the sqlite database file holding the countdown session
	// and the dev/test event collections.
	Path string `mapstructure:"path"`
	// PollInterval is how often the polling live source re-queries.
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// ReminderConfig holds derivation configuration.
type ReminderConfig struct {
	// AgendaWindowDays bounds the agenda subscription to
	// [today, today+N days].
	AgendaWindowDays int `mapstructure:"agenda_window_days"`
	// LeadTime is how far before an agenda event the early reminder
	// fires.
	LeadTime time.Duration `mapstructure:"lead_time"`
	// MorningHour is the local wall-clock hour anchoring same-day
	// finance reminders.
	MorningHour int `mapstructure:"morning_hour"`
}

// CountdownConfig holds focus-timer durations, in seconds.
type CountdownConfig struct {
	WorkSeconds       int `mapstructure:"work_seconds"`
	ShortBreakSeconds int `mapstructure:"short_break_seconds"`
	LongBreakSeconds  int `mapstructure:"long_break_seconds"`
}

// NotificationConfig holds delivery configuration.
type NotificationConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Capability forces a delivery mechanism: native, desktop, web,
	// none. Empty means resolve automatically.
	Capability string `mapstructure:"capability"`
	// DesktopCommand is the host notification binary for the desktop
	// bridge (notify-send, osascript). Empty disables the bridge.
	DesktopCommand string `mapstructure:"desktop_command"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/freelance-remind"
	}
	return filepath.Join(home, ".config", "freelance-remind")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.SetEnvPrefix("REMIND")
	v.AutomaticEnv()

	setDefaults(v, configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Missing file is fine; defaults and env apply.
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", true)
	v.SetDefault("log.file", true)
	v.SetDefault("log.file_path", filepath.Join(configDir, "logs", "remindd.log"))

	v.SetDefault("store.path", filepath.Join(configDir, "remind.db"))
	v.SetDefault("store.poll_interval", 2*time.Second)

	v.SetDefault("reminders.agenda_window_days", 2)
	v.SetDefault("reminders.lead_time", 30*time.Minute)
	v.SetDefault("reminders.morning_hour", 9)

	v.SetDefault("countdown.work_seconds", 1500)
	v.SetDefault("countdown.short_break_seconds", 300)
	v.SetDefault("countdown.long_break_seconds", 900)

	v.SetDefault("notifications.enabled", true)
	v.SetDefault("notifications.capability", "")
	v.SetDefault("notifications.desktop_command", "")
}

// Validate checks configuration invariants. Failures wrap
// ErrConfigInvalid.
func (c *Config) Validate() error {
	if c.Reminders.AgendaWindowDays < 0 {
		return fmt.Errorf("%w: reminders.agenda_window_days must be >= 0", apperrors.ErrConfigInvalid)
	}
	if c.Reminders.MorningHour < 0 || c.Reminders.MorningHour > 23 {
		return fmt.Errorf("%w: reminders.morning_hour must be within [0, 23]", apperrors.ErrConfigInvalid)
	}
	if c.Reminders.LeadTime < 0 {
		return fmt.Errorf("%w: reminders.lead_time must be >= 0", apperrors.ErrConfigInvalid)
	}
	if c.Countdown.WorkSeconds <= 0 || c.Countdown.ShortBreakSeconds <= 0 || c.Countdown.LongBreakSeconds <= 0 {
		return fmt.Errorf("%w: countdown durations must be > 0", apperrors.ErrConfigInvalid)
	}
	if c.Store.PollInterval <= 0 {
		return fmt.Errorf("%w: store.poll_interval must be > 0", apperrors.ErrConfigInvalid)
	}
	switch c.Notifications.Capability {
	case "", "native", "desktop", "web", "none":
	default:
		return fmt.Errorf("%w: notifications.capability must be one of native, desktop, web, none", apperrors.ErrConfigInvalid)
	}
	return nil
}
