package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "freelance-remind/internal/errors"
)

func TestLoadDefaults(t *testing.T) {
	// No config file in the directory: defaults apply.
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Reminders.AgendaWindowDays)
	assert.Equal(t, 30*time.Minute, cfg.Reminders.LeadTime)
	assert.Equal(t, 9, cfg.Reminders.MorningHour)
	assert.Equal(t, 1500, cfg.Countdown.WorkSeconds)
	assert.Equal(t, 300, cfg.Countdown.ShortBreakSeconds)
	assert.Equal(t, 900, cfg.Countdown.LongBreakSeconds)
	assert.True(t, cfg.Notifications.Enabled)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"morning hour out of range", func(c *Config) { c.Reminders.MorningHour = 24 }},
		{"negative window", func(c *Config) { c.Reminders.AgendaWindowDays = -1 }},
		{"zero work duration", func(c *Config) { c.Countdown.WorkSeconds = 0 }},
		{"unknown capability", func(c *Config) { c.Notifications.Capability = "carrier-pigeon" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(t.TempDir())
			require.NoError(t, err)

			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrConfigInvalid)
		})
	}
}
