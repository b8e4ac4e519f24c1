// Package cli provides the command-line interface for the reminder
// engine.
package cli

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"freelance-remind/internal/config"
	"freelance-remind/internal/countdown"
	"freelance-remind/internal/dispatch"
	apperrors "freelance-remind/internal/errors"
	"freelance-remind/internal/store"
)

// Version information
const (
	Version = "0.1.0"
)

// App holds the application dependencies.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Store  *store.Store
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	rootCmd := &cobra.Command{
		Use:   "remindd",
		Short: "Reminder and notification scheduling engine",
		Long: `remindd watches the agenda and finance streams, derives urgency-ranked
reminders, schedules their delivery on the platform's notification
surface, and runs the wall-clock-anchored focus timer.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newWatchCmd(app))
	rootCmd.AddCommand(newTimerCmd(app))
	rootCmd.AddCommand(newNotifyCmd(app))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("remindd %s\n", Version)
		},
	}
}

// openStore opens the local sqlite store from config.
func (app *App) openStore() error {
	if app.Store != nil {
		return nil
	}
	s, err := store.New(app.Config.Store.Path)
	if err != nil {
		return apperrors.Wrap(err, "opening store")
	}
	app.Store = s
	return nil
}

// buildDispatcher resolves the platform capability once and wraps it.
func (app *App) buildDispatcher() *dispatch.Dispatcher {
	force := app.Config.Notifications.Capability
	if !app.Config.Notifications.Enabled {
		force = "none"
	}
	deliverer := dispatch.Resolve(dispatch.ResolveOptions{
		Force:          force,
		DesktopCommand: app.Config.Notifications.DesktopCommand,
		Logger:         app.Logger,
	})
	app.Logger.Info().Str("capability", string(deliverer.Capability())).Msg("Notification capability resolved")
	return dispatch.NewDispatcher(deliverer, app.Logger)
}

// countdownDurations maps configured seconds onto manager durations.
func (app *App) countdownDurations() countdown.Durations {
	d := countdown.DefaultDurations()
	cfg := app.Config.Countdown
	if cfg.WorkSeconds > 0 {
		d.Work = secondsDuration(cfg.WorkSeconds)
	}
	if cfg.ShortBreakSeconds > 0 {
		d.ShortBreak = secondsDuration(cfg.ShortBreakSeconds)
	}
	if cfg.LongBreakSeconds > 0 {
		d.LongBreak = secondsDuration(cfg.LongBreakSeconds)
	}
	return d
}
