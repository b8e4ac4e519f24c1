package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"freelance-remind/internal/countdown"
	"freelance-remind/internal/derive"
	"freelance-remind/internal/events"
	"freelance-remind/internal/models"
	"freelance-remind/internal/schedule"
	"freelance-remind/internal/store"
)

func newWatchCmd(app *App) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the reminder engine against the live streams",
		Long: `Opens the agenda and finance subscriptions for the user, re-derives
reminders on every snapshot, schedules future deliveries, restores any
persisted focus-timer session, and prints the merged reminder list as
it changes. Runs until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runWatch(cmd, userID)
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "default", "user identifier for the live subscriptions")
	return cmd
}

func (app *App) runWatch(cmd *cobra.Command, userID string) error {
	if err := app.openStore(); err != nil {
		return err
	}
	defer app.Store.Close()

	ctx := cmd.Context()

	dispatcher := app.buildDispatcher()
	defer dispatcher.Close()

	scheduler := schedule.NewScheduler(dispatcher, app.Logger)

	source := store.NewPollingSource(
		app.Store,
		app.Config.Store.PollInterval,
		app.Config.Reminders.AgendaWindowDays,
		app.Logger,
	)

	hubConfig := events.DefaultHubConfig()
	hubConfig.Derive = derive.Options{
		LeadTime:    app.Config.Reminders.LeadTime,
		MorningHour: app.Config.Reminders.MorningHour,
	}

	hub := events.NewHub(source, scheduler, hubConfig, app.Logger)
	if err := hub.Start(ctx, userID); err != nil {
		return err
	}
	defer hub.Stop()

	// The focus timer shares the delivery pipeline: a completed cycle
	// goes out through the same dispatcher as the reminders.
	manager := countdown.NewManager(app.Store, dispatcher, app.countdownDurations(), app.Logger)
	if err := manager.Restore(ctx); err != nil {
		app.Logger.Warn().Err(err).Msg("Countdown restore failed")
	}

	subID, updates := hub.Subscribe()
	defer hub.Unsubscribe(subID)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	app.Logger.Info().Str("user", userID).Msg("Watching live streams")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sigCh:
			app.Logger.Info().Msg("Shutting down")
			return nil
		case merged, ok := <-updates:
			if !ok {
				return nil
			}
			printReminders(merged)
		}
	}
}

func printReminders(merged []models.ReminderDescriptor) {
	fmt.Printf("── %d recordatorios ──\n", len(merged))
	for _, d := range merged {
		marker := " "
		if d.Severity == models.SeverityUrgent {
			marker = "!"
		}
		fmt.Printf("%s [%s] %s · %s\n", marker, d.DueDate, d.Title, d.Body)
	}
}

func secondsDuration(s int) time.Duration {
	return time.Duration(s) * time.Second
}
