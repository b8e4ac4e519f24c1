package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"freelance-remind/internal/countdown"
	apperrors "freelance-remind/internal/errors"
	"freelance-remind/internal/models"
)

func newTimerCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "timer",
		Short: "Control the focus timer",
	}

	cmd.AddCommand(newTimerStartCmd(app))
	cmd.AddCommand(newTimerStatusCmd(app))
	cmd.AddCommand(newTimerPauseCmd(app))
	return cmd
}

func newTimerStartCmd(app *App) *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start (or resume) a countdown cycle",
		Long: `Starts a countdown in the given mode, or resumes a persisted session
if one is still running. Blocks until the cycle completes or the
process is interrupted; an interrupted cycle keeps its persisted end
time and resumes on the next start.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runTimerStart(cmd, mode)
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", "work", "cycle mode: work, short, long")
	return cmd
}

func (app *App) runTimerStart(cmd *cobra.Command, mode string) error {
	countdownMode, err := parseMode(mode)
	if err != nil {
		return err
	}
	if err := app.openStore(); err != nil {
		return err
	}
	defer app.Store.Close()

	ctx := cmd.Context()
	dispatcher := app.buildDispatcher()
	defer dispatcher.Close()

	manager := countdown.NewManager(app.Store, dispatcher, app.countdownDurations(), app.Logger)
	if err := manager.Restore(ctx); err != nil {
		return err
	}

	snap := manager.Snapshot()
	if snap.State != models.CountdownRunning {
		manager.SwitchMode(countdownMode)
		if err := manager.Start(ctx); err != nil {
			return err
		}
		snap = manager.Snapshot()
	}
	fmt.Printf("%s: %s restante\n", snap.Mode, formatRemaining(snap.Remaining))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sigCh:
			// Leave the session persisted; the next start resumes it.
			fmt.Println()
			return nil
		case <-ticker.C:
			snap = manager.Snapshot()
			if snap.State != models.CountdownRunning {
				fmt.Println("\rciclo completado")
				return nil
			}
			fmt.Printf("\r%s restante ", formatRemaining(snap.Remaining))
		}
	}
}

func newTimerStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the persisted countdown session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.openStore(); err != nil {
				return err
			}
			defer app.Store.Close()

			session, err := app.Store.LoadSession()
			if err != nil {
				if apperrors.Is(err, apperrors.ErrNoSession) {
					fmt.Println("sin sesión activa")
					return nil
				}
				return err
			}

			remaining := session.Remaining(time.Now())
			if remaining <= 0 {
				fmt.Println("sesión expirada")
				return nil
			}
			fmt.Printf("%s: %s restante\n", session.Mode, formatRemaining(remaining))
			return nil
		},
	}
}

func newTimerPauseCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Stop the countdown and clear the persisted session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.openStore(); err != nil {
				return err
			}
			defer app.Store.Close()

			if err := app.Store.DeleteSession(); err != nil {
				return err
			}
			fmt.Println("sesión detenida")
			return nil
		},
	}
}

func parseMode(mode string) (models.CountdownMode, error) {
	switch mode {
	case "work":
		return models.ModeWork, nil
	case "short":
		return models.ModeShortBreak, nil
	case "long":
		return models.ModeLongBreak, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want work, short, long)", mode)
	}
}

func formatRemaining(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
