// Package countdown implements the wall-clock-anchored focus timer.
//
// The timer ticks once a second while running, but correctness never
// depends on counting ticks: remaining time is recomputed from the
// persisted end instant on every tick, so a suspended process
// self-corrects the moment it wakes up. The end instant is the only
// persisted truth; a restored session either resumes from it or is
// discarded as stale.
package countdown

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"freelance-remind/internal/dispatch"
	apperrors "freelance-remind/internal/errors"
	"freelance-remind/internal/models"
)

// SessionStore persists the active countdown session. Absence of a
// stored session is reported as ErrNoSession.
type SessionStore interface {
	SaveSession(s models.CountdownSession) error
	LoadSession() (models.CountdownSession, error)
	DeleteSession() error
}

// Durations holds the fixed length of each mode.
type Durations struct {
	Work       time.Duration
	ShortBreak time.Duration
	LongBreak  time.Duration
}

// DefaultDurations returns the product defaults: 25 minute work cycles
// with 5 and 15 minute breaks.
func DefaultDurations() Durations {
	return Durations{
		Work:       1500 * time.Second,
		ShortBreak: 300 * time.Second,
		LongBreak:  900 * time.Second,
	}
}

func (d Durations) forMode(mode models.CountdownMode) time.Duration {
	switch mode {
	case models.ModeShortBreak:
		return d.ShortBreak
	case models.ModeLongBreak:
		return d.LongBreak
	default:
		return d.Work
	}
}

// Snapshot is the externally visible countdown state.
type Snapshot struct {
	Mode      models.CountdownMode
	State     models.CountdownState
	Remaining int
	EndTime   time.Time
}

// Manager is the three-mode countdown state machine. Completion events
// converge on the same dispatcher as the reminder pipeline.
type Manager struct {
	store      SessionStore
	dispatcher *dispatch.Dispatcher
	durations  Durations
	logger     zerolog.Logger
	now        func() time.Time

	mu        sync.Mutex
	mode      models.CountdownMode
	state     models.CountdownState
	remaining int
	endTime   time.Time
	stop      chan struct{}
	wg        sync.WaitGroup
}

// NewManager creates an idle Manager in work mode.
func NewManager(store SessionStore, dispatcher *dispatch.Dispatcher, durations Durations, logger zerolog.Logger) *Manager {
	return &Manager{
		store:      store,
		dispatcher: dispatcher,
		durations:  durations,
		logger:     logger,
		now:        time.Now,
		mode:       models.ModeWork,
		state:      models.CountdownIdle,
		remaining:  int(durations.Work / time.Second),
	}
}

// SetClock overrides the wall clock. Test hook.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// Restore resumes a persisted session if its end instant is still in
// the future, and discards it otherwise. Call once on process start.
func (m *Manager) Restore(ctx context.Context) error {
	session, err := m.store.LoadSession()
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNoSession) {
			return nil
		}
		return err
	}

	remaining := session.Remaining(m.now())
	if remaining <= 0 {
		m.logger.Debug().Time("end_time", session.EndTime).Msg("Discarding stale countdown session")
		return m.store.DeleteSession()
	}

	m.mu.Lock()
	m.mode = session.Mode
	m.state = models.CountdownRunning
	m.endTime = session.EndTime
	m.remaining = remaining
	m.mu.Unlock()

	m.logger.Info().Str("mode", string(session.Mode)).Int("remaining", remaining).Msg("Countdown session restored")
	m.startLoop(ctx)
	return nil
}

// Start transitions idle or expired to running, anchoring the end
// instant at now + remaining.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.state == models.CountdownRunning {
		m.mu.Unlock()
		return nil
	}
	m.state = models.CountdownRunning
	m.endTime = m.now().Add(time.Duration(m.remaining) * time.Second)
	session := models.CountdownSession{Mode: m.mode, EndTime: m.endTime}
	m.mu.Unlock()

	if err := m.store.SaveSession(session); err != nil {
		m.logger.Warn().Err(err).Msg("Persisting countdown session failed")
	}
	m.startLoop(ctx)
	return nil
}

// Pause transitions running to idle, freezing the remaining time and
// clearing the persisted session.
func (m *Manager) Pause() error {
	m.mu.Lock()
	if m.state != models.CountdownRunning {
		m.mu.Unlock()
		return nil
	}
	m.state = models.CountdownIdle
	m.remaining = remainingAt(m.endTime, m.now())
	stop := m.stop
	m.stop = nil
	m.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	m.wg.Wait()
	return m.store.DeleteSession()
}

// SwitchMode selects a mode while not running and resets the remaining
// time to that mode's full duration. A running countdown is unaffected.
func (m *Manager) SwitchMode(mode models.CountdownMode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == models.CountdownRunning {
		return
	}
	m.mode = mode
	m.state = models.CountdownIdle
	m.remaining = int(m.durations.forMode(mode) / time.Second)
}

// Snapshot returns the current countdown state. While running, the
// remaining time is recomputed from the end instant.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	remaining := m.remaining
	if m.state == models.CountdownRunning {
		remaining = remainingAt(m.endTime, m.now())
	}
	return Snapshot{
		Mode:      m.mode,
		State:     m.state,
		Remaining: remaining,
		EndTime:   m.endTime,
	}
}

// startLoop runs the 1-second tick loop until pause, expiry, or
// context cancellation.
func (m *Manager) startLoop(ctx context.Context) {
	stop := make(chan struct{})
	m.mu.Lock()
	m.stop = stop
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				if m.tick(ctx) {
					return
				}
			}
		}
	}()
}

// tick recomputes remaining time from the end instant, persists the
// session, and fires expiry. Returns true when the loop should end.
func (m *Manager) tick(ctx context.Context) bool {
	m.mu.Lock()
	if m.state != models.CountdownRunning {
		m.mu.Unlock()
		return true
	}
	m.remaining = remainingAt(m.endTime, m.now())
	remaining := m.remaining
	session := models.CountdownSession{Mode: m.mode, EndTime: m.endTime}
	m.mu.Unlock()

	if remaining > 0 {
		// Chatty on purpose: a write per tick means the stored end
		// instant is never more than a second behind a crash.
		if err := m.store.SaveSession(session); err != nil {
			m.logger.Warn().Err(err).Msg("Persisting countdown session failed")
		}
		return false
	}

	m.expire(ctx)
	return true
}

// expire fires the completion notification and parks the countdown in
// the expired state with the mode's full duration; the next Start or
// SwitchMode leaves it.
func (m *Manager) expire(ctx context.Context) {
	m.mu.Lock()
	mode := m.mode
	m.state = models.CountdownExpired
	m.remaining = int(m.durations.forMode(mode) / time.Second)
	m.stop = nil
	m.mu.Unlock()

	if err := m.store.DeleteSession(); err != nil {
		m.logger.Warn().Err(err).Msg("Clearing countdown session failed")
	}

	title, body := completionMessage(mode)
	m.dispatcher.DeliverNow(ctx, title, body)
	m.logger.Info().Str("mode", string(mode)).Msg("Countdown completed")
}

func completionMessage(mode models.CountdownMode) (title, body string) {
	if mode == models.ModeWork {
		return "¡Tiempo de descanso!", "Terminaste un ciclo de trabajo. Toma un descanso."
	}
	return "De vuelta al trabajo", "El descanso terminó. Empieza el siguiente ciclo."
}

func remainingAt(endTime, now time.Time) int {
	return models.CountdownSession{EndTime: endTime}.Remaining(now)
}
